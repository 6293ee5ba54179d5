package num

import (
	"github.com/holiman/uint256"
)

// Wei is a signed token amount held by an account in the margin engine.
// A negative Wei is debt. Zero is always stored as non-negative.
type Wei struct {
	Negative bool
	Value    uint256.Int
}

// NewWei returns a non-negative Wei holding a copy of v.
func NewWei(v *uint256.Int) Wei {
	w := Wei{}
	if v != nil {
		w.Value.Set(v)
	}
	return w
}

// NegWei returns -v.
func NegWei(v *uint256.Int) Wei {
	w := NewWei(v)
	w.Negative = !w.Value.IsZero()
	return w
}

// Add returns w + amount.
func (w Wei) Add(amount *uint256.Int) Wei {
	if !w.Negative {
		var out Wei
		out.Value.Add(&w.Value, amount)
		return out
	}
	if w.Value.Gt(amount) {
		out := Wei{Negative: true}
		out.Value.Sub(&w.Value, amount)
		return out
	}
	var out Wei
	out.Value.Sub(amount, &w.Value)
	return out
}

// Sub returns w - amount.
func (w Wei) Sub(amount *uint256.Int) Wei {
	if w.Negative {
		out := Wei{Negative: true}
		out.Value.Add(&w.Value, amount)
		return out
	}
	if !w.Value.Lt(amount) {
		var out Wei
		out.Value.Sub(&w.Value, amount)
		return out
	}
	out := Wei{Negative: true}
	out.Value.Sub(amount, &w.Value)
	return out
}

// Cmp compares w and o and returns -1, 0 or +1.
func (w Wei) Cmp(o Wei) int {
	switch {
	case w.IsNegative() && !o.IsNegative():
		return -1
	case !w.IsNegative() && o.IsNegative():
		return 1
	case w.IsNegative():
		return o.Value.Cmp(&w.Value)
	default:
		return w.Value.Cmp(&o.Value)
	}
}

func (w Wei) IsNegative() bool {
	return w.Negative && !w.Value.IsZero()
}

func (w Wei) IsPositive() bool {
	return !w.Negative && !w.Value.IsZero()
}

func (w Wei) IsZero() bool {
	return w.Value.IsZero()
}

// Abs returns a copy of the magnitude of w.
func (w Wei) Abs() *uint256.Int {
	return w.Value.Clone()
}

func (w Wei) String() string {
	if w.IsNegative() {
		return "-" + w.Value.Dec()
	}
	return w.Value.Dec()
}
