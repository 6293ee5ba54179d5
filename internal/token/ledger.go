package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
)

// Ledger holds balances, allowances and supply for one token.
type Ledger struct {
	component string

	mu         sync.RWMutex
	supply     uint256.Int
	balances   map[common.Address]uint256.Int
	allowances map[common.Address]map[common.Address]uint256.Int
}

type ledgerSnapshot struct {
	supply     uint256.Int
	balances   map[common.Address]uint256.Int
	allowances map[common.Address]map[common.Address]uint256.Int
}

// NewLedger creates an empty ledger. component names the owner in revert
// reasons.
func NewLedger(component string) *Ledger {
	return &Ledger{
		component:  component,
		balances:   make(map[common.Address]uint256.Int),
		allowances: make(map[common.Address]map[common.Address]uint256.Int),
	}
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.Clone()
}

func (l *Ledger) BalanceOf(owner common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b := l.balances[owner]
	return b.Clone()
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a := l.allowances[owner][spender]
	return a.Clone()
}

// Holders returns every address with a non-zero balance.
func (l *Ledger) Holders() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]common.Address, 0, len(l.balances))
	for addr, b := range l.balances {
		if !b.IsZero() {
			out = append(out, addr)
		}
	}
	return out
}

func (l *Ledger) Mint(to common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balances[to]
	b.Add(&b, amount)
	l.balances[to] = b
	l.supply.Add(&l.supply, amount)
}

func (l *Ledger) Burn(from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balances[from]
	if b.Lt(amount) {
		return chain.Revert(chain.ErrInsufficientAmount, l.component,
			"burn amount %s exceeds balance %s of %s", amount.Dec(), b.Dec(), from.Hex())
	}
	b.Sub(&b, amount)
	l.balances[from] = b
	l.supply.Sub(&l.supply, amount)
	return nil
}

func (l *Ledger) Move(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fb := l.balances[from]
	if fb.Lt(amount) {
		return chain.Revert(chain.ErrInsufficientAmount, l.component,
			"transfer amount %s exceeds balance %s of %s", amount.Dec(), fb.Dec(), from.Hex())
	}
	fb.Sub(&fb, amount)
	l.balances[from] = fb

	tb := l.balances[to]
	tb.Add(&tb, amount)
	l.balances[to] = tb
	return nil
}

func (l *Ledger) SetAllowance(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = *amount.Clone()
}

func (l *Ledger) SpendAllowance(owner, spender common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.allowances[owner][spender]
	if a.Lt(amount) {
		return chain.Revert(chain.ErrInsufficientAmount, l.component,
			"allowance %s of %s for %s is below %s", a.Dec(), owner.Hex(), spender.Hex(), amount.Dec())
	}
	a.Sub(&a, amount)
	l.allowances[owner][spender] = a
	return nil
}

// =====================================================
// Snapshot
// =====================================================

func (l *Ledger) Snapshot() any {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := ledgerSnapshot{
		supply:     l.supply,
		balances:   make(map[common.Address]uint256.Int, len(l.balances)),
		allowances: make(map[common.Address]map[common.Address]uint256.Int, len(l.allowances)),
	}
	for k, v := range l.balances {
		s.balances[k] = v
	}
	for owner, m := range l.allowances {
		cp := make(map[common.Address]uint256.Int, len(m))
		for spender, v := range m {
			cp[spender] = v
		}
		s.allowances[owner] = cp
	}
	return s
}

func (l *Ledger) Restore(snapshot any) {
	s := snapshot.(ledgerSnapshot)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.supply = s.supply
	l.balances = s.balances
	l.allowances = s.allowances
}
