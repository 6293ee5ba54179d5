package num

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestWeiArithmetic(t *testing.T) {
	t.Run("add to positive", func(t *testing.T) {
		w := NewWei(uint256.NewInt(10)).Add(uint256.NewInt(5))
		assert.Equal(t, "15", w.String())
		assert.True(t, w.IsPositive())
	})

	t.Run("sub below zero becomes debt", func(t *testing.T) {
		w := NewWei(uint256.NewInt(10)).Sub(uint256.NewInt(25))
		assert.True(t, w.IsNegative())
		assert.Equal(t, "-15", w.String())
		assert.Equal(t, uint256.NewInt(15), w.Abs())
	})

	t.Run("repaying debt exactly gives non-negative zero", func(t *testing.T) {
		w := NegWei(uint256.NewInt(7)).Add(uint256.NewInt(7))
		assert.True(t, w.IsZero())
		assert.False(t, w.IsNegative())
		assert.False(t, w.Negative)
	})

	t.Run("overpaying debt flips sign", func(t *testing.T) {
		w := NegWei(uint256.NewInt(7)).Add(uint256.NewInt(10))
		assert.Equal(t, "3", w.String())
	})

	t.Run("sub from debt grows debt", func(t *testing.T) {
		w := NegWei(uint256.NewInt(7)).Sub(uint256.NewInt(3))
		assert.Equal(t, "-10", w.String())
	})

	t.Run("negative zero is not negative", func(t *testing.T) {
		w := NegWei(uint256.NewInt(0))
		assert.False(t, w.IsNegative())
		assert.Equal(t, "0", w.String())
	})
}

func TestWeiCmp(t *testing.T) {
	neg := NegWei(uint256.NewInt(5))
	bigNeg := NegWei(uint256.NewInt(50))
	pos := NewWei(uint256.NewInt(5))
	zero := Wei{}

	assert.Equal(t, -1, neg.Cmp(pos))
	assert.Equal(t, 1, pos.Cmp(neg))
	assert.Equal(t, -1, bigNeg.Cmp(neg))
	assert.Equal(t, 1, neg.Cmp(bigNeg))
	assert.Equal(t, 0, pos.Cmp(NewWei(uint256.NewInt(5))))
	assert.Equal(t, -1, zero.Cmp(pos))
	assert.Equal(t, 1, zero.Cmp(neg))
}
