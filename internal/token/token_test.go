package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/logger"
)

var (
	minter = common.HexToAddress("0x100")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
)

func deployToken(t *testing.T) (*chain.Chain, *Token) {
	t.Helper()
	ch := chain.New(minter, logger.Discard())
	var tok *Token
	require.NoError(t, ch.Transact(minter, func(call *chain.Call) error {
		tok = Deploy(call, "USDC")
		return tok.Mint(call, alice, uint256.NewInt(1000))
	}))
	return ch, tok
}

func TestTokenTransfer(t *testing.T) {
	ch, tok := deployToken(t)

	require.NoError(t, ch.Transact(alice, func(call *chain.Call) error {
		return tok.Transfer(call, bob, uint256.NewInt(400))
	}))
	assert.Equal(t, uint256.NewInt(600), tok.BalanceOf(alice))
	assert.Equal(t, uint256.NewInt(400), tok.BalanceOf(bob))
	assert.Equal(t, uint256.NewInt(1000), tok.TotalSupply())

	t.Run("insufficient balance reverts", func(t *testing.T) {
		err := ch.Transact(bob, func(call *chain.Call) error {
			return tok.Transfer(call, alice, uint256.NewInt(401))
		})
		assert.True(t, errors.Is(err, chain.ErrInsufficientAmount))
		assert.Equal(t, uint256.NewInt(400), tok.BalanceOf(bob))
	})

	t.Run("zero address receiver", func(t *testing.T) {
		err := ch.Transact(bob, func(call *chain.Call) error {
			return tok.Transfer(call, common.Address{}, uint256.NewInt(1))
		})
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)
	})
}

func TestTokenTransferFrom(t *testing.T) {
	ch, tok := deployToken(t)

	err := ch.Transact(bob, func(call *chain.Call) error {
		return tok.TransferFrom(call, alice, bob, uint256.NewInt(10))
	})
	assert.ErrorIs(t, err, chain.ErrInsufficientAmount)

	require.NoError(t, ch.Transact(alice, func(call *chain.Call) error {
		return tok.Approve(call, bob, uint256.NewInt(50))
	}))
	require.NoError(t, ch.Transact(bob, func(call *chain.Call) error {
		return tok.TransferFrom(call, alice, bob, uint256.NewInt(30))
	}))
	assert.Equal(t, uint256.NewInt(20), tok.Allowance(alice, bob))
	assert.Equal(t, uint256.NewInt(30), tok.BalanceOf(bob))
}

func TestTokenMintOnlyMinter(t *testing.T) {
	ch, tok := deployToken(t)

	err := ch.Transact(alice, func(call *chain.Call) error {
		return tok.Mint(call, alice, uint256.NewInt(1))
	})
	assert.ErrorIs(t, err, chain.ErrAuthorization)
	assert.Equal(t, uint256.NewInt(1000), tok.TotalSupply())
}

func TestLedgerRollback(t *testing.T) {
	ch, tok := deployToken(t)

	err := ch.Transact(alice, func(call *chain.Call) error {
		if err := tok.Transfer(call, bob, uint256.NewInt(100)); err != nil {
			return err
		}
		return chain.Revert(chain.ErrState, "test", "abort after transfer")
	})
	require.Error(t, err)
	assert.Equal(t, uint256.NewInt(1000), tok.BalanceOf(alice))
	assert.True(t, tok.BalanceOf(bob).IsZero())
}

func TestLedgerBurn(t *testing.T) {
	l := NewLedger("ticket")
	l.Mint(alice, uint256.NewInt(5))

	assert.ErrorIs(t, l.Burn(alice, uint256.NewInt(6)), chain.ErrInsufficientAmount)
	require.NoError(t, l.Burn(alice, uint256.NewInt(5)))
	assert.True(t, l.TotalSupply().IsZero())
	assert.Empty(t, l.Holders())
}

func BenchmarkLedgerMove(b *testing.B) {
	l := NewLedger("bench")
	l.Mint(alice, uint256.NewInt(uint64(b.N)+1))
	one := uint256.NewInt(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = l.Move(alice, bob, one)
	}
}
