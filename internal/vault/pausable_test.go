package vault_test

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/config"
	"frizo/isolation_vaults/internal/converter"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/system"
	"frizo/isolation_vaults/internal/vault"
	"frizo/isolation_vaults/internal/vault/mocks"
)

func setPaused(t *testing.T, sys *system.System, paused bool) {
	t.Helper()
	require.NoError(t, sys.Chain.Transact(sys.Owner, func(call *chain.Call) error {
		return sys.Switch.SetPaused(call, paused)
	}))
}

// pausedWithDebt leaves alice with 200 ticket split over accounts 0 and 1,
// 100 USDC in account 0 and 50 USDC of debt in account 1.
func pausedWithDebt(t *testing.T) (*system.System, *vault.Proxy) {
	t.Helper()
	sys := newSystem(t, config.VariantPausable)
	proxy := openVault(t, sys, alice, 200)
	depositOther(t, sys, proxy, "USDC", 50)
	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.OpenBorrowPosition(call, 0, 1, u(100))
	}))
	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.TransferFromPositionWithOtherToken(call, 1, 0, sys.Markets["USDC"], u(50), margin.BalanceCheckNone)
	}))
	setPaused(t, sys, true)
	require.True(t, proxy.IsExternalRedemptionPaused())
	return sys, proxy
}

func TestPausedRejectsRiskIncrease(t *testing.T) {
	sys, proxy := pausedWithDebt(t)
	usdc := sys.Markets["USDC"]

	cases := map[string]func(call *chain.Call) error{
		"open": func(call *chain.Call) error {
			return proxy.OpenBorrowPosition(call, 0, 2, u(10))
		},
		"ticket into position": func(call *chain.Call) error {
			return proxy.TransferIntoPositionWithUnderlyingToken(call, 0, 1, u(10))
		},
		"ticket out of position": func(call *chain.Call) error {
			return proxy.TransferFromPositionWithUnderlyingToken(call, 1, 0, u(10))
		},
		"close with debt": func(call *chain.Call) error {
			return proxy.CloseBorrowPositionWithUnderlyingVaultToken(call, 1, 0)
		},
		"more debt": func(call *chain.Call) error {
			return proxy.TransferFromPositionWithOtherToken(call, 1, 0, usdc, u(1), margin.BalanceCheckNone)
		},
		"source into debt": func(call *chain.Call) error {
			return proxy.TransferIntoPositionWithOtherToken(call, 0, 1, usdc, u(101), margin.BalanceCheckNone)
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, owner(sys, proxy, fn), chain.ErrPaused)
		})
	}
	assert.Equal(t, wei(-50), balance(sys, proxy, 1, usdc))
	require.NoError(t, sys.CheckInvariants())
}

func TestPausedAllowsDebtReduction(t *testing.T) {
	sys, proxy := pausedWithDebt(t)
	usdc := sys.Markets["USDC"]

	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.TransferIntoPositionWithOtherToken(call, 0, 1, usdc, u(50), margin.BalanceCheckTo)
	}))
	assert.True(t, balance(sys, proxy, 1, usdc).IsZero())

	// no debt left, so the position can be unwound
	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.CloseBorrowPositionWithUnderlyingVaultToken(call, 1, 0)
	}))
	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.WithdrawFromVaultForDolomiteMargin(call, 0, u(200))
	}))
	assert.Equal(t, u(200), sys.Underlying.BalanceOf(alice))
	require.NoError(t, sys.CheckInvariants())

	setPaused(t, sys, false)
	assert.False(t, proxy.IsExternalRedemptionPaused())
}

func TestPausedAllowsTopUps(t *testing.T) {
	sys, proxy := pausedWithDebt(t)
	usdc := sys.Markets["USDC"]

	t.Run("overpay", func(t *testing.T) {
		require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
			return proxy.TransferIntoPositionWithOtherToken(call, 0, 1, usdc, u(60), margin.BalanceCheckFrom)
		}))
		assert.Equal(t, wei(10), balance(sys, proxy, 1, usdc))
		assert.Equal(t, wei(40), balance(sys, proxy, 0, usdc))
	})

	t.Run("collateral into a debt-free position", func(t *testing.T) {
		require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
			return proxy.TransferIntoPositionWithOtherToken(call, 0, 1, usdc, u(10), margin.BalanceCheckFrom)
		}))
		assert.Equal(t, wei(20), balance(sys, proxy, 1, usdc))
		assert.Equal(t, wei(30), balance(sys, proxy, 0, usdc))
	})

	t.Run("collateral out of a debt-free position", func(t *testing.T) {
		require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
			return proxy.TransferFromPositionWithOtherToken(call, 1, 0, usdc, u(5), margin.BalanceCheckFrom)
		}))
		assert.Equal(t, wei(15), balance(sys, proxy, 1, usdc))
	})
	require.NoError(t, sys.CheckInvariants())
}

func TestPausedCloseWithOtherTokensRepaysDebt(t *testing.T) {
	sys, proxy := pausedWithDebt(t)
	usdc := sys.Markets["USDC"]

	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.CloseBorrowPositionWithOtherTokens(call, 1, 0, []uint64{usdc})
	}))
	assert.True(t, balance(sys, proxy, 1, usdc).IsZero())
	assert.Equal(t, wei(50), balance(sys, proxy, 0, usdc))

	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.CloseBorrowPositionWithUnderlyingVaultToken(call, 1, 0)
	}))
	assert.Equal(t, wei(200), balance(sys, proxy, 0, sys.TicketMarketID()))
	require.NoError(t, sys.CheckInvariants())
}

func TestPausedRepayAll(t *testing.T) {
	sys, proxy := pausedWithDebt(t)
	usdc := sys.Markets["USDC"]

	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.RepayAllForBorrowPosition(call, 0, 1, usdc, margin.BalanceCheckFrom)
	}))
	assert.True(t, balance(sys, proxy, 1, usdc).IsZero())
	assert.Equal(t, wei(50), balance(sys, proxy, 0, usdc))
}

func TestPausedSwaps(t *testing.T) {
	sys, proxy := pausedWithDebt(t)
	supplyLiquidity(t, sys, "USDC", 1000)
	usdc, ticket := sys.Markets["USDC"], sys.TicketMarketID()

	t.Run("zap out of the vault token", func(t *testing.T) {
		leg := converter.UnwrapLeg(sys.Unwrapper, converter.Trade{
			InputMarketID: ticket, OutputMarketID: usdc, Amount: u(10), MinOutput: u(10),
		})
		err := owner(sys, proxy, func(call *chain.Call) error {
			return proxy.SwapExactInputForOutput(call, 1, leg)
		})
		assert.ErrorIs(t, err, chain.ErrPaused)
	})

	t.Run("borrow more to wrap", func(t *testing.T) {
		leg := converter.WrapLeg(sys.Wrapper, converter.Trade{
			InputMarketID: usdc, OutputMarketID: ticket, Amount: u(10), MinOutput: u(10),
		})
		err := owner(sys, proxy, func(call *chain.Call) error {
			return proxy.SwapExactInputForOutput(call, 1, leg)
		})
		assert.ErrorIs(t, err, chain.ErrPaused)
		assert.Equal(t, wei(-50), balance(sys, proxy, 1, usdc))
	})

	t.Run("wrap from collateral", func(t *testing.T) {
		leg := converter.WrapLeg(sys.Wrapper, converter.Trade{
			InputMarketID: usdc, OutputMarketID: ticket, Amount: u(10), MinOutput: u(10),
		})
		require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
			return proxy.SwapExactInputForOutput(call, 0, leg)
		}))
		assert.Equal(t, wei(90), balance(sys, proxy, 0, usdc))
		assert.Equal(t, wei(110), balance(sys, proxy, 0, ticket))
		require.NoError(t, sys.CheckInvariants())
	})
}

func TestPausableWithMockPauser(t *testing.T) {
	ctrl := gomock.NewController(t)
	pauser := mocks.NewMockRedemptionPauser(ctrl)
	gomock.InOrder(
		pauser.EXPECT().IsExternalRedemptionPaused().Return(false),
		pauser.EXPECT().IsExternalRedemptionPaused().Return(true),
	)

	sys := newSystem(t, config.VariantBase)
	proxy := openVault(t, sys, alice, 100)
	require.NoError(t, sys.Chain.Transact(sys.Owner, func(call *chain.Call) error {
		return sys.Factory.OwnerSetUserVaultImplementation(call,
			vault.PausableLogic{Implementation: vault.BaseLogic{}, Pauser: pauser})
	}))

	require.NoError(t, owner(sys, proxy, func(call *chain.Call) error {
		return proxy.OpenBorrowPosition(call, 0, 1, u(10))
	}))
	err := owner(sys, proxy, func(call *chain.Call) error {
		return proxy.OpenBorrowPosition(call, 0, 2, u(10))
	})
	assert.ErrorIs(t, err, chain.ErrPaused)
	assert.Equal(t, wei(10), balance(sys, proxy, 1, sys.TicketMarketID()))
}
