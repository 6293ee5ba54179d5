package converter_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/config"
	"frizo/isolation_vaults/internal/converter"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/num"
	"frizo/isolation_vaults/internal/system"
	"frizo/isolation_vaults/internal/token"
	"frizo/isolation_vaults/internal/vault"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	lender = common.HexToAddress("0x000000000000000000000000000000000000f00d")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newSystem(t *testing.T, variant string, rate string) *system.System {
	t.Helper()
	cfg := config.Default()
	cfg.Vault.Variant = variant
	cfg.Vault.ExchangeRate = rate
	sys, err := system.New(cfg, logger.Discard())
	require.NoError(t, err)
	return sys
}

func openVault(t *testing.T, sys *system.System, amount uint64) *vault.Proxy {
	t.Helper()
	require.NoError(t, sys.Fund(alice, amount))
	proxy, err := sys.CreateVault(alice)
	require.NoError(t, err)
	require.NoError(t, sys.Chain.Transact(alice, func(call *chain.Call) error {
		if err := sys.Underlying.Approve(call, proxy.Address(), u(amount)); err != nil {
			return err
		}
		if err := proxy.DepositIntoVaultForDolomiteMargin(call, 0, u(amount)); err != nil {
			return err
		}
		return proxy.OpenBorrowPosition(call, 0, 1, u(amount))
	}))
	return proxy
}

func supplyLiquidity(t *testing.T, sys *system.System, symbol string, amount uint64) {
	t.Helper()
	require.NoError(t, sys.FundOther(symbol, lender, amount))
	require.NoError(t, sys.Chain.Transact(lender, func(call *chain.Call) error {
		if err := sys.Others[symbol].Approve(call, sys.Engine.Address(), u(amount)); err != nil {
			return err
		}
		return sys.Engine.Operate(call, []margin.AccountInfo{{Owner: lender}}, []margin.Action{{
			Type:            margin.Deposit,
			PrimaryMarketID: sys.Markets[symbol],
			OtherAddress:    lender,
			Amount:          u(amount),
		}})
	}))
}

func wei(v int64) num.Wei {
	if v < 0 {
		return num.NegWei(uint256.NewInt(uint64(-v)))
	}
	return num.NewWei(uint256.NewInt(uint64(v)))
}

func TestConverterSurface(t *testing.T) {
	sys := newSystem(t, config.VariantBase, "2")
	usdc := sys.Others["USDC"].Address()
	ticket := sys.Factory.Address()

	assert.Equal(t, ticket, sys.Wrapper.Token())
	assert.Equal(t, ticket, sys.Unwrapper.Token())
	assert.Equal(t, 1, sys.Wrapper.ActionsLength())
	assert.Equal(t, 2, sys.Unwrapper.ActionsLength())
	assert.True(t, sys.Factory.IsTokenConverterTrusted(sys.Wrapper.Address()))
	assert.True(t, sys.Factory.IsTokenConverterTrusted(sys.Unwrapper.Address()))

	t.Run("exchange cost", func(t *testing.T) {
		cost, err := sys.Unwrapper.GetExchangeCost(ticket, usdc, u(10), nil)
		require.NoError(t, err)
		assert.Equal(t, u(20), cost)

		cost, err = sys.Wrapper.GetExchangeCost(usdc, ticket, u(9), nil)
		require.NoError(t, err)
		assert.Equal(t, u(4), cost)
	})

	t.Run("exchange cost rejects", func(t *testing.T) {
		_, err := sys.Unwrapper.GetExchangeCost(usdc, ticket, u(10), nil)
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)
		_, err = sys.Unwrapper.GetExchangeCost(ticket, sys.Underlying.Address(), u(10), nil)
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)
		_, err = sys.Wrapper.GetExchangeCost(usdc, ticket, u(0), nil)
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)
		_, err = sys.Wrapper.GetExchangeCost(usdc, usdc, u(1), nil)
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)
	})

	t.Run("build actions", func(t *testing.T) {
		proxy := openVault(t, sys, 10)
		actions, err := sys.Unwrapper.CreateActionsForUnwrapping(converter.ActionParams{
			SolidAccountID:     1,
			LiquidAccountID:    0,
			LiquidAccountOwner: proxy.Address(),
			InputMarketID:      sys.TicketMarketID(),
			OutputMarketID:     sys.Markets["USDC"],
			InputAmount:        u(5),
			MinOutputAmount:    u(1),
		})
		require.NoError(t, err)
		require.Len(t, actions, sys.Unwrapper.ActionsLength())
		assert.Equal(t, margin.Call, actions[0].Type)
		assert.Equal(t, 0, actions[0].AccountID)
		assert.Equal(t, margin.Sell, actions[1].Type)
		assert.Equal(t, 1, actions[1].AccountID)

		amount, err := converter.DecodeCallData(actions[0].Data)
		require.NoError(t, err)
		assert.Equal(t, u(5), amount)

		_, err = sys.Unwrapper.CreateActionsForUnwrapping(converter.ActionParams{
			LiquidAccountOwner: alice,
			InputMarketID:      sys.TicketMarketID(),
			OutputMarketID:     sys.Markets["USDC"],
			InputAmount:        u(5),
		})
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)

		_, err = sys.Wrapper.CreateActionsForWrapping(converter.ActionParams{
			InputMarketID:  sys.TicketMarketID(),
			OutputMarketID: sys.TicketMarketID(),
			InputAmount:    u(5),
		})
		assert.ErrorIs(t, err, chain.ErrInvariantViolation)
	})

	t.Run("engine only", func(t *testing.T) {
		err := sys.Chain.Transact(alice, func(call *chain.Call) error {
			_, err := sys.Wrapper.Exchange(call, alice, alice, ticket, usdc, u(1), nil)
			return err
		})
		assert.ErrorIs(t, err, chain.ErrAuthorization)

		err = sys.Chain.Transact(alice, func(call *chain.Call) error {
			return sys.Unwrapper.CallFunction(call, alice, margin.AccountInfo{Owner: alice}, nil)
		})
		assert.ErrorIs(t, err, chain.ErrAuthorization)
	})
}

func TestDeployValidation(t *testing.T) {
	sys := newSystem(t, config.VariantBase, "1")
	err := sys.Chain.Transact(sys.Owner, func(call *chain.Call) error {
		_, err := converter.DeployWrapper(call, converter.Params{Factory: sys.Factory, Desk: sys.Desk})
		return err
	})
	assert.ErrorIs(t, err, chain.ErrState)

	err = sys.Chain.Transact(sys.Owner, func(call *chain.Call) error {
		_, err := converter.DeployUnwrapper(call, converter.Params{Factory: sys.Factory, Desk: sys.Desk,
			Tokens: []token.ERC20{sys.Factory}})
		return err
	})
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)
}

func TestVaultWrapAndUnwrap(t *testing.T) {
	sys := newSystem(t, config.VariantBase, "1")
	proxy := openVault(t, sys, 100)
	supplyLiquidity(t, sys, "USDC", 1000)
	usdc, ticket := sys.Markets["USDC"], sys.TicketMarketID()

	wrap := converter.WrapLeg(sys.Wrapper, converter.Trade{
		InputMarketID: usdc, OutputMarketID: ticket, Amount: u(50), MinOutput: u(50),
	})
	require.NoError(t, sys.Chain.Transact(alice, func(call *chain.Call) error {
		return proxy.SwapExactInputForOutput(call, 1, wrap)
	}))
	assert.Equal(t, wei(-50), sys.Engine.Balance(proxy.Account(1), usdc))
	assert.Equal(t, wei(150), sys.Engine.Balance(proxy.Account(1), ticket))
	assert.Equal(t, u(150), proxy.UnderlyingBalance())
	assert.True(t, sys.Factory.BalanceOf(sys.Wrapper.Address()).IsZero())
	require.NoError(t, sys.CheckInvariants())

	unwrap := converter.UnwrapLeg(sys.Unwrapper, converter.Trade{
		InputMarketID: ticket, OutputMarketID: usdc, Amount: u(50), MinOutput: u(50),
	})
	require.NoError(t, sys.Chain.Transact(alice, func(call *chain.Call) error {
		return proxy.SwapExactInputForOutput(call, 1, unwrap)
	}))
	assert.True(t, sys.Engine.Balance(proxy.Account(1), usdc).IsZero())
	assert.Equal(t, wei(100), sys.Engine.Balance(proxy.Account(1), ticket))
	assert.Equal(t, u(100), proxy.UnderlyingBalance())
	assert.True(t, sys.Factory.BalanceOf(sys.Unwrapper.Address()).IsZero())
	require.NoError(t, sys.CheckInvariants())

	t.Run("min output", func(t *testing.T) {
		leg := converter.WrapLeg(sys.Wrapper, converter.Trade{
			InputMarketID: usdc, OutputMarketID: ticket, Amount: u(10), MinOutput: u(11),
		})
		err := sys.Chain.Transact(alice, func(call *chain.Call) error {
			return proxy.SwapExactInputForOutput(call, 1, leg)
		})
		assert.ErrorIs(t, err, chain.ErrInsufficientAmount)
		assert.Equal(t, u(100), proxy.UnderlyingBalance())
	})

	t.Run("unwrap more than held", func(t *testing.T) {
		leg := converter.UnwrapLeg(sys.Unwrapper, converter.Trade{
			InputMarketID: ticket, OutputMarketID: usdc, Amount: u(101), MinOutput: u(1),
		})
		err := sys.Chain.Transact(alice, func(call *chain.Call) error {
			return proxy.SwapExactInputForOutput(call, 1, leg)
		})
		assert.ErrorIs(t, err, chain.ErrInsufficientAmount)
		require.NoError(t, sys.CheckInvariants())
	})
}

func TestLiquidationUnwrap(t *testing.T) {
	for _, variant := range []string{config.VariantBase, config.VariantPausableEOA} {
		t.Run(variant, func(t *testing.T) {
			sys := newSystem(t, variant, "1.5")
			proxy := openVault(t, sys, 200)
			usdc, ticket := sys.Markets["USDC"], sys.TicketMarketID()
			liquid := proxy.Account(1)
			solid := margin.AccountInfo{Owner: sys.Liquidator}

			unwrap, err := sys.Unwrapper.CreateActionsForUnwrapping(converter.ActionParams{
				SolidAccountID:     1,
				LiquidAccountID:    0,
				SolidAccountOwner:  solid.Owner,
				LiquidAccountOwner: liquid.Owner,
				InputMarketID:      ticket,
				OutputMarketID:     usdc,
				InputAmount:        u(100),
				MinOutputAmount:    u(150),
			})
			require.NoError(t, err)
			seize := margin.Action{Type: margin.Transfer, AccountID: 0, OtherAccountID: 1, PrimaryMarketID: ticket, Amount: u(100)}
			actions := append([]margin.Action{seize}, unwrap...)

			require.NoError(t, sys.Chain.Transact(sys.Liquidator, func(call *chain.Call) error {
				return sys.Engine.Operate(call, []margin.AccountInfo{liquid, solid}, actions)
			}))

			assert.Equal(t, wei(100), sys.Engine.Balance(liquid, ticket))
			assert.True(t, sys.Engine.Balance(solid, ticket).IsZero())
			assert.Equal(t, wei(150), sys.Engine.Balance(solid, usdc))
			assert.Equal(t, u(100), proxy.UnderlyingBalance())
			assert.Equal(t, u(100), sys.Factory.TotalSupply())
			require.NoError(t, sys.CheckInvariants())
		})
	}
}

func TestLiquidationRequiresOperator(t *testing.T) {
	sys := newSystem(t, config.VariantBase, "1")
	proxy := openVault(t, sys, 200)
	outsider := common.HexToAddress("0x00000000000000000000000000000000000bad00")

	data, err := converter.EncodeCallData(u(10))
	require.NoError(t, err)
	err = sys.Chain.Transact(outsider, func(call *chain.Call) error {
		return sys.Unwrapper.CallFunction(call.From(sys.Engine.Address()), outsider, proxy.Account(1), data)
	})
	assert.ErrorIs(t, err, chain.ErrAuthorization)

	err = sys.Chain.Transact(outsider, func(call *chain.Call) error {
		return sys.Unwrapper.CallFunction(call.From(sys.Engine.Address()), sys.Liquidator, proxy.Account(1), data)
	})
	require.NoError(t, err)
	_, pending := sys.Factory.PendingTransfer()
	assert.True(t, pending)

	tooMuch, err := converter.EncodeCallData(u(201))
	require.NoError(t, err)
	err = sys.Chain.Transact(outsider, func(call *chain.Call) error {
		return sys.Unwrapper.CallFunction(call.From(sys.Engine.Address()), sys.Liquidator, proxy.Account(1), tooMuch)
	})
	assert.ErrorIs(t, err, chain.ErrInsufficientAmount)
}

func TestFixedRateDesk(t *testing.T) {
	sys := newSystem(t, config.VariantBase, "2.5")
	usdc := sys.Others["USDC"]

	q, err := sys.Desk.Quote(sys.Underlying.Address(), usdc.Address(), u(3))
	require.NoError(t, err)
	assert.Equal(t, u(7), q)

	rate, ok := sys.Desk.Rate(usdc.Address(), sys.Underlying.Address())
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.4")))

	_, err = sys.Desk.Quote(usdc.Address(), sys.Others["WETH"].Address(), u(3))
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)

	err = sys.Chain.Transact(alice, func(call *chain.Call) error {
		return sys.Desk.SetRate(call, usdc, sys.Underlying, decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, chain.ErrAuthorization)

	err = sys.Chain.Transact(sys.Owner, func(call *chain.Call) error {
		return sys.Desk.SetRate(call, usdc, sys.Underlying, decimal.Zero)
	})
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)

	t.Run("swap", func(t *testing.T) {
		require.NoError(t, sys.Fund(alice, 4))
		require.NoError(t, sys.Chain.Transact(alice, func(call *chain.Call) error {
			if err := sys.Underlying.Approve(call, sys.Desk.Address(), u(4)); err != nil {
				return err
			}
			out, err := sys.Desk.Swap(call, sys.Underlying.Address(), usdc.Address(), u(4))
			if err != nil {
				return err
			}
			assert.Equal(t, u(10), out)
			return nil
		}))
		assert.Equal(t, u(10), usdc.BalanceOf(alice))
		assert.True(t, sys.Underlying.BalanceOf(alice).IsZero())
	})
}
