package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
)

// TradeLeg builds the operate actions for a swap on account, which sits at
// accountID in the batch's account list.
type TradeLeg func(accountID int, account margin.AccountInfo) ([]margin.Action, error)

// Implementation is the vault behaviour shared by every Proxy. v carries the
// per-vault storage.
type Implementation interface {
	DepositIntoVaultForDolomiteMargin(v *Proxy, call *chain.Call, toAccountNumber uint64, amount *uint256.Int) error
	WithdrawFromVaultForDolomiteMargin(v *Proxy, call *chain.Call, fromAccountNumber uint64, amount *uint256.Int) error
	DepositOtherTokenIntoDolomiteMarginForVaultOwner(v *Proxy, call *chain.Call, toAccountNumber, marketID uint64, amount *uint256.Int) error

	OpenBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, toAccountNumber uint64, amount *uint256.Int) error
	CloseBorrowPositionWithUnderlyingVaultToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64) error
	CloseBorrowPositionWithOtherTokens(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64, marketIDs []uint64) error

	TransferIntoPositionWithUnderlyingToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber uint64, amount *uint256.Int) error
	TransferIntoPositionWithOtherToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
		amount *uint256.Int, flag margin.BalanceCheckFlag) error
	TransferFromPositionWithUnderlyingToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64, amount *uint256.Int) error
	TransferFromPositionWithOtherToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber, marketID uint64,
		amount *uint256.Int, flag margin.BalanceCheckFlag) error
	RepayAllForBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
		flag margin.BalanceCheckFlag) error

	SwapExactInputForOutput(v *Proxy, call *chain.Call, tradeAccountNumber uint64, leg TradeLeg) error

	// Factory-only legs of converter flows.
	ExecuteDepositIntoVault(v *Proxy, call *chain.Call, from common.Address, amount *uint256.Int) error
	ExecuteWithdrawalFromVault(v *Proxy, call *chain.Call, recipient common.Address, amount *uint256.Int) error

	IsExternalRedemptionPaused(v *Proxy) bool
}

// BaseLogic is the default vault behaviour. Mutating calls are owner-only,
// except deposit which the factory may also call, and run under the vault's
// reentrancy guard.
type BaseLogic struct{}

var _ Implementation = BaseLogic{}

func (BaseLogic) DepositIntoVaultForDolomiteMargin(v *Proxy, call *chain.Call, toAccountNumber uint64, amount *uint256.Int) error {
	return v.guard(func() error {
		if err := requireOwnerOrFactory(v, call); err != nil {
			return err
		}
		if toAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid toAccountNumber %d", toAccountNumber)
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		self := call.From(v.address)
		if err := v.factory.UnderlyingToken().TransferFrom(self, v.Owner(), v.address, amount); err != nil {
			return fmt.Errorf("pull underlying: %w", err)
		}
		return v.factory.DepositIntoDolomiteMargin(self, toAccountNumber, amount)
	})
}

func (BaseLogic) WithdrawFromVaultForDolomiteMargin(v *Proxy, call *chain.Call, fromAccountNumber uint64, amount *uint256.Int) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if fromAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid fromAccountNumber %d", fromAccountNumber)
		}
		self := call.From(v.address)
		if err := v.factory.WithdrawFromDolomiteMargin(self, fromAccountNumber, amount); err != nil {
			return err
		}
		if err := v.factory.UnderlyingToken().Transfer(self, v.Owner(), amount); err != nil {
			return fmt.Errorf("release underlying: %w", err)
		}
		return nil
	})
}

func (BaseLogic) DepositOtherTokenIntoDolomiteMarginForVaultOwner(v *Proxy, call *chain.Call, toAccountNumber, marketID uint64,
	amount *uint256.Int) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if err := requireOtherMarket(v, marketID); err != nil {
			return err
		}
		if err := v.factory.DepositOtherTokenIntoDolomiteMarginForVaultOwner(call.From(v.address), toAccountNumber, marketID, amount); err != nil {
			return err
		}
		return checkAllowLists(v, toAccountNumber, marketID)
	})
}

func (BaseLogic) OpenBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, toAccountNumber uint64, amount *uint256.Int) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if fromAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid fromAccountNumber %d", fromAccountNumber)
		}
		if toAccountNumber == DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid toAccountNumber %d", toAccountNumber)
		}
		return engineOf(v).OpenBorrowPosition(call.From(v.address), fromAccountNumber, toAccountNumber,
			v.MarketID(), amount, margin.BalanceCheckBoth)
	})
}

func (BaseLogic) CloseBorrowPositionWithUnderlyingVaultToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		if toAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid toAccountNumber %d", toAccountNumber)
		}
		return engineOf(v).CloseBorrowPosition(call.From(v.address), borrowAccountNumber, toAccountNumber, []uint64{v.MarketID()})
	})
}

func (BaseLogic) CloseBorrowPositionWithOtherTokens(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	marketIDs []uint64) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		for _, id := range marketIDs {
			if err := requireOtherMarket(v, id); err != nil {
				return err
			}
		}
		if err := engineOf(v).CloseBorrowPosition(call.From(v.address), borrowAccountNumber, toAccountNumber, marketIDs); err != nil {
			return err
		}
		return checkAllowLists(v, toAccountNumber, marketIDs...)
	})
}

func (BaseLogic) TransferIntoPositionWithUnderlyingToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber uint64,
	amount *uint256.Int) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if fromAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid fromAccountNumber %d", fromAccountNumber)
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		return engineOf(v).TransferBetweenAccounts(call.From(v.address), fromAccountNumber, borrowAccountNumber,
			v.MarketID(), amount, margin.BalanceCheckBoth)
	})
}

func (BaseLogic) TransferIntoPositionWithOtherToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if fromAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid fromAccountNumber %d", fromAccountNumber)
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		if err := requireOtherMarket(v, marketID); err != nil {
			return err
		}
		if err := engineOf(v).TransferBetweenAccounts(call.From(v.address), fromAccountNumber, borrowAccountNumber,
			marketID, amount, flag); err != nil {
			return err
		}
		return checkAllowLists(v, borrowAccountNumber, marketID)
	})
}

func (BaseLogic) TransferFromPositionWithUnderlyingToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	amount *uint256.Int) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		if toAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid toAccountNumber %d", toAccountNumber)
		}
		return engineOf(v).TransferBetweenAccounts(call.From(v.address), borrowAccountNumber, toAccountNumber,
			v.MarketID(), amount, margin.BalanceCheckBoth)
	})
}

func (BaseLogic) TransferFromPositionWithOtherToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		if toAccountNumber != DefaultAccountNumber {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent, "invalid toAccountNumber %d", toAccountNumber)
		}
		if err := requireOtherMarket(v, marketID); err != nil {
			return err
		}
		if err := engineOf(v).TransferBetweenAccounts(call.From(v.address), borrowAccountNumber, toAccountNumber,
			marketID, amount, flag); err != nil {
			return err
		}
		return checkAllowLists(v, borrowAccountNumber, marketID)
	})
}

func (BaseLogic) RepayAllForBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	flag margin.BalanceCheckFlag) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		if err := requireBorrowAccount(borrowAccountNumber); err != nil {
			return err
		}
		if err := requireOtherMarket(v, marketID); err != nil {
			return err
		}
		if err := engineOf(v).RepayAllForBorrowPosition(call.From(v.address), fromAccountNumber, borrowAccountNumber,
			marketID, flag); err != nil {
			return err
		}
		return checkAllowLists(v, fromAccountNumber, marketID)
	})
}

func (BaseLogic) SwapExactInputForOutput(v *Proxy, call *chain.Call, tradeAccountNumber uint64, leg TradeLeg) error {
	return v.guard(func() error {
		if err := requireOwner(v, call); err != nil {
			return err
		}
		acct := v.Account(tradeAccountNumber)
		actions, input, output, err := buildTrade(leg, acct)
		if err != nil {
			return err
		}
		if err := engineOf(v).Operate(call.From(v.address), []margin.AccountInfo{acct}, actions); err != nil {
			return err
		}
		return checkAllowLists(v, tradeAccountNumber, input, output)
	})
}

func (BaseLogic) ExecuteDepositIntoVault(v *Proxy, call *chain.Call, from common.Address, amount *uint256.Int) error {
	if err := requireFactory(v, call); err != nil {
		return err
	}
	return v.factory.UnderlyingToken().TransferFrom(call.From(v.address), from, v.address, amount)
}

func (BaseLogic) ExecuteWithdrawalFromVault(v *Proxy, call *chain.Call, recipient common.Address, amount *uint256.Int) error {
	if err := requireFactory(v, call); err != nil {
		return err
	}
	return v.factory.UnderlyingToken().Transfer(call.From(v.address), recipient, amount)
}

func (BaseLogic) IsExternalRedemptionPaused(*Proxy) bool {
	return false
}

// =====================================================
// Checks
// =====================================================

func engineOf(v *Proxy) *margin.Engine {
	return v.factory.MarginEngine()
}

func requireOwner(v *Proxy, call *chain.Call) error {
	return chain.Require(call.Sender() == v.Owner(), chain.ErrAuthorization, vaultComponent,
		"only the vault owner can call, caller %s", call.Sender().Hex())
}

func requireOwnerOrFactory(v *Proxy, call *chain.Call) error {
	sender := call.Sender()
	return chain.Require(sender == v.Owner() || sender == v.factory.Address(), chain.ErrAuthorization, vaultComponent,
		"only the vault owner or factory can call, caller %s", sender.Hex())
}

func requireFactory(v *Proxy, call *chain.Call) error {
	return chain.Require(call.Sender() == v.factory.Address(), chain.ErrAuthorization, vaultComponent,
		"only the vault factory can call, caller %s", call.Sender().Hex())
}

func requireBorrowAccount(accountNumber uint64) error {
	return chain.Require(accountNumber != DefaultAccountNumber, chain.ErrInvariantViolation, vaultComponent,
		"invalid borrowAccountNumber %d", accountNumber)
}

// requireOtherMarket rejects the vault's own market where a generic asset is
// expected.
func requireOtherMarket(v *Proxy, marketID uint64) error {
	return chain.Require(marketID != v.MarketID(), chain.ErrInvariantViolation, vaultComponent,
		"invalid marketId %d, the underlying market must go through the vault token", marketID)
}

// checkAllowLists validates the resulting balances of a borrow account:
// positive balances need an allowed collateral market, negative ones an
// allowed debt market. The default account is not a position.
func checkAllowLists(v *Proxy, accountNumber uint64, marketIDs ...uint64) error {
	if accountNumber == DefaultAccountNumber {
		return nil
	}
	ticket := v.MarketID()
	collateral := v.factory.AllowableCollateralMarketIDs()
	debt := v.factory.AllowableDebtMarketIDs()
	acct := v.Account(accountNumber)

	for _, id := range marketIDs {
		if id == ticket {
			continue
		}
		w := engineOf(v).Balance(acct, id)
		if w.IsPositive() && !collateral.Allows(id) {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent,
				"market %d is not an allowable collateral market %s", id, collateral)
		}
		if w.IsNegative() && !debt.Allows(id) {
			return chain.Revert(chain.ErrInvariantViolation, vaultComponent,
				"market %d is not an allowable debt market %s", id, debt)
		}
	}
	return nil
}

// TradedMarkets returns the input market of the first sell and the output
// market of the last sell in actions.
func TradedMarkets(actions []margin.Action) (input, output uint64, err error) {
	found := false
	for _, a := range actions {
		if a.Type != margin.Sell {
			continue
		}
		if !found {
			input = a.PrimaryMarketID
			found = true
		}
		output = a.SecondaryMarketID
	}
	if !found {
		return 0, 0, chain.Revert(chain.ErrInvariantViolation, vaultComponent, "trade has no sell action")
	}
	return input, output, nil
}

func buildTrade(leg TradeLeg, acct margin.AccountInfo) ([]margin.Action, uint64, uint64, error) {
	if leg == nil {
		return nil, 0, 0, chain.Revert(chain.ErrInvariantViolation, vaultComponent, "missing trade leg")
	}
	actions, err := leg(0, acct)
	if err != nil {
		return nil, 0, 0, err
	}
	input, output, err := TradedMarkets(actions)
	if err != nil {
		return nil, 0, 0, err
	}
	return actions, input, output, nil
}

func describe(impl Implementation) string {
	if impl == nil {
		return "none"
	}
	return fmt.Sprintf("%T", impl)
}
