package vault

import (
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
)

// OnlyEOALogic accepts user operations only when they originate from an
// account with no code. The factory may call on the owner's behalf when the
// owner signed the batch. This is a best-effort restriction: it looks at the
// origin only.
type OnlyEOALogic struct {
	Implementation
}

var _ Implementation = OnlyEOALogic{}

func requireEOA(v *Proxy, call *chain.Call) error {
	sender, origin := call.Sender(), call.Origin()
	direct := sender == origin
	viaFactory := sender == v.factory.Address() && origin == v.Owner()
	if !direct && !viaFactory {
		return chain.Revert(chain.ErrAuthorization, vaultComponent,
			"only EOA can call, sender %s origin %s", sender.Hex(), origin.Hex())
	}
	if call.Chain().IsContract(origin) {
		return chain.Revert(chain.ErrAuthorization, vaultComponent, "origin %s is a contract", origin.Hex())
	}
	return nil
}

func (l OnlyEOALogic) DepositIntoVaultForDolomiteMargin(v *Proxy, call *chain.Call, toAccountNumber uint64, amount *uint256.Int) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.DepositIntoVaultForDolomiteMargin(v, call, toAccountNumber, amount)
}

func (l OnlyEOALogic) WithdrawFromVaultForDolomiteMargin(v *Proxy, call *chain.Call, fromAccountNumber uint64, amount *uint256.Int) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.WithdrawFromVaultForDolomiteMargin(v, call, fromAccountNumber, amount)
}

func (l OnlyEOALogic) DepositOtherTokenIntoDolomiteMarginForVaultOwner(v *Proxy, call *chain.Call, toAccountNumber, marketID uint64,
	amount *uint256.Int) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.DepositOtherTokenIntoDolomiteMarginForVaultOwner(v, call, toAccountNumber, marketID, amount)
}

func (l OnlyEOALogic) OpenBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, toAccountNumber uint64, amount *uint256.Int) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.OpenBorrowPosition(v, call, fromAccountNumber, toAccountNumber, amount)
}

func (l OnlyEOALogic) CloseBorrowPositionWithUnderlyingVaultToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.CloseBorrowPositionWithUnderlyingVaultToken(v, call, borrowAccountNumber, toAccountNumber)
}

func (l OnlyEOALogic) CloseBorrowPositionWithOtherTokens(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	marketIDs []uint64) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.CloseBorrowPositionWithOtherTokens(v, call, borrowAccountNumber, toAccountNumber, marketIDs)
}

func (l OnlyEOALogic) TransferIntoPositionWithUnderlyingToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber uint64,
	amount *uint256.Int) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.TransferIntoPositionWithUnderlyingToken(v, call, fromAccountNumber, borrowAccountNumber, amount)
}

func (l OnlyEOALogic) TransferIntoPositionWithOtherToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.TransferIntoPositionWithOtherToken(v, call, fromAccountNumber, borrowAccountNumber, marketID, amount, flag)
}

func (l OnlyEOALogic) TransferFromPositionWithUnderlyingToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	amount *uint256.Int) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.TransferFromPositionWithUnderlyingToken(v, call, borrowAccountNumber, toAccountNumber, amount)
}

func (l OnlyEOALogic) TransferFromPositionWithOtherToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.TransferFromPositionWithOtherToken(v, call, borrowAccountNumber, toAccountNumber, marketID, amount, flag)
}

func (l OnlyEOALogic) RepayAllForBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	flag margin.BalanceCheckFlag) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.RepayAllForBorrowPosition(v, call, fromAccountNumber, borrowAccountNumber, marketID, flag)
}

func (l OnlyEOALogic) SwapExactInputForOutput(v *Proxy, call *chain.Call, tradeAccountNumber uint64, leg TradeLeg) error {
	if err := requireEOA(v, call); err != nil {
		return err
	}
	return l.Implementation.SwapExactInputForOutput(v, call, tradeAccountNumber, leg)
}
