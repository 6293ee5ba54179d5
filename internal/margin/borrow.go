package margin

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
)

// Borrow-position operations act on the calling contract's own accounts.
// Only callers authorized through SetIsCallerAuthorized may use them.

// SetIsCallerAuthorized is callable by the owner or a global operator.
func (e *Engine) SetIsCallerAuthorized(call *chain.Call, caller common.Address, authorized bool) error {
	if call.Sender() != e.owner && !e.IsGlobalOperator(call.Sender()) {
		return chain.Revert(chain.ErrAuthorization, component,
			"caller %s cannot authorize borrow-position callers", call.Sender().Hex())
	}

	e.mu.Lock()
	e.authorizedCallers[caller] = authorized
	e.mu.Unlock()

	call.Emit(e.address, "CallerAuthorizationSet", "caller", caller, "authorized", authorized)
	return nil
}

func (e *Engine) OpenBorrowPosition(call *chain.Call, fromAccountNumber, toAccountNumber, marketID uint64,
	amount *uint256.Int, flag BalanceCheckFlag) error {
	if err := e.TransferBetweenAccounts(call, fromAccountNumber, toAccountNumber, marketID, amount, flag); err != nil {
		return err
	}
	call.Emit(e.address, "BorrowPositionOpen", "owner", call.Sender(), "accountNumber", toAccountNumber)
	return nil
}

func (e *Engine) TransferBetweenAccounts(call *chain.Call, fromAccountNumber, toAccountNumber, marketID uint64,
	amount *uint256.Int, flag BalanceCheckFlag) error {
	if err := e.requireAuthorizedCaller(call); err != nil {
		return err
	}
	from := AccountInfo{Owner: call.Sender(), Number: fromAccountNumber}
	to := AccountInfo{Owner: call.Sender(), Number: toAccountNumber}

	if err := e.debit(from, marketID, amount); err != nil {
		return err
	}
	e.credit(to, marketID, amount)
	return e.checkBalances(from, to, flag, marketID)
}

// CloseBorrowPosition moves the whole balance of every listed market from the
// borrow account to toAccountNumber. Negative balances are repaid from it.
func (e *Engine) CloseBorrowPosition(call *chain.Call, borrowAccountNumber, toAccountNumber uint64, marketIDs []uint64) error {
	if err := e.requireAuthorizedCaller(call); err != nil {
		return err
	}
	borrow := AccountInfo{Owner: call.Sender(), Number: borrowAccountNumber}
	to := AccountInfo{Owner: call.Sender(), Number: toAccountNumber}

	for _, id := range marketIDs {
		w := e.book.Balance(borrow, id)
		switch {
		case w.IsPositive():
			if err := e.debit(borrow, id, w.Abs()); err != nil {
				return err
			}
			e.credit(to, id, w.Abs())
		case w.IsNegative():
			if err := e.debit(to, id, w.Abs()); err != nil {
				return err
			}
			e.credit(borrow, id, w.Abs())
		}
	}
	return nil
}

// RepayAllForBorrowPosition covers the borrow account's whole debt in
// marketID from fromAccountNumber. Without debt it does nothing.
func (e *Engine) RepayAllForBorrowPosition(call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	flag BalanceCheckFlag) error {
	if err := e.requireAuthorizedCaller(call); err != nil {
		return err
	}
	from := AccountInfo{Owner: call.Sender(), Number: fromAccountNumber}
	borrow := AccountInfo{Owner: call.Sender(), Number: borrowAccountNumber}

	w := e.book.Balance(borrow, marketID)
	if !w.IsNegative() {
		return nil
	}
	if err := e.debit(from, marketID, w.Abs()); err != nil {
		return err
	}
	e.credit(borrow, marketID, w.Abs())
	return e.checkBalances(from, borrow, flag, marketID)
}

func (e *Engine) requireAuthorizedCaller(call *chain.Call) error {
	return chain.Require(e.IsCallerAuthorized(call.Sender()), chain.ErrAuthorization, component,
		"caller %s is not authorized for borrow positions", call.Sender().Hex())
}

func (e *Engine) checkBalances(from, to AccountInfo, flag BalanceCheckFlag, marketID uint64) error {
	if flag == BalanceCheckFrom || flag == BalanceCheckBoth {
		if w := e.book.Balance(from, marketID); w.IsNegative() {
			return chain.Revert(chain.ErrInsufficientAmount, component,
				"account %s has a negative balance %s in market %d", from, w, marketID)
		}
	}
	if flag == BalanceCheckTo || flag == BalanceCheckBoth {
		if w := e.book.Balance(to, marketID); w.IsNegative() {
			return chain.Revert(chain.ErrInsufficientAmount, component,
				"account %s has a negative balance %s in market %d", to, w, marketID)
		}
	}
	return nil
}
