package converter

import (
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/vault"
)

// Trade is a single-account swap through one converter.
type Trade struct {
	InputMarketID  uint64
	OutputMarketID uint64
	Amount         *uint256.Int
	MinOutput      *uint256.Int
	OrderData      []byte
}

func (t Trade) params(accountID int, account margin.AccountInfo) ActionParams {
	return ActionParams{
		SolidAccountID:     accountID,
		LiquidAccountID:    accountID,
		SolidAccountOwner:  account.Owner,
		LiquidAccountOwner: account.Owner,
		OutputMarketID:     t.OutputMarketID,
		InputMarketID:      t.InputMarketID,
		MinOutputAmount:    t.MinOutput,
		InputAmount:        t.Amount,
		OrderData:          t.OrderData,
	}
}

// WrapLeg lets a vault swap into its own ticket with w.
func WrapLeg(w Wrapper, t Trade) vault.TradeLeg {
	return func(accountID int, account margin.AccountInfo) ([]margin.Action, error) {
		return w.CreateActionsForWrapping(t.params(accountID, account))
	}
}

// UnwrapLeg lets a vault swap out of its own ticket with u.
func UnwrapLeg(u Unwrapper, t Trade) vault.TradeLeg {
	return func(accountID int, account margin.AccountInfo) ([]margin.Action, error) {
		return u.CreateActionsForUnwrapping(t.params(accountID, account))
	}
}
