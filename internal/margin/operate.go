package margin

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	icommon "frizo/isolation_vaults/internal/common"
)

// Operate executes actions in order against accounts. The caller must own
// every account or be an operator for its owner. A failed action fails the
// whole batch.
func (e *Engine) Operate(call *chain.Call, accounts []AccountInfo, actions []Action) error {
	sender := call.Sender()
	for _, acct := range accounts {
		if !e.isOperator(acct.Owner, sender) {
			return chain.Revert(chain.ErrAuthorization, component,
				"unpermissioned operator %s for account %s", sender.Hex(), acct)
		}
	}

	batchID := icommon.GenerateBatchID()
	e.log.Debug("operate", "batch", batchID, "sender", sender.Hex(), "accounts", len(accounts), "actions", len(actions))

	self := call.From(e.address)
	for i, action := range actions {
		if err := e.apply(self, sender, accounts, action); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}
	}
	call.Emit(e.address, "Operate", "batch", batchID, "sender", sender, "actions", len(actions))
	return nil
}

func (e *Engine) apply(self *chain.Call, sender common.Address, accounts []AccountInfo, action Action) error {
	acct, err := accountAt(accounts, action.AccountID)
	if err != nil {
		return err
	}
	amount := action.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}

	switch action.Type {
	case Deposit:
		return e.deposit(self, sender, acct, action.PrimaryMarketID, action.OtherAddress, amount)
	case Withdraw:
		return e.withdraw(self, acct, action.PrimaryMarketID, action.OtherAddress, amount)
	case Transfer:
		other, err := accountAt(accounts, action.OtherAccountID)
		if err != nil {
			return err
		}
		if err := e.debit(acct, action.PrimaryMarketID, amount); err != nil {
			return err
		}
		e.credit(other, action.PrimaryMarketID, amount)
		return nil
	case Sell:
		return e.sell(self, acct, action, amount)
	case Call:
		contract, ok := self.Chain().Contract(action.OtherAddress)
		if !ok {
			return chain.Revert(chain.ErrState, component, "no contract at %s", action.OtherAddress.Hex())
		}
		callee, ok := contract.(Callee)
		if !ok {
			return chain.Revert(chain.ErrState, component, "%s is not a callee", action.OtherAddress.Hex())
		}
		return callee.CallFunction(self, sender, acct, action.Data)
	default:
		return chain.Revert(chain.ErrState, component, "unknown action type %d", action.Type)
	}
}

func (e *Engine) deposit(self *chain.Call, sender common.Address, acct AccountInfo, marketID uint64,
	from common.Address, amount *uint256.Int) error {
	if from != acct.Owner && from != sender {
		return chain.Revert(chain.ErrAuthorization, component,
			"invalid deposit source %s for account %s", from.Hex(), acct)
	}
	m, err := e.Market(marketID)
	if err != nil {
		return err
	}
	if err := m.Token.TransferFrom(self, from, e.address, amount); err != nil {
		return err
	}
	e.credit(acct, marketID, amount)
	return nil
}

func (e *Engine) withdraw(self *chain.Call, acct AccountInfo, marketID uint64,
	to common.Address, amount *uint256.Int) error {
	m, err := e.Market(marketID)
	if err != nil {
		return err
	}
	if err := e.debit(acct, marketID, amount); err != nil {
		return err
	}
	return m.Token.Transfer(self, to, amount)
}

func (e *Engine) sell(self *chain.Call, acct AccountInfo, action Action, amount *uint256.Int) error {
	input, err := e.Market(action.PrimaryMarketID)
	if err != nil {
		return err
	}
	output, err := e.Market(action.SecondaryMarketID)
	if err != nil {
		return err
	}
	contract, ok := self.Chain().Contract(action.OtherAddress)
	if !ok {
		return chain.Revert(chain.ErrState, component, "no contract at %s", action.OtherAddress.Hex())
	}
	wrapper, ok := contract.(ExchangeWrapper)
	if !ok {
		return chain.Revert(chain.ErrState, component, "%s is not an exchange wrapper", action.OtherAddress.Hex())
	}

	if err := e.debit(acct, input.ID, amount); err != nil {
		return err
	}
	if err := input.Token.Transfer(self, action.OtherAddress, amount); err != nil {
		return err
	}
	out, err := wrapper.Exchange(self, acct.Owner, e.address, output.Token.Address(), input.Token.Address(), amount, action.Data)
	if err != nil {
		return err
	}
	if err := output.Token.TransferFrom(self, action.OtherAddress, e.address, out); err != nil {
		return err
	}
	e.credit(acct, output.ID, out)
	return nil
}

func accountAt(accounts []AccountInfo, id int) (AccountInfo, error) {
	if id < 0 || id >= len(accounts) {
		return AccountInfo{}, chain.Revert(chain.ErrState, component, "invalid account id %d", id)
	}
	return accounts[id], nil
}
