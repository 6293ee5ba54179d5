package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/queue"
	"frizo/isolation_vaults/internal/token"
)

// The factory is the ticket token. Ticket only ever moves with the margin
// engine on one side and only against the pending queued transfer.

var _ token.ERC20 = (*Factory)(nil)

func (f *Factory) TotalSupply() *uint256.Int {
	return f.ledger.TotalSupply()
}

func (f *Factory) BalanceOf(owner common.Address) *uint256.Int {
	return f.ledger.BalanceOf(owner)
}

func (f *Factory) Allowance(owner, spender common.Address) *uint256.Int {
	return f.ledger.Allowance(owner, spender)
}

func (f *Factory) Approve(call *chain.Call, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "approve to the zero address")
	}
	f.ledger.SetAllowance(call.Sender(), spender, amount)
	call.Emit(f.address, "Approval", "owner", call.Sender(), "spender", spender, "amount", amount.Dec())
	return nil
}

func (f *Factory) Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error {
	return f.transfer(call, call.Sender(), to, amount)
}

func (f *Factory) TransferFrom(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	if call.Sender() != from {
		if err := f.ledger.SpendAllowance(from, call.Sender(), amount); err != nil {
			return err
		}
	}
	return f.transfer(call, from, to, amount)
}

func (f *Factory) transfer(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	engine := f.engine.Address()
	if call.Sender() != engine {
		return chain.Revert(chain.ErrAuthorization, factoryComponent,
			"only the margin engine can move %s, caller %s", f.symbol, call.Sender().Hex())
	}
	if from == (common.Address{}) {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "transfer from the zero address")
	}
	if to == (common.Address{}) {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "transfer to the zero address")
	}
	if from != engine && to != engine {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent,
			"transfer from %s to %s does not involve the margin engine", from.Hex(), to.Hex())
	}

	cursor := f.transfers.Cursor()
	queued, err := f.transfers.Consume(func(q queue.QueuedTransfer) error {
		if q.From != from || q.To != to || !q.Amount.Eq(amount) {
			return chain.Revert(chain.ErrInvariantViolation, factoryComponent,
				"transfer {from: %s, to: %s, amount: %s} does not match queued transfer %s at cursor %d",
				from.Hex(), to.Hex(), amount.Dec(), q, cursor)
		}
		if _, ok := f.GetAccountByVault(q.Vault); !ok {
			return chain.Revert(chain.ErrInvariantViolation, factoryComponent,
				"queued vault %s is not registered", q.Vault.Hex())
		}
		for _, leg := range []common.Address{from, to} {
			if leg != engine && leg != q.Vault && !f.IsTokenConverterTrusted(leg) {
				return chain.Revert(chain.ErrInvariantViolation, factoryComponent,
					"%s is neither vault %s nor a trusted converter", leg.Hex(), q.Vault.Hex())
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := f.ledger.Move(from, to, amount); err != nil {
		return err
	}
	call.Emit(f.address, "Transfer", "from", from, "to", to, "amount", amount.Dec(), "cursor", cursor)

	// a converter pulling ticket out of the engine gets the underlying too
	if to != engine && to != queued.Vault {
		proxy, err := f.requireRegisteredVault(queued.Vault)
		if err != nil {
			return err
		}
		return proxy.ExecuteWithdrawalFromVault(call.From(f.address), to, amount)
	}
	return nil
}

func (f *Factory) enqueue(call *chain.Call, t queue.QueuedTransfer) {
	cursor := f.transfers.Cursor()
	if previous, replaced := f.transfers.Enqueue(t); replaced {
		f.log.Warn("pending transfer overwritten", "cursor", cursor, "previous", previous.String(), "next", t.String())
	}
	call.Emit(f.address, "TransferQueued", "cursor", cursor, "from", t.From, "to", t.To,
		"amount", t.Amount.Dec(), "vault", t.Vault)
}

// =====================================================
// Converter entry points
// =====================================================

func requireAmount(amount *uint256.Int) error {
	if amount == nil {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "missing amount")
	}
	if amount.IsZero() {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "invalid amount 0")
	}
	return nil
}

// EnqueueTransferIntoDolomiteMargin grants the calling converter one move of
// amount ticket into the margin engine on behalf of vault.
func (f *Factory) EnqueueTransferIntoDolomiteMargin(call *chain.Call, vault common.Address, amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	converter, err := f.requireTrustedConverter(call)
	if err != nil {
		return err
	}
	if _, err := f.requireRegisteredVault(vault); err != nil {
		return err
	}
	f.enqueue(call, queue.QueuedTransfer{From: converter, To: f.engine.Address(), Amount: *amount.Clone(), Vault: vault})
	return nil
}

// EnqueueTransferFromDolomiteMargin grants the margin engine one move of
// amount ticket to the calling converter on behalf of vault. The matching
// underlying leaves vault when the move executes.
func (f *Factory) EnqueueTransferFromDolomiteMargin(call *chain.Call, vault common.Address, amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	converter, err := f.requireTrustedConverter(call)
	if err != nil {
		return err
	}
	if _, err := f.requireRegisteredVault(vault); err != nil {
		return err
	}
	f.enqueue(call, queue.QueuedTransfer{From: f.engine.Address(), To: converter, Amount: *amount.Clone(), Vault: vault})
	return nil
}

// DepositIntoDolomiteMarginFromTokenConverter moves amount of the underlying
// from the calling converter into vault and mints the matching ticket to the
// converter. The converter must have approved vault.
func (f *Factory) DepositIntoDolomiteMarginFromTokenConverter(call *chain.Call, vault common.Address, amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	converter, err := f.requireTrustedConverter(call)
	if err != nil {
		return err
	}
	proxy, err := f.requireRegisteredVault(vault)
	if err != nil {
		return err
	}
	if err := proxy.ExecuteDepositIntoVault(call.From(f.address), converter, amount); err != nil {
		return err
	}
	f.ledger.Mint(converter, amount)
	call.Emit(f.address, "Transfer", "from", common.Address{}, "to", converter, "amount", amount.Dec())
	return nil
}

// BurnFromTokenConverter burns ticket the calling converter received from the
// margin engine.
func (f *Factory) BurnFromTokenConverter(call *chain.Call, amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	converter, err := f.requireTrustedConverter(call)
	if err != nil {
		return err
	}
	if err := f.ledger.Burn(converter, amount); err != nil {
		return err
	}
	call.Emit(f.address, "Transfer", "from", converter, "to", common.Address{}, "amount", amount.Dec())
	return nil
}

// =====================================================
// Vault entry points
// =====================================================

// DepositIntoDolomiteMargin mints amount ticket for the calling vault and
// deposits it into the vault's toAccountNumber. The vault must already hold
// the underlying.
func (f *Factory) DepositIntoDolomiteMargin(call *chain.Call, toAccountNumber uint64, amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	vault, err := f.requireVaultCaller(call)
	if err != nil {
		return err
	}
	engine := f.engine.Address()
	f.enqueue(call, queue.QueuedTransfer{From: vault, To: engine, Amount: *amount.Clone(), Vault: vault})

	f.ledger.Mint(vault, amount)
	f.ledger.SetAllowance(vault, engine, amount)
	call.Emit(f.address, "Transfer", "from", common.Address{}, "to", vault, "amount", amount.Dec())

	return f.engine.Operate(call.From(f.address),
		[]margin.AccountInfo{{Owner: vault, Number: toAccountNumber}},
		[]margin.Action{{
			Type:            margin.Deposit,
			PrimaryMarketID: f.MarketID(),
			OtherAddress:    vault,
			Amount:          amount,
		}})
}

// WithdrawFromDolomiteMargin withdraws amount ticket from the calling vault's
// fromAccountNumber and burns it. The vault releases the underlying.
func (f *Factory) WithdrawFromDolomiteMargin(call *chain.Call, fromAccountNumber uint64, amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	vault, err := f.requireVaultCaller(call)
	if err != nil {
		return err
	}
	f.enqueue(call, queue.QueuedTransfer{From: f.engine.Address(), To: vault, Amount: *amount.Clone(), Vault: vault})

	if err := f.engine.Operate(call.From(f.address),
		[]margin.AccountInfo{{Owner: vault, Number: fromAccountNumber}},
		[]margin.Action{{
			Type:            margin.Withdraw,
			PrimaryMarketID: f.MarketID(),
			OtherAddress:    vault,
			Amount:          amount,
		}}); err != nil {
		return err
	}
	if err := f.ledger.Burn(vault, amount); err != nil {
		return err
	}
	call.Emit(f.address, "Transfer", "from", vault, "to", common.Address{}, "amount", amount.Dec())
	return nil
}

// DepositOtherTokenIntoDolomiteMarginForVaultOwner pulls amount of a
// non-ticket market from the vault owner, who must have approved the factory,
// and deposits it into the calling vault's toAccountNumber.
func (f *Factory) DepositOtherTokenIntoDolomiteMarginForVaultOwner(call *chain.Call, toAccountNumber, marketID uint64,
	amount *uint256.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	vault, err := f.requireVaultCaller(call)
	if err != nil {
		return err
	}
	if marketID == f.MarketID() {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "invalid market %d", marketID)
	}
	m, err := f.engine.Market(marketID)
	if err != nil {
		return err
	}
	owner, _ := f.GetAccountByVault(vault)

	self := call.From(f.address)
	if err := m.Token.TransferFrom(self, owner, f.address, amount); err != nil {
		return err
	}
	if err := m.Token.Approve(self, f.engine.Address(), amount); err != nil {
		return err
	}
	return f.engine.Operate(self,
		[]margin.AccountInfo{{Owner: vault, Number: toAccountNumber}},
		[]margin.Action{{
			Type:            margin.Deposit,
			PrimaryMarketID: marketID,
			OtherAddress:    f.address,
			Amount:          amount,
		}})
}
