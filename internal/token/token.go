package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
)

// ERC20 is the token surface the margin engine, vaults and converters use.
type ERC20 interface {
	Address() common.Address
	Symbol() string
	TotalSupply() *uint256.Int
	BalanceOf(owner common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error
	TransferFrom(call *chain.Call, from, to common.Address, amount *uint256.Int) error
	Approve(call *chain.Call, spender common.Address, amount *uint256.Int) error
}

// Token is a freely transferable asset with a single minter.
type Token struct {
	address common.Address
	symbol  string
	minter  common.Address
	ledger  *Ledger
}

var _ ERC20 = (*Token)(nil)

// Deploy creates a token whose minter is the caller.
func Deploy(call *chain.Call, symbol string) *Token {
	ch := call.Chain()
	t := &Token{
		address: ch.NewAddress(),
		symbol:  symbol,
		minter:  call.Sender(),
		ledger:  NewLedger(symbol),
	}
	ch.Register(t.address, t)
	ch.Track(t.ledger)
	return t
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }

func (t *Token) TotalSupply() *uint256.Int {
	return t.ledger.TotalSupply()
}

func (t *Token) BalanceOf(owner common.Address) *uint256.Int {
	return t.ledger.BalanceOf(owner)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	return t.ledger.Allowance(owner, spender)
}

// Mint creates amount new units for to. Only the minter may call.
func (t *Token) Mint(call *chain.Call, to common.Address, amount *uint256.Int) error {
	if call.Sender() != t.minter {
		return chain.Revert(chain.ErrAuthorization, t.symbol, "caller %s is not the minter", call.Sender().Hex())
	}
	t.ledger.Mint(to, amount)
	call.Emit(t.address, "Transfer", "from", common.Address{}, "to", to, "amount", amount.Dec())
	return nil
}

func (t *Token) Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error {
	return t.move(call, call.Sender(), to, amount)
}

func (t *Token) TransferFrom(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	if call.Sender() != from {
		if err := t.ledger.SpendAllowance(from, call.Sender(), amount); err != nil {
			return err
		}
	}
	return t.move(call, from, to, amount)
}

func (t *Token) Approve(call *chain.Call, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return chain.Revert(chain.ErrInvariantViolation, t.symbol, "approve to the zero address")
	}
	t.ledger.SetAllowance(call.Sender(), spender, amount)
	call.Emit(t.address, "Approval", "owner", call.Sender(), "spender", spender, "amount", amount.Dec())
	return nil
}

func (t *Token) move(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return chain.Revert(chain.ErrInvariantViolation, t.symbol, "transfer to the zero address")
	}
	if err := t.ledger.Move(from, to, amount); err != nil {
		return err
	}
	call.Emit(t.address, "Transfer", "from", from, "to", to, "amount", amount.Dec())
	return nil
}
