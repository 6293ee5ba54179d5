package margin

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/position"
	"frizo/isolation_vaults/internal/token"
)

// AccountInfo identifies the sub-account an action works on.
type AccountInfo = position.Account

// Market is a listed asset.
type Market struct {
	ID    uint64
	Token token.ERC20
	// IsClosing markets can never be borrowed.
	IsClosing bool
}

// ActionType enum
type ActionType int

const (
	Deposit ActionType = iota
	Withdraw
	Transfer
	Sell
	Call
)

func (t ActionType) String() string {
	switch t {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	case Transfer:
		return "transfer"
	case Sell:
		return "sell"
	case Call:
		return "call"
	default:
		return "unknown"
	}
}

// Action is one step of an operate batch. AccountID and OtherAccountID index
// into the batch's account list.
//
//	Deposit:  pull Amount of PrimaryMarketID from OtherAddress into AccountID
//	Withdraw: send Amount of PrimaryMarketID from AccountID to OtherAddress
//	Transfer: move Amount of PrimaryMarketID from AccountID to OtherAccountID
//	Sell:     trade Amount of PrimaryMarketID for SecondaryMarketID through the
//	          ExchangeWrapper at OtherAddress
//	Call:     invoke the Callee at OtherAddress with Data
type Action struct {
	Type              ActionType
	AccountID         int
	OtherAccountID    int
	PrimaryMarketID   uint64
	SecondaryMarketID uint64
	OtherAddress      common.Address
	Amount            *uint256.Int
	Data              []byte
}

// BalanceCheckFlag selects which side of a borrow-position transfer must not
// end up negative.
type BalanceCheckFlag int

const (
	BalanceCheckNone BalanceCheckFlag = iota
	BalanceCheckFrom
	BalanceCheckTo
	BalanceCheckBoth
)

func (f BalanceCheckFlag) String() string {
	switch f {
	case BalanceCheckFrom:
		return "from"
	case BalanceCheckTo:
		return "to"
	case BalanceCheckBoth:
		return "both"
	default:
		return "none"
	}
}

// ExchangeWrapper converts inputAmount of inputToken, already sent to the
// wrapper, into outputToken. The wrapper must approve receiver for the
// returned amount.
type ExchangeWrapper interface {
	Exchange(call *chain.Call, tradeOriginator, receiver, outputToken, inputToken common.Address,
		inputAmount *uint256.Int, orderData []byte) (*uint256.Int, error)
}

// Callee receives Call actions. sender is the operate caller.
type Callee interface {
	CallFunction(call *chain.Call, sender common.Address, account AccountInfo, data []byte) error
}
