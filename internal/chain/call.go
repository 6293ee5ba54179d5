package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	icommon "frizo/isolation_vaults/internal/common"
)

// Call is the message frame a contract method executes in.
type Call struct {
	chain  *Chain
	txID   string
	origin common.Address
	sender common.Address
}

// Sender is the immediate caller.
func (c *Call) Sender() common.Address { return c.sender }

// Origin is the account that signed the batch.
func (c *Call) Origin() common.Address { return c.origin }

func (c *Call) TxID() string { return c.txID }

func (c *Call) Chain() *Chain { return c.chain }

// From returns the frame for a nested call made by the contract at addr.
func (c *Call) From(addr common.Address) *Call {
	return &Call{
		chain:  c.chain,
		txID:   c.txID,
		origin: c.origin,
		sender: addr,
	}
}

// Emit records an event. attrs are alternating keys and values.
func (c *Call) Emit(emitter common.Address, name string, attrs ...any) {
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		m[fmt.Sprint(attrs[i])] = attrs[i+1]
	}
	c.chain.appendEvent(Event{
		ID:      icommon.GenerateEventID(),
		TxID:    c.txID,
		Emitter: emitter,
		Name:    name,
		Attrs:   m,
	})
}
