package chain

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frizo/isolation_vaults/internal/logger"
)

type counter struct {
	mu    sync.Mutex
	value int
}

func (c *counter) Snapshot() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *counter) Restore(s any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = s.(int)
}

func (c *counter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
}

var alice = common.HexToAddress("0xa11ce")

func TestTransactCommit(t *testing.T) {
	ch := New(common.HexToAddress("0xdead"), logger.Discard())
	c := &counter{}
	addr := ch.NewAddress()
	ch.Register(addr, c)

	err := ch.Transact(alice, func(call *Call) error {
		assert.Equal(t, alice, call.Sender())
		assert.Equal(t, alice, call.Origin())
		c.inc()
		call.Emit(addr, "Incremented", "by", 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.value)

	events := ch.EventsNamed("Incremented")
	require.Len(t, events, 1)
	assert.Equal(t, addr, events[0].Emitter)
	assert.Equal(t, 1, events[0].Attrs["by"])
}

func TestTransactPanicRollsBack(t *testing.T) {
	ch := New(common.HexToAddress("0xdead"), logger.Discard())
	c := &counter{}
	ch.Register(ch.NewAddress(), c)

	assert.PanicsWithValue(t, "nil amount", func() {
		_ = ch.Transact(alice, func(call *Call) error {
			c.inc()
			call.Emit(alice, "Touched")
			panic("nil amount")
		})
	})
	assert.Equal(t, 0, c.value)
	assert.Empty(t, ch.EventsNamed("Touched"))

	// the chain stays usable after the panic
	require.NoError(t, ch.Transact(alice, func(call *Call) error {
		c.inc()
		return nil
	}))
	assert.Equal(t, 1, c.value)
}

func TestTransactRollback(t *testing.T) {
	ch := New(common.HexToAddress("0xdead"), logger.Discard())
	c := &counter{}
	ch.Register(ch.NewAddress(), c)

	var deployed common.Address
	err := ch.Transact(alice, func(call *Call) error {
		c.inc()
		deployed = ch.NewAddress()
		ch.Register(deployed, &counter{})
		call.Emit(deployed, "Deployed")
		return Revert(ErrState, "test", "boom at %d", 7)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrState))
	assert.Contains(t, err.Error(), "boom at 7")

	assert.Equal(t, 0, c.value)
	assert.False(t, ch.IsContract(deployed))
	assert.Empty(t, ch.Events())

	// nonce is rolled back too, the next deployment reuses the address
	assert.Equal(t, deployed, ch.NewAddress())
}

func TestCallFrom(t *testing.T) {
	ch := New(common.HexToAddress("0xdead"), logger.Discard())
	contract := ch.NewAddress()

	_ = ch.Transact(alice, func(call *Call) error {
		nested := call.From(contract)
		assert.Equal(t, contract, nested.Sender())
		assert.Equal(t, alice, nested.Origin())
		assert.Equal(t, call.TxID(), nested.TxID())
		return nil
	})
}

func TestRevertError(t *testing.T) {
	err := fmt.Errorf("operate: %w", Revert(ErrPaused, "vault", "redemption is paused"))

	var re *RevertError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "vault", re.Component)
	assert.True(t, errors.Is(err, ErrPaused))
	assert.False(t, errors.Is(err, ErrState))

	assert.NoError(t, Require(true, ErrState, "x", "never"))
	assert.ErrorIs(t, Require(false, ErrState, "x", "failed"), ErrState)
}
