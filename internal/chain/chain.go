package chain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	icommon "frizo/isolation_vaults/internal/common"
	"frizo/isolation_vaults/internal/logger"
)

// Snapshotter is implemented by every component holding state that must be
// rolled back when a batch fails.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// Event is an observable state change emitted by a contract.
type Event struct {
	ID      string
	TxID    string
	Emitter common.Address
	Name    string
	Attrs   map[string]any
}

// Chain is the atomic execution host. Batches run one at a time and either
// commit every effect or none.
type Chain struct {
	deployer common.Address
	log      *logger.Logger

	txMu sync.Mutex // serializes Transact

	mu           sync.RWMutex
	nonce        uint64
	contracts    map[common.Address]any
	snapshotters []Snapshotter
	events       []Event
}

type chainSnapshot struct {
	nonce        uint64
	contracts    map[common.Address]any
	snapshotters int
	events       int
}

// New creates an empty chain. Contract addresses are derived from deployer.
func New(deployer common.Address, log *logger.Logger) *Chain {
	return &Chain{
		deployer:  deployer,
		log:       log.Component("chain"),
		contracts: make(map[common.Address]any),
	}
}

// Transact runs fn as one atomic batch originated by origin. If fn returns an
// error every registered Snapshotter is restored and the error is returned.
// A panic in fn is re-raised after the same restore.
// Transact must not be called from inside a batch.
func (ch *Chain) Transact(origin common.Address, fn func(call *Call) error) error {
	ch.txMu.Lock()
	defer ch.txMu.Unlock()

	ch.mu.Lock()
	saved := ch.snapshotLocked()
	snaps := make([]any, len(ch.snapshotters))
	for i, s := range ch.snapshotters {
		snaps[i] = s.Snapshot()
	}
	ch.mu.Unlock()

	call := &Call{
		chain:  ch,
		txID:   icommon.GenerateTxID(),
		origin: origin,
		sender: origin,
	}
	rollback := func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		for i := range snaps {
			ch.snapshotters[i].Restore(snaps[i])
		}
		ch.restoreLocked(saved)
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			ch.log.Error("batch panicked", "tx", call.txID, "origin", origin.Hex(), "panic", r)
			panic(r)
		}
	}()

	err := fn(call)
	if err == nil {
		return nil
	}
	rollback()
	ch.log.Debug("batch reverted", "tx", call.txID, "origin", origin.Hex(), "error", err)
	return err
}

// =====================================================
// Contract registry
// =====================================================

// NewAddress derives a fresh contract address.
func (ch *Chain) NewAddress() common.Address {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	addr := crypto.CreateAddress(ch.deployer, ch.nonce)
	ch.nonce++
	return addr
}

// Register binds a contract object to addr. Snapshotters are tracked for
// rollback.
func (ch *Chain) Register(addr common.Address, contract any) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.contracts[addr] = contract
	if s, ok := contract.(Snapshotter); ok {
		ch.snapshotters = append(ch.snapshotters, s)
	}
}

// Track adds a Snapshotter that is not itself addressable.
func (ch *Chain) Track(s Snapshotter) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.snapshotters = append(ch.snapshotters, s)
}

// IsContract reports whether code lives at addr.
func (ch *Chain) IsContract(addr common.Address) bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	_, ok := ch.contracts[addr]
	return ok
}

// Contract returns the contract object at addr.
func (ch *Chain) Contract(addr common.Address) (any, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	c, ok := ch.contracts[addr]
	return c, ok
}

// =====================================================
// Events
// =====================================================

func (ch *Chain) appendEvent(e Event) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.events = append(ch.events, e)
}

// Events returns every committed event, oldest first.
func (ch *Chain) Events() []Event {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	out := make([]Event, len(ch.events))
	copy(out, ch.events)
	return out
}

// EventsNamed returns committed events with the given name.
func (ch *Chain) EventsNamed(name string) []Event {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	var out []Event
	for _, e := range ch.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (ch *Chain) snapshotLocked() chainSnapshot {
	contracts := make(map[common.Address]any, len(ch.contracts))
	for k, v := range ch.contracts {
		contracts[k] = v
	}
	return chainSnapshot{
		nonce:        ch.nonce,
		contracts:    contracts,
		snapshotters: len(ch.snapshotters),
		events:       len(ch.events),
	}
}

func (ch *Chain) restoreLocked(s chainSnapshot) {
	ch.nonce = s.nonce
	ch.contracts = s.contracts
	ch.snapshotters = ch.snapshotters[:s.snapshotters]
	ch.events = ch.events[:s.events]
}
