package queue

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
)

const component = "transfer queue"

// QueuedTransfer is a single-use grant for one ticket movement.
type QueuedTransfer struct {
	From       common.Address
	To         common.Address
	Amount     uint256.Int
	Vault      common.Address
	IsExecuted bool
}

func (t QueuedTransfer) String() string {
	return fmt.Sprintf("{from: %s, to: %s, amount: %s, vault: %s}", t.From.Hex(), t.To.Hex(), t.Amount.Dec(), t.Vault.Hex())
}

// Queue is a cursor-indexed log of transfer grants. At most one grant is
// pending at a time: it lives at the current cursor until it is consumed or
// overwritten.
type Queue struct {
	mu        sync.RWMutex
	cursor    uint64
	transfers map[uint64]QueuedTransfer
}

type queueSnapshot struct {
	cursor    uint64
	transfers map[uint64]QueuedTransfer
}

func New() *Queue {
	return &Queue{transfers: make(map[uint64]QueuedTransfer)}
}

// Cursor is the slot the next grant is written to and the next movement is
// checked against.
func (q *Queue) Cursor() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.cursor
}

func (q *Queue) Get(cursor uint64) (QueuedTransfer, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.transfers[cursor]
	return t, ok
}

// Pending returns the unexecuted grant at the cursor, if any.
func (q *Queue) Pending() (QueuedTransfer, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.transfers[q.cursor]
	if !ok || t.IsExecuted {
		return QueuedTransfer{}, false
	}
	return t, true
}

// Enqueue writes t at the cursor. A still-pending grant there is replaced and
// returned with replaced set.
func (q *Queue) Enqueue(t QueuedTransfer) (previous QueuedTransfer, replaced bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	previous, replaced = q.transfers[q.cursor]
	t.IsExecuted = false
	q.transfers[q.cursor] = t
	return previous, replaced
}

// Consume checks the pending grant with match, marks it executed and advances
// the cursor. It returns the consumed grant.
func (q *Queue) Consume(match func(QueuedTransfer) error) (QueuedTransfer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.transfers[q.cursor]
	if !ok || t.IsExecuted {
		return QueuedTransfer{}, chain.Revert(chain.ErrInvariantViolation, component,
			"no transfer queued at cursor %d", q.cursor)
	}
	if err := match(t); err != nil {
		return QueuedTransfer{}, err
	}
	t.IsExecuted = true
	q.transfers[q.cursor] = t
	q.cursor++
	return t, nil
}

// =====================================================
// Snapshot
// =====================================================

func (q *Queue) Snapshot() any {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := queueSnapshot{cursor: q.cursor, transfers: make(map[uint64]QueuedTransfer, len(q.transfers))}
	for k, v := range q.transfers {
		s.transfers[k] = v
	}
	return s
}

func (q *Queue) Restore(snapshot any) {
	s := snapshot.(queueSnapshot)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.cursor = s.cursor
	q.transfers = s.transfers
}
