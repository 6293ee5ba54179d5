package position

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/num"
	"frizo/isolation_vaults/pkg/utils"
)

// Account identifies a sub-account in the margin engine.
type Account struct {
	Owner  common.Address
	Number uint64
}

func (a Account) String() string {
	return fmt.Sprintf("%s/%d", a.Owner.Hex(), a.Number)
}

// AccountBalances marketID -> signed balance
type AccountBalances map[uint64]num.Wei

func (b AccountBalances) clone() AccountBalances {
	out := make(AccountBalances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// ==========================================================================================

// Book keeps the signed balance of every (account, market) pair.
type Book struct {
	balances map[Account]AccountBalances
	mu       sync.RWMutex
}

// NewBook new
func NewBook() *Book {
	return &Book{
		balances: make(map[Account]AccountBalances),
	}
}

// Balance returns the balance of acct in market.
func (bk *Book) Balance(acct Account, market uint64) num.Wei {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	return bk.balances[acct][market]
}

// Credit adds amount and returns the new balance.
func (bk *Book) Credit(acct Account, market uint64, amount *uint256.Int) num.Wei {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	w := bk.row(acct)[market].Add(amount)
	bk.balances[acct][market] = w
	return w
}

// Debit subtracts amount and returns the new balance, which may be negative.
func (bk *Book) Debit(acct Account, market uint64, amount *uint256.Int) num.Wei {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	w := bk.row(acct)[market].Sub(amount)
	bk.balances[acct][market] = w
	return w
}

// Markets returns, in ascending order, the markets where acct has a
// non-zero balance.
func (bk *Book) Markets(acct Account) []uint64 {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	row := bk.balances[acct]
	return utils.Filter(utils.SortedKeys(row), func(id uint64) bool { return !row[id].IsZero() })
}

// HasDebt reports whether acct is negative in any market.
func (bk *Book) HasDebt(acct Account) bool {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	for _, w := range bk.balances[acct] {
		if w.IsNegative() {
			return true
		}
	}
	return false
}

// Total sums the balances of every account in market.
func (bk *Book) Total(market uint64) num.Wei {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	var total num.Wei
	for _, row := range bk.balances {
		w, ok := row[market]
		if !ok {
			continue
		}
		if w.IsNegative() {
			total = total.Sub(&w.Value)
		} else {
			total = total.Add(&w.Value)
		}
	}
	return total
}

func (bk *Book) row(acct Account) AccountBalances {
	row, ok := bk.balances[acct]
	if !ok {
		row = make(AccountBalances)
		bk.balances[acct] = row
	}
	return row
}

// =====================================================
// Snapshot
// =====================================================

func (bk *Book) Snapshot() any {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	s := make(map[Account]AccountBalances, len(bk.balances))
	for acct, row := range bk.balances {
		s[acct] = row.clone()
	}
	return s
}

func (bk *Book) Restore(snapshot any) {
	s := snapshot.(map[Account]AccountBalances)

	bk.mu.Lock()
	defer bk.mu.Unlock()
	bk.balances = s
}
