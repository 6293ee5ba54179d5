package margin

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/num"
	"frizo/isolation_vaults/internal/position"
	"frizo/isolation_vaults/internal/token"
)

const component = "margin engine"

// Engine is the margin engine: markets, operators and the signed balance book.
type Engine struct {
	address common.Address
	owner   common.Address
	book    *position.Book
	log     *logger.Logger

	mu                sync.RWMutex
	markets           []Market
	marketByToken     map[common.Address]uint64
	globalOperators   map[common.Address]bool
	operators         map[common.Address]map[common.Address]bool // account owner -> operator
	authorizedCallers map[common.Address]bool                    // borrow-position callers
}

type engineSnapshot struct {
	markets           []Market
	marketByToken     map[common.Address]uint64
	globalOperators   map[common.Address]bool
	operators         map[common.Address]map[common.Address]bool
	authorizedCallers map[common.Address]bool
}

// Deploy creates an engine owned by the caller.
func Deploy(call *chain.Call, log *logger.Logger) *Engine {
	ch := call.Chain()
	e := &Engine{
		address:           ch.NewAddress(),
		owner:             call.Sender(),
		book:              position.NewBook(),
		log:               log.Component(component),
		marketByToken:     make(map[common.Address]uint64),
		globalOperators:   make(map[common.Address]bool),
		operators:         make(map[common.Address]map[common.Address]bool),
		authorizedCallers: make(map[common.Address]bool),
	}
	ch.Register(e.address, e)
	ch.Track(e.book)
	return e
}

func (e *Engine) Address() common.Address { return e.address }
func (e *Engine) Owner() common.Address   { return e.owner }

// =====================================================
// Admin
// =====================================================

// AddMarket lists tok and returns its market id.
func (e *Engine) AddMarket(call *chain.Call, tok token.ERC20, isClosing bool) (uint64, error) {
	if err := e.requireOwner(call); err != nil {
		return 0, err
	}

	e.mu.Lock()
	if _, ok := e.marketByToken[tok.Address()]; ok {
		e.mu.Unlock()
		return 0, chain.Revert(chain.ErrState, component, "market for %s already exists", tok.Symbol())
	}
	id := uint64(len(e.markets))
	e.markets = append(e.markets, Market{ID: id, Token: tok, IsClosing: isClosing})
	e.marketByToken[tok.Address()] = id
	e.mu.Unlock()

	call.Emit(e.address, "MarketAdded", "marketId", id, "token", tok.Address(), "isClosing", isClosing)
	return id, nil
}

func (e *Engine) SetMarketIsClosing(call *chain.Call, marketID uint64, isClosing bool) error {
	if err := e.requireOwner(call); err != nil {
		return err
	}

	e.mu.Lock()
	if marketID >= uint64(len(e.markets)) {
		e.mu.Unlock()
		return chain.Revert(chain.ErrState, component, "invalid market %d", marketID)
	}
	e.markets[marketID].IsClosing = isClosing
	e.mu.Unlock()

	call.Emit(e.address, "MarketIsClosingSet", "marketId", marketID, "isClosing", isClosing)
	return nil
}

func (e *Engine) SetGlobalOperator(call *chain.Call, operator common.Address, approved bool) error {
	if err := e.requireOwner(call); err != nil {
		return err
	}

	e.mu.Lock()
	e.globalOperators[operator] = approved
	e.mu.Unlock()

	call.Emit(e.address, "GlobalOperatorSet", "operator", operator, "approved", approved)
	return nil
}

// SetOperator lets operator act on every account the caller owns.
func (e *Engine) SetOperator(call *chain.Call, operator common.Address, approved bool) error {
	e.mu.Lock()
	m, ok := e.operators[call.Sender()]
	if !ok {
		m = make(map[common.Address]bool)
		e.operators[call.Sender()] = m
	}
	m[operator] = approved
	e.mu.Unlock()

	call.Emit(e.address, "OperatorSet", "owner", call.Sender(), "operator", operator, "approved", approved)
	return nil
}

// =====================================================
// Views
// =====================================================

func (e *Engine) Market(marketID uint64) (Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if marketID >= uint64(len(e.markets)) {
		return Market{}, chain.Revert(chain.ErrState, component, "invalid market %d", marketID)
	}
	return e.markets[marketID], nil
}

func (e *Engine) MarketIDByToken(tok common.Address) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	id, ok := e.marketByToken[tok]
	if !ok {
		return 0, chain.Revert(chain.ErrState, component, "no market for token %s", tok.Hex())
	}
	return id, nil
}

func (e *Engine) NumMarkets() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.markets)
}

func (e *Engine) IsGlobalOperator(addr common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.globalOperators[addr]
}

func (e *Engine) IsLocalOperator(owner, operator common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.operators[owner][operator]
}

func (e *Engine) IsCallerAuthorized(caller common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.authorizedCallers[caller]
}

func (e *Engine) Balance(acct AccountInfo, marketID uint64) num.Wei {
	return e.book.Balance(acct, marketID)
}

// AccountMarkets lists the markets where acct holds a non-zero balance.
func (e *Engine) AccountMarkets(acct AccountInfo) []uint64 {
	return e.book.Markets(acct)
}

func (e *Engine) HasDebt(acct AccountInfo) bool {
	return e.book.HasDebt(acct)
}

// TotalBalance sums every account's balance in marketID.
func (e *Engine) TotalBalance(marketID uint64) num.Wei {
	return e.book.Total(marketID)
}

// =====================================================
// Internal
// =====================================================

func (e *Engine) requireOwner(call *chain.Call) error {
	return chain.Require(call.Sender() == e.owner, chain.ErrAuthorization, component,
		"caller %s is not the owner", call.Sender().Hex())
}

// isOperator reports whether sender may act on accounts owned by owner.
func (e *Engine) isOperator(owner, sender common.Address) bool {
	if owner == sender {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.globalOperators[sender] || e.operators[owner][sender]
}

func (e *Engine) credit(acct AccountInfo, marketID uint64, amount *uint256.Int) {
	e.book.Credit(acct, marketID, amount)
}

// debit fails rather than let a closing market go negative.
func (e *Engine) debit(acct AccountInfo, marketID uint64, amount *uint256.Int) error {
	m, err := e.Market(marketID)
	if err != nil {
		return err
	}
	after := e.book.Balance(acct, marketID).Sub(amount)
	if m.IsClosing && after.IsNegative() {
		return chain.Revert(chain.ErrInsufficientAmount, component,
			"market %d is closing, balance of %s cannot go negative (%s)", marketID, acct, after)
	}
	e.book.Debit(acct, marketID, amount)
	return nil
}

func (e *Engine) Snapshot() any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := engineSnapshot{
		markets:           append([]Market(nil), e.markets...),
		marketByToken:     make(map[common.Address]uint64, len(e.marketByToken)),
		globalOperators:   make(map[common.Address]bool, len(e.globalOperators)),
		operators:         make(map[common.Address]map[common.Address]bool, len(e.operators)),
		authorizedCallers: make(map[common.Address]bool, len(e.authorizedCallers)),
	}
	for k, v := range e.marketByToken {
		s.marketByToken[k] = v
	}
	for k, v := range e.globalOperators {
		s.globalOperators[k] = v
	}
	for owner, m := range e.operators {
		cp := make(map[common.Address]bool, len(m))
		for k, v := range m {
			cp[k] = v
		}
		s.operators[owner] = cp
	}
	for k, v := range e.authorizedCallers {
		s.authorizedCallers[k] = v
	}
	return s
}

func (e *Engine) Restore(snapshot any) {
	s := snapshot.(engineSnapshot)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.markets = s.markets
	e.marketByToken = s.marketByToken
	e.globalOperators = s.globalOperators
	e.operators = s.operators
	e.authorizedCallers = s.authorizedCallers
}
