package vault

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/num"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/redemption_pauser_mock.go -package mocks frizo/isolation_vaults/internal/vault RedemptionPauser

// RedemptionPauser reports whether redemption of the underlying asset is
// paused upstream.
type RedemptionPauser interface {
	IsExternalRedemptionPaused() bool
}

// PausableLogic blocks operations that add risk while redemption is paused:
// taking on debt or pulling collateral out of a position with debt.
// Repayments and collateral top-ups stay available.
type PausableLogic struct {
	Implementation
	Pauser RedemptionPauser
}

var _ Implementation = PausableLogic{}

func (l PausableLogic) IsExternalRedemptionPaused(*Proxy) bool {
	return l.Pauser != nil && l.Pauser.IsExternalRedemptionPaused()
}

func (l PausableLogic) OpenBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, toAccountNumber uint64, amount *uint256.Int) error {
	if l.IsExternalRedemptionPaused(v) {
		return chain.Revert(chain.ErrPaused, vaultComponent, "cannot open a borrow position while redemption is paused")
	}
	return l.Implementation.OpenBorrowPosition(v, call, fromAccountNumber, toAccountNumber, amount)
}

func (l PausableLogic) CloseBorrowPositionWithUnderlyingVaultToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64) error {
	if err := l.requireNoDebtWhilePaused(v, borrowAccountNumber); err != nil {
		return err
	}
	return l.Implementation.CloseBorrowPositionWithUnderlyingVaultToken(v, call, borrowAccountNumber, toAccountNumber)
}

func (l PausableLogic) CloseBorrowPositionWithOtherTokens(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	marketIDs []uint64) error {
	closePosition := func() error {
		return l.Implementation.CloseBorrowPositionWithOtherTokens(v, call, borrowAccountNumber, toAccountNumber, marketIDs)
	}
	if !l.IsExternalRedemptionPaused(v) {
		return closePosition()
	}

	borrow := v.Account(borrowAccountNumber)
	withdrawn := false
	for _, id := range marketIDs {
		if engineOf(v).Balance(borrow, id).IsPositive() {
			withdrawn = true
		}
	}
	if err := withoutNewDebt(v, []uint64{borrowAccountNumber, toAccountNumber}, marketIDs, closePosition); err != nil {
		return err
	}
	if withdrawn && engineOf(v).HasDebt(borrow) {
		return chain.Revert(chain.ErrPaused, vaultComponent,
			"cannot withdraw collateral from borrow account %d with debt while redemption is paused", borrowAccountNumber)
	}
	return nil
}

func (l PausableLogic) TransferIntoPositionWithUnderlyingToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber uint64,
	amount *uint256.Int) error {
	if l.IsExternalRedemptionPaused(v) {
		return chain.Revert(chain.ErrPaused, vaultComponent, "cannot move the vault token while redemption is paused")
	}
	return l.Implementation.TransferIntoPositionWithUnderlyingToken(v, call, fromAccountNumber, borrowAccountNumber, amount)
}

func (l PausableLogic) TransferFromPositionWithUnderlyingToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	amount *uint256.Int) error {
	if l.IsExternalRedemptionPaused(v) {
		return chain.Revert(chain.ErrPaused, vaultComponent, "cannot move the vault token while redemption is paused")
	}
	return l.Implementation.TransferFromPositionWithUnderlyingToken(v, call, borrowAccountNumber, toAccountNumber, amount)
}

func (l PausableLogic) TransferIntoPositionWithOtherToken(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	transfer := func() error {
		return l.Implementation.TransferIntoPositionWithOtherToken(v, call, fromAccountNumber, borrowAccountNumber, marketID, amount, flag)
	}
	if !l.IsExternalRedemptionPaused(v) {
		return transfer()
	}
	return withoutNewDebt(v, []uint64{fromAccountNumber, borrowAccountNumber}, []uint64{marketID}, transfer)
}

func (l PausableLogic) TransferFromPositionWithOtherToken(v *Proxy, call *chain.Call, borrowAccountNumber, toAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	transfer := func() error {
		return l.Implementation.TransferFromPositionWithOtherToken(v, call, borrowAccountNumber, toAccountNumber, marketID, amount, flag)
	}
	if !l.IsExternalRedemptionPaused(v) {
		return transfer()
	}
	if err := withoutNewDebt(v, []uint64{borrowAccountNumber, toAccountNumber}, []uint64{marketID}, transfer); err != nil {
		return err
	}
	if engineOf(v).HasDebt(v.Account(borrowAccountNumber)) {
		return chain.Revert(chain.ErrPaused, vaultComponent,
			"cannot withdraw collateral from borrow account %d with debt while redemption is paused", borrowAccountNumber)
	}
	return nil
}

func (l PausableLogic) RepayAllForBorrowPosition(v *Proxy, call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	flag margin.BalanceCheckFlag) error {
	repay := func() error {
		return l.Implementation.RepayAllForBorrowPosition(v, call, fromAccountNumber, borrowAccountNumber, marketID, flag)
	}
	if !l.IsExternalRedemptionPaused(v) {
		return repay()
	}
	return withoutNewDebt(v, []uint64{fromAccountNumber, borrowAccountNumber}, []uint64{marketID}, repay)
}

func (l PausableLogic) SwapExactInputForOutput(v *Proxy, call *chain.Call, tradeAccountNumber uint64, leg TradeLeg) error {
	swap := func() error {
		return l.Implementation.SwapExactInputForOutput(v, call, tradeAccountNumber, leg)
	}
	if !l.IsExternalRedemptionPaused(v) {
		return swap()
	}

	_, input, _, err := buildTrade(leg, v.Account(tradeAccountNumber))
	if err != nil {
		return err
	}
	if input == v.MarketID() {
		return chain.Revert(chain.ErrPaused, vaultComponent, "cannot zap out of the vault token while redemption is paused")
	}
	return withoutNewDebt(v, []uint64{tradeAccountNumber}, []uint64{input}, swap)
}

func (l PausableLogic) requireNoDebtWhilePaused(v *Proxy, borrowAccountNumber uint64) error {
	if l.IsExternalRedemptionPaused(v) && engineOf(v).HasDebt(v.Account(borrowAccountNumber)) {
		return chain.Revert(chain.ErrPaused, vaultComponent,
			"cannot close borrow account %d with debt while redemption is paused", borrowAccountNumber)
	}
	return nil
}

type balanceKey struct {
	account uint64
	market  uint64
}

// withoutNewDebt runs fn and fails if any of the given vault accounts ends
// more indebted in any of markets than before. The enclosing batch rolls
// fn's effects back on failure.
func withoutNewDebt(v *Proxy, accounts, markets []uint64, fn func() error) error {
	before := make(map[balanceKey]num.Wei, len(accounts)*len(markets))
	for _, a := range accounts {
		for _, m := range markets {
			before[balanceKey{a, m}] = engineOf(v).Balance(v.Account(a), m)
		}
	}
	if err := fn(); err != nil {
		return err
	}
	for k, prev := range before {
		after := engineOf(v).Balance(v.Account(k.account), k.market)
		if after.IsNegative() && after.Cmp(prev) < 0 {
			return chain.Revert(chain.ErrPaused, vaultComponent,
				"cannot increase debt of account %d in market %d while redemption is paused (%s -> %s)",
				k.account, k.market, prev, after)
		}
	}
	return nil
}

// =====================================================
// RedemptionSwitch
// =====================================================

// RedemptionSwitch is an owner-controlled RedemptionPauser.
type RedemptionSwitch struct {
	address common.Address
	owner   common.Address

	mu     sync.RWMutex
	paused bool
}

var _ RedemptionPauser = (*RedemptionSwitch)(nil)

// DeployRedemptionSwitch creates a switch owned by the caller.
func DeployRedemptionSwitch(call *chain.Call) *RedemptionSwitch {
	ch := call.Chain()
	s := &RedemptionSwitch{address: ch.NewAddress(), owner: call.Sender()}
	ch.Register(s.address, s)
	return s
}

func (s *RedemptionSwitch) Address() common.Address { return s.address }

func (s *RedemptionSwitch) IsExternalRedemptionPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *RedemptionSwitch) SetPaused(call *chain.Call, paused bool) error {
	if call.Sender() != s.owner {
		return chain.Revert(chain.ErrAuthorization, "redemption switch", "caller %s is not the owner", call.Sender().Hex())
	}
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()

	call.Emit(s.address, "RedemptionPausedSet", "paused", paused)
	return nil
}

func (s *RedemptionSwitch) Snapshot() any {
	return s.IsExternalRedemptionPaused()
}

func (s *RedemptionSwitch) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = snapshot.(bool)
}
