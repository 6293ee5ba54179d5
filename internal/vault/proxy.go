package vault

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
)

const vaultComponent = "isolation vault"

// DefaultAccountNumber is the only sub-account that exchanges the
// underlying with the owner's wallet.
const DefaultAccountNumber uint64 = 0

// Proxy is the per-account vault. It holds the owner, the initialization
// flag and the reentrancy state; behaviour comes from the factory's current
// Implementation on every call.
type Proxy struct {
	address common.Address
	factory *Factory

	mu          sync.RWMutex
	owner       common.Address
	initialized bool
	busy        bool
}

type proxySnapshot struct {
	owner       common.Address
	initialized bool
	busy        bool
}

func newProxy(addr common.Address, f *Factory) *Proxy {
	return &Proxy{address: addr, factory: f}
}

// Initialize fixes the owner. It must match the factory registry.
func (p *Proxy) Initialize(call *chain.Call, owner common.Address) error {
	account, ok := p.factory.GetAccountByVault(p.address)
	if !ok || account != owner {
		return chain.Revert(chain.ErrState, vaultComponent, "invalid account %s for vault %s", owner.Hex(), p.address.Hex())
	}

	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return chain.Revert(chain.ErrState, vaultComponent, "vault %s already initialized", p.address.Hex())
	}
	p.owner = owner
	p.initialized = true
	p.mu.Unlock()

	call.Emit(p.address, "Initialized", "owner", owner)
	return nil
}

func (p *Proxy) Address() common.Address { return p.address }
func (p *Proxy) VaultFactory() *Factory  { return p.factory }

// Implementation returns the behaviour the next call will run.
func (p *Proxy) Implementation() Implementation {
	return p.factory.UserVaultImplementation()
}

func (p *Proxy) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

func (p *Proxy) Owner() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

func (p *Proxy) MarketID() uint64 {
	return p.factory.MarketID()
}

// UnderlyingBalance is the amount of the underlying physically in the vault.
func (p *Proxy) UnderlyingBalance() *uint256.Int {
	return p.factory.UnderlyingToken().BalanceOf(p.address)
}

// Account is the vault's sub-account in the margin engine.
func (p *Proxy) Account(accountNumber uint64) margin.AccountInfo {
	return margin.AccountInfo{Owner: p.address, Number: accountNumber}
}

func (p *Proxy) delegate() (Implementation, error) {
	if !p.IsInitialized() {
		return nil, chain.Revert(chain.ErrState, vaultComponent, "vault %s is not initialized", p.address.Hex())
	}
	impl := p.Implementation()
	if impl == nil {
		return nil, chain.Revert(chain.ErrState, vaultComponent, "no user vault implementation")
	}
	return impl, nil
}

// guard runs fn with the reentrancy lock held.
func (p *Proxy) guard(fn func() error) error {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return chain.Revert(chain.ErrState, vaultComponent, "reentrant call into vault %s", p.address.Hex())
	}
	p.busy = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()
	return fn()
}

func (p *Proxy) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return proxySnapshot{owner: p.owner, initialized: p.initialized, busy: p.busy}
}

func (p *Proxy) Restore(snapshot any) {
	s := snapshot.(proxySnapshot)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = s.owner
	p.initialized = s.initialized
	p.busy = s.busy
}

// =====================================================
// Forwarding
// =====================================================

func (p *Proxy) DepositIntoVaultForDolomiteMargin(call *chain.Call, toAccountNumber uint64, amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.DepositIntoVaultForDolomiteMargin(p, call, toAccountNumber, amount)
}

func (p *Proxy) WithdrawFromVaultForDolomiteMargin(call *chain.Call, fromAccountNumber uint64, amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.WithdrawFromVaultForDolomiteMargin(p, call, fromAccountNumber, amount)
}

func (p *Proxy) DepositOtherTokenIntoDolomiteMarginForVaultOwner(call *chain.Call, toAccountNumber, marketID uint64,
	amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.DepositOtherTokenIntoDolomiteMarginForVaultOwner(p, call, toAccountNumber, marketID, amount)
}

func (p *Proxy) OpenBorrowPosition(call *chain.Call, fromAccountNumber, toAccountNumber uint64, amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.OpenBorrowPosition(p, call, fromAccountNumber, toAccountNumber, amount)
}

func (p *Proxy) CloseBorrowPositionWithUnderlyingVaultToken(call *chain.Call, borrowAccountNumber, toAccountNumber uint64) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.CloseBorrowPositionWithUnderlyingVaultToken(p, call, borrowAccountNumber, toAccountNumber)
}

func (p *Proxy) CloseBorrowPositionWithOtherTokens(call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	marketIDs []uint64) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.CloseBorrowPositionWithOtherTokens(p, call, borrowAccountNumber, toAccountNumber, marketIDs)
}

func (p *Proxy) TransferIntoPositionWithUnderlyingToken(call *chain.Call, fromAccountNumber, borrowAccountNumber uint64,
	amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.TransferIntoPositionWithUnderlyingToken(p, call, fromAccountNumber, borrowAccountNumber, amount)
}

func (p *Proxy) TransferIntoPositionWithOtherToken(call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.TransferIntoPositionWithOtherToken(p, call, fromAccountNumber, borrowAccountNumber, marketID, amount, flag)
}

func (p *Proxy) TransferFromPositionWithUnderlyingToken(call *chain.Call, borrowAccountNumber, toAccountNumber uint64,
	amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.TransferFromPositionWithUnderlyingToken(p, call, borrowAccountNumber, toAccountNumber, amount)
}

func (p *Proxy) TransferFromPositionWithOtherToken(call *chain.Call, borrowAccountNumber, toAccountNumber, marketID uint64,
	amount *uint256.Int, flag margin.BalanceCheckFlag) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.TransferFromPositionWithOtherToken(p, call, borrowAccountNumber, toAccountNumber, marketID, amount, flag)
}

func (p *Proxy) RepayAllForBorrowPosition(call *chain.Call, fromAccountNumber, borrowAccountNumber, marketID uint64,
	flag margin.BalanceCheckFlag) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.RepayAllForBorrowPosition(p, call, fromAccountNumber, borrowAccountNumber, marketID, flag)
}

func (p *Proxy) SwapExactInputForOutput(call *chain.Call, tradeAccountNumber uint64, leg TradeLeg) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.SwapExactInputForOutput(p, call, tradeAccountNumber, leg)
}

func (p *Proxy) ExecuteDepositIntoVault(call *chain.Call, from common.Address, amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.ExecuteDepositIntoVault(p, call, from, amount)
}

func (p *Proxy) ExecuteWithdrawalFromVault(call *chain.Call, recipient common.Address, amount *uint256.Int) error {
	impl, err := p.delegate()
	if err != nil {
		return err
	}
	return impl.ExecuteWithdrawalFromVault(p, call, recipient, amount)
}

func (p *Proxy) IsExternalRedemptionPaused() bool {
	impl := p.Implementation()
	if impl == nil {
		return false
	}
	return impl.IsExternalRedemptionPaused(p)
}
