package vault

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/queue"
	"frizo/isolation_vaults/internal/token"
	"frizo/isolation_vaults/pkg/utils"
)

const factoryComponent = "vault factory"

// proxyInitCodeHash stands in for the proxy bytecode in CREATE2 addressing.
var proxyInitCodeHash = crypto.Keccak256([]byte("isolation-mode-proxy-vault"))

// Factory issues the ticket token for one underlying asset and owns the
// account <-> vault registry.
type Factory struct {
	address    common.Address
	symbol     string
	underlying token.ERC20
	engine     *margin.Engine
	ledger     *token.Ledger
	transfers  *queue.Queue
	log        *logger.Logger

	mu                  sync.RWMutex
	initialized         bool
	marketID            uint64
	accountToVault      map[common.Address]common.Address
	vaultToAccount      map[common.Address]common.Address
	vaults              map[common.Address]*Proxy
	converters          map[common.Address]bool
	allowableDebt       AllowList
	allowableCollateral AllowList
	implementation      Implementation
}

type factorySnapshot struct {
	initialized         bool
	marketID            uint64
	accountToVault      map[common.Address]common.Address
	vaultToAccount      map[common.Address]common.Address
	vaults              map[common.Address]*Proxy
	converters          map[common.Address]bool
	allowableDebt       AllowList
	allowableCollateral AllowList
	implementation      Implementation
}

// FactoryParams configures a new Factory.
type FactoryParams struct {
	Symbol         string
	Underlying     token.ERC20
	Engine         *margin.Engine
	Implementation Implementation
	Log            *logger.Logger
}

// DeployFactory creates an uninitialized factory. The engine's owner is the
// factory owner.
func DeployFactory(call *chain.Call, p FactoryParams) (*Factory, error) {
	if p.Underlying == nil || p.Engine == nil {
		return nil, chain.Revert(chain.ErrState, factoryComponent, "underlying token and margin engine are required")
	}
	if p.Implementation == nil {
		return nil, chain.Revert(chain.ErrInvariantViolation, factoryComponent, "invalid user vault implementation")
	}
	if p.Log == nil {
		p.Log = logger.Default()
	}

	ch := call.Chain()
	f := &Factory{
		address:             ch.NewAddress(),
		symbol:              p.Symbol,
		underlying:          p.Underlying,
		engine:              p.Engine,
		ledger:              token.NewLedger(p.Symbol),
		transfers:           queue.New(),
		accountToVault:      make(map[common.Address]common.Address),
		vaultToAccount:      make(map[common.Address]common.Address),
		vaults:              make(map[common.Address]*Proxy),
		converters:          make(map[common.Address]bool),
		allowableDebt:       Unrestricted(),
		allowableCollateral: Unrestricted(),
		implementation:      p.Implementation,
	}
	f.log = p.Log.WithFields(map[string]interface{}{"component": factoryComponent, "symbol": p.Symbol})
	ch.Register(f.address, f)
	ch.Track(f.ledger)
	ch.Track(f.transfers)
	return f, nil
}

// =====================================================
// Admin
// =====================================================

// OwnerInitialize binds the factory to its market and trusts converters. The
// market must be closing so the ticket can never be borrowed.
func (f *Factory) OwnerInitialize(call *chain.Call, converters []common.Address) error {
	if err := f.requireOwner(call); err != nil {
		return err
	}
	if f.IsInitialized() {
		return chain.Revert(chain.ErrState, factoryComponent, "already initialized")
	}
	marketID, err := f.engine.MarketIDByToken(f.address)
	if err != nil {
		return err
	}
	m, err := f.engine.Market(marketID)
	if err != nil {
		return err
	}
	if !m.IsClosing {
		return chain.Revert(chain.ErrState, factoryComponent, "market %d must be closing so it cannot be borrowed", marketID)
	}

	f.mu.Lock()
	f.initialized = true
	f.marketID = marketID
	f.mu.Unlock()

	for _, c := range converters {
		if err := f.setConverterTrusted(call, c, true); err != nil {
			return err
		}
	}
	call.Emit(f.address, "Initialized", "marketId", marketID)
	return nil
}

// OwnerSetIsTokenConverterTrusted adds or removes converter from the set
// allowed to queue ticket transfers and mint or burn through the factory.
func (f *Factory) OwnerSetIsTokenConverterTrusted(call *chain.Call, converter common.Address, trusted bool) error {
	if err := f.requireOwner(call); err != nil {
		return err
	}
	return f.setConverterTrusted(call, converter, trusted)
}

// OwnerSetUserVaultImplementation swaps the logic every vault forwards to.
// Vaults pick up the new implementation on their next call.
func (f *Factory) OwnerSetUserVaultImplementation(call *chain.Call, impl Implementation) error {
	if err := f.requireOwner(call); err != nil {
		return err
	}
	if impl == nil {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "invalid user vault implementation")
	}

	f.mu.Lock()
	previous := f.implementation
	f.implementation = impl
	f.mu.Unlock()

	call.Emit(f.address, "UserVaultImplementationSet", "previous", describe(previous), "implementation", describe(impl))
	return nil
}

// OwnerSetAllowableDebtMarketIDs replaces the debt allow-list. Empty means
// unrestricted.
func (f *Factory) OwnerSetAllowableDebtMarketIDs(call *chain.Call, ids []uint64) error {
	if err := f.requireOwner(call); err != nil {
		return err
	}
	list := NewAllowList(ids)

	f.mu.Lock()
	f.allowableDebt = list
	f.mu.Unlock()

	call.Emit(f.address, "AllowableDebtMarketIdsSet", "marketIds", list.String())
	return nil
}

// OwnerSetAllowableCollateralMarketIDs replaces the collateral allow-list.
// Empty means unrestricted.
func (f *Factory) OwnerSetAllowableCollateralMarketIDs(call *chain.Call, ids []uint64) error {
	if err := f.requireOwner(call); err != nil {
		return err
	}
	list := NewAllowList(ids)

	f.mu.Lock()
	f.allowableCollateral = list
	f.mu.Unlock()

	call.Emit(f.address, "AllowableCollateralMarketIdsSet", "marketIds", list.String())
	return nil
}

// =====================================================
// Vault creation
// =====================================================

// CalculateVaultByAccount returns the address the vault for account has or
// will have.
func (f *Factory) CalculateVaultByAccount(account common.Address) common.Address {
	salt := crypto.Keccak256Hash(account.Bytes())
	return crypto.CreateAddress2(f.address, salt, proxyInitCodeHash)
}

// CreateVault deploys and initializes the vault for account.
func (f *Factory) CreateVault(call *chain.Call, account common.Address) (common.Address, error) {
	if !f.IsInitialized() {
		return common.Address{}, chain.Revert(chain.ErrState, factoryComponent, "not initialized")
	}
	if account == (common.Address{}) {
		return common.Address{}, chain.Revert(chain.ErrInvariantViolation, factoryComponent, "invalid account")
	}
	addr := f.CalculateVaultByAccount(account)
	proxy := newProxy(addr, f)

	f.mu.Lock()
	if _, ok := f.accountToVault[account]; ok {
		f.mu.Unlock()
		return common.Address{}, chain.Revert(chain.ErrState, factoryComponent, "vault already exists for %s", account.Hex())
	}
	f.accountToVault[account] = addr
	f.vaultToAccount[addr] = account
	f.vaults[addr] = proxy
	f.mu.Unlock()

	ch := call.Chain()
	ch.Register(addr, proxy)

	self := call.From(f.address)
	if err := f.engine.SetIsCallerAuthorized(self, addr, true); err != nil {
		return common.Address{}, err
	}
	if err := proxy.Initialize(self, account); err != nil {
		return common.Address{}, err
	}

	call.Emit(f.address, "VaultCreated", "account", account, "vault", addr)
	f.log.Info("vault created", "account", account.Hex(), "vault", addr.Hex())
	return addr, nil
}

// CreateVaultAndDepositIntoDolomiteMargin creates the caller's vault and
// deposits amount of the underlying from the caller's wallet into
// vaultAccountNumber. The caller must have approved the vault address.
func (f *Factory) CreateVaultAndDepositIntoDolomiteMargin(call *chain.Call, vaultAccountNumber uint64,
	amount *uint256.Int) (common.Address, error) {
	addr, err := f.CreateVault(call, call.Sender())
	if err != nil {
		return common.Address{}, err
	}
	proxy, _ := f.Vault(addr)
	if err := proxy.DepositIntoVaultForDolomiteMargin(call.From(f.address), vaultAccountNumber, amount); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// =====================================================
// Views
// =====================================================

func (f *Factory) Address() common.Address       { return f.address }
func (f *Factory) Symbol() string                { return f.symbol }
func (f *Factory) UnderlyingToken() token.ERC20  { return f.underlying }
func (f *Factory) MarginEngine() *margin.Engine  { return f.engine }
func (f *Factory) Owner() common.Address         { return f.engine.Owner() }
func (f *Factory) TransferCursor() uint64        { return f.transfers.Cursor() }

func (f *Factory) QueuedTransfer(cursor uint64) (queue.QueuedTransfer, bool) {
	return f.transfers.Get(cursor)
}

// PendingTransfer returns the grant the next ticket movement must match.
func (f *Factory) PendingTransfer() (queue.QueuedTransfer, bool) {
	return f.transfers.Pending()
}

func (f *Factory) IsInitialized() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.initialized
}

func (f *Factory) MarketID() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.marketID
}

func (f *Factory) GetVaultByAccount(account common.Address) (common.Address, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.accountToVault[account]
	return v, ok
}

func (f *Factory) GetAccountByVault(vault common.Address) (common.Address, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.vaultToAccount[vault]
	return a, ok
}

func (f *Factory) Vault(vault common.Address) (*Proxy, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.vaults[vault]
	return p, ok
}

// Vaults returns every vault address in ascending order.
func (f *Factory) Vaults() []common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := utils.Keys(f.vaults)
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func (f *Factory) IsTokenConverterTrusted(converter common.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.converters[converter]
}

func (f *Factory) AllowableDebtMarketIDs() AllowList {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.allowableDebt
}

func (f *Factory) AllowableCollateralMarketIDs() AllowList {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.allowableCollateral
}

func (f *Factory) UserVaultImplementation() Implementation {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.implementation
}

// =====================================================
// Internal
// =====================================================

func (f *Factory) requireOwner(call *chain.Call) error {
	return chain.Require(call.Sender() == f.Owner(), chain.ErrAuthorization, factoryComponent,
		"caller %s is not the owner", call.Sender().Hex())
}

func (f *Factory) requireVaultCaller(call *chain.Call) (common.Address, error) {
	vault := call.Sender()
	if _, ok := f.GetAccountByVault(vault); !ok {
		return common.Address{}, chain.Revert(chain.ErrAuthorization, factoryComponent, "caller %s is not a vault", vault.Hex())
	}
	return vault, nil
}

func (f *Factory) requireTrustedConverter(call *chain.Call) (common.Address, error) {
	converter := call.Sender()
	if !f.IsTokenConverterTrusted(converter) {
		return common.Address{}, chain.Revert(chain.ErrAuthorization, factoryComponent,
			"caller %s is not a trusted token converter", converter.Hex())
	}
	return converter, nil
}

func (f *Factory) requireRegisteredVault(vault common.Address) (*Proxy, error) {
	p, ok := f.Vault(vault)
	if !ok {
		return nil, chain.Revert(chain.ErrState, factoryComponent, "no such vault %s", vault.Hex())
	}
	return p, nil
}

func (f *Factory) setConverterTrusted(call *chain.Call, converter common.Address, trusted bool) error {
	if converter == (common.Address{}) {
		return chain.Revert(chain.ErrInvariantViolation, factoryComponent, "invalid token converter")
	}

	f.mu.Lock()
	f.converters[converter] = trusted
	f.mu.Unlock()

	call.Emit(f.address, "TokenConverterSet", "converter", converter, "isTrusted", trusted)
	return nil
}

func (f *Factory) Snapshot() any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := factorySnapshot{
		initialized:         f.initialized,
		marketID:            f.marketID,
		accountToVault:      make(map[common.Address]common.Address, len(f.accountToVault)),
		vaultToAccount:      make(map[common.Address]common.Address, len(f.vaultToAccount)),
		vaults:              make(map[common.Address]*Proxy, len(f.vaults)),
		converters:          make(map[common.Address]bool, len(f.converters)),
		allowableDebt:       f.allowableDebt,
		allowableCollateral: f.allowableCollateral,
		implementation:      f.implementation,
	}
	for k, v := range f.accountToVault {
		s.accountToVault[k] = v
	}
	for k, v := range f.vaultToAccount {
		s.vaultToAccount[k] = v
	}
	for k, v := range f.vaults {
		s.vaults[k] = v
	}
	for k, v := range f.converters {
		s.converters[k] = v
	}
	return s
}

func (f *Factory) Restore(snapshot any) {
	s := snapshot.(factorySnapshot)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.initialized = s.initialized
	f.marketID = s.marketID
	f.accountToVault = s.accountToVault
	f.vaultToAccount = s.vaultToAccount
	f.vaults = s.vaults
	f.converters = s.converters
	f.allowableDebt = s.allowableDebt
	f.allowableCollateral = s.allowableCollateral
	f.implementation = s.implementation
}
