// Package system wires a complete isolation-vault deployment on a fresh chain.
package system

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/config"
	"frizo/isolation_vaults/internal/converter"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/token"
	"frizo/isolation_vaults/internal/vault"
)

// System is one underlying asset's vault deployment and its collaborators.
type System struct {
	Chain      *chain.Chain
	Owner      common.Address
	Liquidator common.Address

	Engine     *margin.Engine
	Underlying *token.Token
	Others     map[string]*token.Token
	Markets    map[string]uint64

	Factory   *vault.Factory
	Switch    *vault.RedemptionSwitch
	Desk      *converter.FixedRateDesk
	Wrapper   *converter.TokenWrapper
	Unwrapper *converter.TokenUnwrapper

	log *logger.Logger
}

// NewImplementation builds the vault behaviour for variant. pauser is only
// used by the pausable variants.
func NewImplementation(variant string, pauser vault.RedemptionPauser) (vault.Implementation, error) {
	switch variant {
	case config.VariantBase:
		return vault.BaseLogic{}, nil
	case config.VariantPausable:
		return vault.PausableLogic{Implementation: vault.BaseLogic{}, Pauser: pauser}, nil
	case config.VariantEOA:
		return vault.OnlyEOALogic{Implementation: vault.BaseLogic{}}, nil
	case config.VariantPausableEOA:
		return vault.OnlyEOALogic{Implementation: vault.PausableLogic{Implementation: vault.BaseLogic{}, Pauser: pauser}}, nil
	default:
		return nil, fmt.Errorf("unknown vault variant %q", variant)
	}
}

func isPausable(variant string) bool {
	return variant == config.VariantPausable || variant == config.VariantPausableEOA
}

// New deploys and initializes everything in a single batch sent by the
// configured owner.
func New(cfg *config.Config, log *logger.Logger) (*System, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vc := cfg.Vault
	for _, a := range []string{vc.Owner, vc.Liquidator} {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid address %q", a)
		}
	}
	rate, err := decimal.NewFromString(vc.ExchangeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid exchange rate %q: %w", vc.ExchangeRate, err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("invalid exchange rate %q", vc.ExchangeRate)
	}

	owner := common.HexToAddress(vc.Owner)
	s := &System{
		Chain:      chain.New(owner, log),
		Owner:      owner,
		Liquidator: common.HexToAddress(vc.Liquidator),
		Others:     make(map[string]*token.Token),
		Markets:    make(map[string]uint64),
		log:        log,
	}

	err = s.Chain.Transact(owner, func(call *chain.Call) error {
		return s.bootstrap(call, vc, rate)
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log.Info("isolation vaults ready",
		"variant", vc.Variant,
		"underlying", s.Underlying.Symbol(),
		"ticket", s.Factory.Symbol(),
		"marketId", s.Factory.MarketID(),
		"markets", s.Engine.NumMarkets(),
	)
	return s, nil
}

func (s *System) bootstrap(call *chain.Call, vc config.VaultConfig, rate decimal.Decimal) error {
	s.Engine = margin.Deploy(call, s.log)
	s.Underlying = token.Deploy(call, vc.UnderlyingSymbol)

	others := make([]token.ERC20, 0, len(vc.OtherSymbols))
	for _, sym := range vc.OtherSymbols {
		t := token.Deploy(call, sym)
		id, err := s.Engine.AddMarket(call, t, false)
		if err != nil {
			return err
		}
		s.Others[sym] = t
		s.Markets[sym] = id
		others = append(others, t)
	}

	var pauser vault.RedemptionPauser
	if isPausable(vc.Variant) {
		s.Switch = vault.DeployRedemptionSwitch(call)
		pauser = s.Switch
	}
	impl, err := NewImplementation(vc.Variant, pauser)
	if err != nil {
		return err
	}

	ticketSymbol := vc.TicketSymbol
	if ticketSymbol == "" {
		ticketSymbol = "d" + vc.UnderlyingSymbol
	}
	s.Factory, err = vault.DeployFactory(call, vault.FactoryParams{
		Symbol:         ticketSymbol,
		Underlying:     s.Underlying,
		Engine:         s.Engine,
		Implementation: impl,
		Log:            s.log,
	})
	if err != nil {
		return err
	}
	ticketID, err := s.Engine.AddMarket(call, s.Factory, true)
	if err != nil {
		return err
	}
	s.Markets[ticketSymbol] = ticketID
	if err := s.Engine.SetGlobalOperator(call, s.Factory.Address(), true); err != nil {
		return err
	}

	s.Desk = converter.DeployDesk(call)
	params := converter.Params{Factory: s.Factory, Desk: s.Desk, Tokens: others, Log: s.log}
	if s.Wrapper, err = converter.DeployWrapper(call, params); err != nil {
		return err
	}
	if s.Unwrapper, err = converter.DeployUnwrapper(call, params); err != nil {
		return err
	}
	if err := s.Engine.SetGlobalOperator(call, s.Liquidator, true); err != nil {
		return err
	}
	if err := s.Factory.OwnerInitialize(call, []common.Address{s.Wrapper.Address(), s.Unwrapper.Address()}); err != nil {
		return err
	}

	debt, err := s.marketIDs(vc.AllowableDebtMarkets)
	if err != nil {
		return err
	}
	if err := s.Factory.OwnerSetAllowableDebtMarketIDs(call, debt); err != nil {
		return err
	}
	collateral, err := s.marketIDs(vc.AllowableCollateralMarkets)
	if err != nil {
		return err
	}
	if err := s.Factory.OwnerSetAllowableCollateralMarketIDs(call, collateral); err != nil {
		return err
	}

	reserves := uint256.NewInt(vc.DeskReserves)
	inverse := decimal.NewFromInt(1).Div(rate)
	if err := s.Underlying.Mint(call, s.Desk.Address(), reserves); err != nil {
		return err
	}
	for _, sym := range vc.OtherSymbols {
		t := s.Others[sym]
		if err := s.Desk.SetRate(call, s.Underlying, t, rate); err != nil {
			return err
		}
		if err := s.Desk.SetRate(call, t, s.Underlying, inverse); err != nil {
			return err
		}
		if err := t.Mint(call, s.Desk.Address(), reserves); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) marketIDs(symbols []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(symbols))
	for _, sym := range symbols {
		id, ok := s.Markets[sym]
		if !ok {
			return nil, fmt.Errorf("unknown market %q", sym)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TicketMarketID is the factory's market.
func (s *System) TicketMarketID() uint64 {
	return s.Factory.MarketID()
}

// Fund mints amount of the underlying to account.
func (s *System) Fund(account common.Address, amount uint64) error {
	return s.Chain.Transact(s.Owner, func(call *chain.Call) error {
		return s.Underlying.Mint(call, account, uint256.NewInt(amount))
	})
}

// FundOther mints amount of the symbol token to account.
func (s *System) FundOther(symbol string, account common.Address, amount uint64) error {
	t, ok := s.Others[symbol]
	if !ok {
		return fmt.Errorf("unknown token %q", symbol)
	}
	return s.Chain.Transact(s.Owner, func(call *chain.Call) error {
		return t.Mint(call, account, uint256.NewInt(amount))
	})
}

// CreateVault creates the vault for account in a batch sent by account.
func (s *System) CreateVault(account common.Address) (*vault.Proxy, error) {
	var addr common.Address
	err := s.Chain.Transact(account, func(call *chain.Call) error {
		var err error
		addr, err = s.Factory.CreateVault(call, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	proxy, _ := s.Factory.Vault(addr)
	return proxy, nil
}

// CheckInvariants verifies that the ticket supply equals the underlying held
// by all vaults and that all of it sits in the margin engine's ledger.
func (s *System) CheckInvariants() error {
	physical := new(uint256.Int)
	for _, v := range s.Factory.Vaults() {
		physical.Add(physical, s.Underlying.BalanceOf(v))
	}
	supply := s.Factory.TotalSupply()
	if !supply.Eq(physical) {
		return fmt.Errorf("%w: ticket supply %s != underlying in vaults %s",
			chain.ErrInvariantViolation, supply.Dec(), physical.Dec())
	}
	held := s.Factory.BalanceOf(s.Engine.Address())
	if !held.Eq(supply) {
		return fmt.Errorf("%w: ticket held by the margin engine %s != supply %s",
			chain.ErrInvariantViolation, held.Dec(), supply.Dec())
	}
	recorded := s.Engine.TotalBalance(s.TicketMarketID())
	if recorded.IsNegative() || !recorded.Value.Eq(held) {
		return fmt.Errorf("%w: ticket recorded in accounts %s != held %s",
			chain.ErrInvariantViolation, recorded, held.Dec())
	}
	return nil
}
