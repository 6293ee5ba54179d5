// Package converter swaps between a vault's ticket token and ordinary
// margin-engine assets inside an operate batch.
package converter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/token"
	"frizo/isolation_vaults/internal/vault"
)

const (
	wrapperComponent   = "isolation wrapper"
	unwrapperComponent = "isolation unwrapper"
)

// Converter is the surface the margin engine and trade routers see.
type Converter interface {
	margin.ExchangeWrapper

	Address() common.Address
	// Token is the ticket token this converter handles.
	Token() common.Address
	ActionsLength() int
	GetExchangeCost(inputToken, outputToken common.Address, desiredInputAmount *uint256.Int, orderData []byte) (*uint256.Int, error)
}

// Wrapper turns another asset into the ticket token.
type Wrapper interface {
	Converter
	CreateActionsForWrapping(p ActionParams) ([]margin.Action, error)
}

// Unwrapper turns the ticket token into another asset.
type Unwrapper interface {
	Converter
	margin.Callee
	CreateActionsForUnwrapping(p ActionParams) ([]margin.Action, error)
}

// ActionParams describes the batch position a converter builds actions for.
// The solid account receives the output; the liquid account owns the ticket
// being unwrapped. Ordinary trades use the same account for both.
type ActionParams struct {
	SolidAccountID     int
	LiquidAccountID    int
	SolidAccountOwner  common.Address
	LiquidAccountOwner common.Address
	OutputMarketID     uint64
	InputMarketID      uint64
	MinOutputAmount    *uint256.Int
	InputAmount        *uint256.Int
	OrderData          []byte
}

// Params configures a converter deployment. Tokens are the non-ticket assets
// the converter accepts (wrapper) or produces (unwrapper).
type Params struct {
	Factory *vault.Factory
	Desk    Desk
	Tokens  []token.ERC20
	Log     *logger.Logger
}

type base struct {
	address common.Address
	factory *vault.Factory
	engine  *margin.Engine
	desk    Desk
	tokens  map[common.Address]token.ERC20
	log     *logger.Logger
}

func newBase(call *chain.Call, component string, p Params) (base, error) {
	if p.Factory == nil {
		return base{}, chain.Revert(chain.ErrState, component, "missing vault factory")
	}
	if p.Desk == nil {
		return base{}, chain.Revert(chain.ErrState, component, "missing exchange desk")
	}
	if len(p.Tokens) == 0 {
		return base{}, chain.Revert(chain.ErrState, component, "no counterpart tokens")
	}
	tokens := make(map[common.Address]token.ERC20, len(p.Tokens))
	for _, t := range p.Tokens {
		if t.Address() == p.Factory.Address() {
			return base{}, chain.Revert(chain.ErrInvariantViolation, component, "counterpart token cannot be the ticket token")
		}
		tokens[t.Address()] = t
	}
	return base{
		address: call.Chain().NewAddress(),
		factory: p.Factory,
		engine:  p.Factory.MarginEngine(),
		desk:    p.Desk,
		tokens:  tokens,
		log:     p.Log.Component(component),
	}, nil
}

func (b *base) Address() common.Address { return b.address }
func (b *base) Token() common.Address   { return b.factory.Address() }

// Supports reports whether tok is one of the counterpart tokens.
func (b *base) Supports(tok common.Address) bool {
	_, ok := b.tokens[tok]
	return ok
}

func (b *base) marketToken(marketID uint64) (common.Address, error) {
	m, err := b.engine.Market(marketID)
	if err != nil {
		return common.Address{}, err
	}
	return m.Token.Address(), nil
}

func (b *base) requireEngine(component string, call *chain.Call) error {
	return chain.Require(call.Sender() == b.engine.Address(), chain.ErrAuthorization, component,
		"only the margin engine can call, caller %s", call.Sender().Hex())
}

func requirePositive(component, what string, amount *uint256.Int) error {
	return chain.Require(amount != nil && !amount.IsZero(), chain.ErrInvariantViolation, component,
		"invalid %s", what)
}

func requireMinOutput(component string, out, minOut *uint256.Int) error {
	return chain.Require(!out.Lt(minOut), chain.ErrInsufficientAmount, component,
		"insufficient output amount %s < %s", out.Dec(), minOut.Dec())
}
