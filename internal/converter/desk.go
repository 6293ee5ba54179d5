package converter

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/token"
)

const deskComponent = "exchange desk"

// Desk prices and settles the swap behind a converter.
type Desk interface {
	Address() common.Address
	Quote(inputToken, outputToken common.Address, amount *uint256.Int) (*uint256.Int, error)
	// Swap pulls amount of inputToken from the caller, which must have
	// approved the desk, and pays the quoted outputToken back to it.
	Swap(call *chain.Call, inputToken, outputToken common.Address, amount *uint256.Int) (*uint256.Int, error)
}

type pair struct {
	input  common.Address
	output common.Address
}

// FixedRateDesk settles from its own reserves at owner-set rates.
type FixedRateDesk struct {
	address common.Address
	owner   common.Address

	mu     sync.RWMutex
	tokens map[common.Address]token.ERC20
	rates  map[pair]decimal.Decimal
}

var _ Desk = (*FixedRateDesk)(nil)

// DeployDesk creates a desk owned by the caller.
func DeployDesk(call *chain.Call) *FixedRateDesk {
	ch := call.Chain()
	d := &FixedRateDesk{
		address: ch.NewAddress(),
		owner:   call.Sender(),
		tokens:  make(map[common.Address]token.ERC20),
		rates:   make(map[pair]decimal.Decimal),
	}
	ch.Register(d.address, d)
	return d
}

func (d *FixedRateDesk) Address() common.Address { return d.address }

// SetRate prices one unit of input at rate units of output.
func (d *FixedRateDesk) SetRate(call *chain.Call, input, output token.ERC20, rate decimal.Decimal) error {
	if call.Sender() != d.owner {
		return chain.Revert(chain.ErrAuthorization, deskComponent, "caller %s is not the owner", call.Sender().Hex())
	}
	if !rate.IsPositive() {
		return chain.Revert(chain.ErrInvariantViolation, deskComponent, "invalid rate %s", rate)
	}

	d.mu.Lock()
	d.tokens[input.Address()] = input
	d.tokens[output.Address()] = output
	d.rates[pair{input: input.Address(), output: output.Address()}] = rate
	d.mu.Unlock()

	call.Emit(d.address, "RateSet", "input", input.Symbol(), "output", output.Symbol(), "rate", rate.String())
	return nil
}

func (d *FixedRateDesk) Rate(input, output common.Address) (decimal.Decimal, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rates[pair{input: input, output: output}]
	return r, ok
}

func (d *FixedRateDesk) Quote(inputToken, outputToken common.Address, amount *uint256.Int) (*uint256.Int, error) {
	rate, ok := d.Rate(inputToken, outputToken)
	if !ok {
		return nil, chain.Revert(chain.ErrInvariantViolation, deskComponent,
			"no rate for %s -> %s", inputToken.Hex(), outputToken.Hex())
	}
	out := decimal.NewFromBigInt(amount.ToBig(), 0).Mul(rate).Floor()
	res, overflow := uint256.FromBig(out.BigInt())
	if overflow {
		return nil, chain.Revert(chain.ErrInvariantViolation, deskComponent, "quote for %s overflows", amount.Dec())
	}
	return res, nil
}

func (d *FixedRateDesk) Swap(call *chain.Call, inputToken, outputToken common.Address, amount *uint256.Int) (*uint256.Int, error) {
	out, err := d.Quote(inputToken, outputToken, amount)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	in, outTok := d.tokens[inputToken], d.tokens[outputToken]
	d.mu.RUnlock()

	self := call.From(d.address)
	if err := in.TransferFrom(self, call.Sender(), d.address, amount); err != nil {
		return nil, err
	}
	if err := outTok.Transfer(self, call.Sender(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *FixedRateDesk) Snapshot() any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rates := make(map[pair]decimal.Decimal, len(d.rates))
	for k, v := range d.rates {
		rates[k] = v
	}
	tokens := make(map[common.Address]token.ERC20, len(d.tokens))
	for k, v := range d.tokens {
		tokens[k] = v
	}
	return [2]any{tokens, rates}
}

func (d *FixedRateDesk) Restore(snapshot any) {
	s := snapshot.([2]any)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = s[0].(map[common.Address]token.ERC20)
	d.rates = s[1].(map[pair]decimal.Decimal)
}
