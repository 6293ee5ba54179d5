package converter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
)

// TokenUnwrapper redeems ticket for the underlying held by the vault and
// sells the underlying for a supported asset on its desk.
//
// Unwrapping takes two actions in one batch: a call on the liquid account
// that authorizes the ticket to leave the engine, then a sell on the solid
// account that moves the ticket here and releases the vault's underlying.
type TokenUnwrapper struct {
	base
}

var _ Unwrapper = (*TokenUnwrapper)(nil)

// DeployUnwrapper registers an unwrapper on the chain. The factory owner still
// has to trust it before it can move ticket.
func DeployUnwrapper(call *chain.Call, p Params) (*TokenUnwrapper, error) {
	b, err := newBase(call, unwrapperComponent, p)
	if err != nil {
		return nil, err
	}
	u := &TokenUnwrapper{base: b}
	call.Chain().Register(u.address, u)
	return u, nil
}

func (u *TokenUnwrapper) ActionsLength() int { return 2 }

func (u *TokenUnwrapper) GetExchangeCost(inputToken, outputToken common.Address, desiredInputAmount *uint256.Int,
	_ []byte) (*uint256.Int, error) {
	if inputToken != u.Token() {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "invalid input token %s", inputToken.Hex())
	}
	if !u.Supports(outputToken) {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "invalid output token %s", outputToken.Hex())
	}
	if err := requirePositive(unwrapperComponent, "desired input amount", desiredInputAmount); err != nil {
		return nil, err
	}
	return u.desk.Quote(u.factory.UnderlyingToken().Address(), outputToken, desiredInputAmount)
}

func (u *TokenUnwrapper) CreateActionsForUnwrapping(p ActionParams) ([]margin.Action, error) {
	if p.InputMarketID != u.factory.MarketID() {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "invalid input market %d", p.InputMarketID)
	}
	output, err := u.marketToken(p.OutputMarketID)
	if err != nil {
		return nil, err
	}
	if !u.Supports(output) {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "invalid output market %d", p.OutputMarketID)
	}
	if _, ok := u.factory.GetAccountByVault(p.LiquidAccountOwner); !ok {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent,
			"liquid account owner %s is not a vault", p.LiquidAccountOwner.Hex())
	}
	if err := requirePositive(unwrapperComponent, "input amount", p.InputAmount); err != nil {
		return nil, err
	}

	callData, err := EncodeCallData(p.InputAmount)
	if err != nil {
		return nil, err
	}
	orderData, err := EncodeOrderData(p.MinOutputAmount, p.OrderData)
	if err != nil {
		return nil, err
	}
	return []margin.Action{
		{
			Type:         margin.Call,
			AccountID:    p.LiquidAccountID,
			OtherAddress: u.address,
			Data:         callData,
		},
		{
			Type:              margin.Sell,
			AccountID:         p.SolidAccountID,
			PrimaryMarketID:   p.InputMarketID,
			SecondaryMarketID: p.OutputMarketID,
			OtherAddress:      u.address,
			Amount:            p.InputAmount,
			Data:              orderData,
		},
	}, nil
}

// CallFunction authorizes the ticket of account's vault to move from the
// engine to this unwrapper.
func (u *TokenUnwrapper) CallFunction(call *chain.Call, sender common.Address, account margin.AccountInfo, data []byte) error {
	if err := u.requireEngine(unwrapperComponent, call); err != nil {
		return err
	}
	proxy, ok := u.factory.Vault(account.Owner)
	if !ok {
		return chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "account owner %s is not a vault", account.Owner.Hex())
	}
	if sender != account.Owner && !u.engine.IsGlobalOperator(sender) {
		return chain.Revert(chain.ErrAuthorization, unwrapperComponent,
			"sender %s is neither the vault nor a global operator", sender.Hex())
	}
	amount, err := DecodeCallData(data)
	if err != nil {
		return chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "%v", err)
	}
	if err := requirePositive(unwrapperComponent, "transfer amount", amount); err != nil {
		return err
	}
	if held := proxy.UnderlyingBalance(); held.Lt(amount) {
		return chain.Revert(chain.ErrInsufficientAmount, unwrapperComponent,
			"insufficient balance for transfer %s < %s", held.Dec(), amount.Dec())
	}
	return u.factory.EnqueueTransferFromDolomiteMargin(call.From(u.address), account.Owner, amount)
}

// Exchange runs after the engine has sent inputAmount ticket here, which
// released the same amount of underlying from the vault.
func (u *TokenUnwrapper) Exchange(call *chain.Call, tradeOriginator, receiver, outputToken, inputToken common.Address,
	inputAmount *uint256.Int, orderData []byte) (*uint256.Int, error) {
	if err := u.requireEngine(unwrapperComponent, call); err != nil {
		return nil, err
	}
	if inputToken != u.Token() {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "invalid input token %s", inputToken.Hex())
	}
	out, ok := u.tokens[outputToken]
	if !ok {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "invalid output token %s", outputToken.Hex())
	}
	if err := requirePositive(unwrapperComponent, "input amount", inputAmount); err != nil {
		return nil, err
	}
	if held := u.factory.BalanceOf(u.address); held.Lt(inputAmount) {
		return nil, chain.Revert(chain.ErrInsufficientAmount, unwrapperComponent,
			"insufficient input for unwrap %s < %s", held.Dec(), inputAmount.Dec())
	}
	minOut, _, err := DecodeOrderData(orderData)
	if err != nil {
		return nil, chain.Revert(chain.ErrInvariantViolation, unwrapperComponent, "%v", err)
	}

	self := call.From(u.address)
	if err := u.factory.BurnFromTokenConverter(self, inputAmount); err != nil {
		return nil, err
	}
	underlying := u.factory.UnderlyingToken()
	if err := underlying.Approve(self, u.desk.Address(), inputAmount); err != nil {
		return nil, err
	}
	amountOut, err := u.desk.Swap(self, underlying.Address(), outputToken, inputAmount)
	if err != nil {
		return nil, err
	}
	if err := requireMinOutput(unwrapperComponent, amountOut, minOut); err != nil {
		return nil, err
	}
	if err := out.Approve(self, receiver, amountOut); err != nil {
		return nil, err
	}

	u.log.Debug("unwrapped", "originator", tradeOriginator.Hex(), "output", out.Symbol(),
		"in", inputAmount.Dec(), "out", amountOut.Dec())
	return amountOut, nil
}
