package converter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/margin"
)

// TokenWrapper sells a supported asset for the underlying on its desk and
// deposits the result into the trading vault as ticket.
type TokenWrapper struct {
	base
}

var _ Wrapper = (*TokenWrapper)(nil)

// DeployWrapper registers a wrapper on the chain. The factory owner still has
// to trust it before it can move ticket.
func DeployWrapper(call *chain.Call, p Params) (*TokenWrapper, error) {
	b, err := newBase(call, wrapperComponent, p)
	if err != nil {
		return nil, err
	}
	w := &TokenWrapper{base: b}
	call.Chain().Register(w.address, w)
	return w, nil
}

func (w *TokenWrapper) ActionsLength() int { return 1 }

func (w *TokenWrapper) GetExchangeCost(inputToken, outputToken common.Address, desiredInputAmount *uint256.Int,
	_ []byte) (*uint256.Int, error) {
	if !w.Supports(inputToken) {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid input token %s", inputToken.Hex())
	}
	if outputToken != w.Token() {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid output token %s", outputToken.Hex())
	}
	if err := requirePositive(wrapperComponent, "desired input amount", desiredInputAmount); err != nil {
		return nil, err
	}
	// one unit of underlying mints one unit of ticket
	return w.desk.Quote(inputToken, w.factory.UnderlyingToken().Address(), desiredInputAmount)
}

func (w *TokenWrapper) CreateActionsForWrapping(p ActionParams) ([]margin.Action, error) {
	input, err := w.marketToken(p.InputMarketID)
	if err != nil {
		return nil, err
	}
	if !w.Supports(input) {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid input market %d", p.InputMarketID)
	}
	if p.OutputMarketID != w.factory.MarketID() {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid output market %d", p.OutputMarketID)
	}
	data, err := EncodeOrderData(p.MinOutputAmount, p.OrderData)
	if err != nil {
		return nil, err
	}
	return []margin.Action{{
		Type:              margin.Sell,
		AccountID:         p.SolidAccountID,
		PrimaryMarketID:   p.InputMarketID,
		SecondaryMarketID: p.OutputMarketID,
		OtherAddress:      w.address,
		Amount:            p.InputAmount,
		Data:              data,
	}}, nil
}

// Exchange runs after the engine has sent inputAmount of inputToken here.
// The ticket it returns is approved for receiver and authorized to move into
// the engine exactly once.
func (w *TokenWrapper) Exchange(call *chain.Call, tradeOriginator, receiver, outputToken, inputToken common.Address,
	inputAmount *uint256.Int, orderData []byte) (*uint256.Int, error) {
	if err := w.requireEngine(wrapperComponent, call); err != nil {
		return nil, err
	}
	if _, ok := w.factory.GetAccountByVault(tradeOriginator); !ok {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid trade originator %s", tradeOriginator.Hex())
	}
	if outputToken != w.Token() {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid output token %s", outputToken.Hex())
	}
	in, ok := w.tokens[inputToken]
	if !ok {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "invalid input token %s", inputToken.Hex())
	}
	if err := requirePositive(wrapperComponent, "input amount", inputAmount); err != nil {
		return nil, err
	}
	if held := in.BalanceOf(w.address); held.Lt(inputAmount) {
		return nil, chain.Revert(chain.ErrInsufficientAmount, wrapperComponent,
			"insufficient input for wrap %s < %s", held.Dec(), inputAmount.Dec())
	}
	minOut, _, err := DecodeOrderData(orderData)
	if err != nil {
		return nil, chain.Revert(chain.ErrInvariantViolation, wrapperComponent, "%v", err)
	}

	self := call.From(w.address)
	underlying := w.factory.UnderlyingToken()
	if err := in.Approve(self, w.desk.Address(), inputAmount); err != nil {
		return nil, err
	}
	out, err := w.desk.Swap(self, inputToken, underlying.Address(), inputAmount)
	if err != nil {
		return nil, err
	}
	if err := requireMinOutput(wrapperComponent, out, minOut); err != nil {
		return nil, err
	}

	if err := w.factory.EnqueueTransferIntoDolomiteMargin(self, tradeOriginator, out); err != nil {
		return nil, err
	}
	if err := underlying.Approve(self, tradeOriginator, out); err != nil {
		return nil, err
	}
	if err := w.factory.DepositIntoDolomiteMarginFromTokenConverter(self, tradeOriginator, out); err != nil {
		return nil, err
	}
	if err := w.factory.Approve(self, receiver, out); err != nil {
		return nil, err
	}

	w.log.Debug("wrapped", "vault", tradeOriginator.Hex(), "input", in.Symbol(), "in", inputAmount.Dec(), "out", out.Dec())
	return out, nil
}
