package converter

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"
)

var (
	uint256Type, _ = abi.NewType("uint256", "", nil)
	bytesType, _   = abi.NewType("bytes", "", nil)

	// (uint256 minOutputAmount, bytes extraData)
	orderDataArgs = abi.Arguments{{Type: uint256Type}, {Type: bytesType}}
	// (uint256 transferAmount)
	callDataArgs = abi.Arguments{{Type: uint256Type}}
)

// EncodeOrderData packs the sell action payload.
func EncodeOrderData(minOutputAmount *uint256.Int, extraData []byte) ([]byte, error) {
	if minOutputAmount == nil {
		minOutputAmount = new(uint256.Int)
	}
	if extraData == nil {
		extraData = []byte{}
	}
	return orderDataArgs.Pack(minOutputAmount.ToBig(), extraData)
}

// DecodeOrderData unpacks the sell action payload.
func DecodeOrderData(data []byte) (*uint256.Int, []byte, error) {
	decoded, err := orderDataArgs.Unpack(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode order data: %w", err)
	}
	if len(decoded) != 2 {
		return nil, nil, fmt.Errorf("invalid order data: expected 2 values, got %d", len(decoded))
	}
	minOut, ok := decoded[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("invalid order data: min output amount is %T", decoded[0])
	}
	extra, ok := decoded[1].([]byte)
	if !ok {
		return nil, nil, fmt.Errorf("invalid order data: extra data is %T", decoded[1])
	}
	out, overflow := uint256.FromBig(minOut)
	if overflow {
		return nil, nil, fmt.Errorf("invalid order data: min output amount overflows")
	}
	return out, extra, nil
}

// EncodeCallData packs the unwrap call action payload.
func EncodeCallData(transferAmount *uint256.Int) ([]byte, error) {
	return callDataArgs.Pack(transferAmount.ToBig())
}

// DecodeCallData unpacks the unwrap call action payload.
func DecodeCallData(data []byte) (*uint256.Int, error) {
	decoded, err := callDataArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode call data: %w", err)
	}
	if len(decoded) != 1 {
		return nil, fmt.Errorf("invalid call data: expected 1 value, got %d", len(decoded))
	}
	amount, ok := decoded[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid call data: transfer amount is %T", decoded[0])
	}
	out, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("invalid call data: transfer amount overflows")
	}
	return out, nil
}
