package converter

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderData(t *testing.T) {
	data, err := EncodeOrderData(uint256.NewInt(1234), []byte{0xca, 0xfe})
	require.NoError(t, err)

	minOut, extra, err := DecodeOrderData(data)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1234), minOut)
	assert.Equal(t, []byte{0xca, 0xfe}, extra)

	t.Run("nil values", func(t *testing.T) {
		data, err := EncodeOrderData(nil, nil)
		require.NoError(t, err)
		minOut, extra, err := DecodeOrderData(data)
		require.NoError(t, err)
		assert.True(t, minOut.IsZero())
		assert.Empty(t, extra)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := DecodeOrderData([]byte{1, 2, 3})
		assert.ErrorContains(t, err, "failed to decode order data")
	})
}

func TestCallData(t *testing.T) {
	data, err := EncodeCallData(uint256.NewInt(77))
	require.NoError(t, err)
	assert.Len(t, data, 32)

	amount, err := DecodeCallData(data)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(77), amount)

	_, err = DecodeCallData(nil)
	assert.Error(t, err)
}
