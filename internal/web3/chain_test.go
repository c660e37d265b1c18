package web3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainID(t *testing.T) {
	cases := map[string]uint64{
		"0x1":     1,
		"0x89":    137,
		"0X2A":    42,
		"0x01":    1,
		"13881":   80001,
		" 0xa86a": 43114,
	}
	for in, want := range cases {
		got, err := ParseChainID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseChainID("0xzz")
	assert.Error(t, err)
	_, err = ParseChainID("")
	assert.Error(t, err)
}

func TestFormatChainID(t *testing.T) {
	assert.Equal(t, "0x1", FormatChainID(1))
	assert.Equal(t, "0x89", FormatChainID(137))
	assert.Equal(t, "0x13881", FormatChainID(80001))
}

func TestChainSelection(t *testing.T) {
	var none *ChainSelection
	assert.Equal(t, uint64(0), none.Desired())
	assert.Nil(t, none.Parameters())
	assert.Equal(t, "none", none.String())

	byID := ChainID(4)
	assert.Equal(t, uint64(4), byID.Desired())
	assert.Nil(t, byID.Parameters())
	assert.Equal(t, "id(0x4)", byID.String())

	withParams := ChainParameters(AddEthereumChainParameter{ChainID: 137, ChainName: "Polygon"})
	assert.Equal(t, uint64(137), withParams.Desired())
	require.NotNil(t, withParams.Parameters())
	assert.Equal(t, "Polygon", withParams.Parameters().ChainName)
	assert.Equal(t, "parameters(0x89)", withParams.String())
}

func TestProviderRpcError(t *testing.T) {
	err := NewProviderRpcError(ErrCodeUnrecognizedChain, "unrecognized chain %s", "0x89")
	assert.Equal(t, ErrCodeUnrecognizedChain, err.ErrorCode())
	assert.EqualError(t, err, "provider rpc error 4902: unrecognized chain 0x89")
}
