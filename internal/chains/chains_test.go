package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsConsistent(t *testing.T) {
	assert.Len(t, Mapping, len(Array))
	for _, b := range Array {
		assert.NotEmpty(t, b.RPCURLs, b.Name)
		assert.Equal(t, uint8(18), b.Currency.Decimals, b.Name)
	}
}

func TestLookupAndNames(t *testing.T) {
	b, ok := Lookup(137)
	require.True(t, ok)
	assert.Equal(t, "0x89", b.IDHex())
	assert.Equal(t, "Polygon", b.DisplayName())

	b, ok = ByName(" BSC Testnet ")
	require.True(t, ok)
	assert.Equal(t, uint64(97), b.ID)
	assert.Equal(t, "Bsc Testnet", Name(97))

	_, ok = ByName("nope")
	assert.False(t, ok)
	assert.Equal(t, "0x3039", Name(12345))
}

func TestSelection(t *testing.T) {
	assert.Nil(t, Selection(0))

	known := Selection(42161)
	assert.Equal(t, uint64(42161), known.Desired())
	params := known.Parameters()
	require.NotNil(t, params)
	assert.Equal(t, "Arbitrum One", params.ChainName)
	assert.Equal(t, "ETH", params.NativeCurrency.Symbol)

	unknown := Selection(12345)
	assert.Equal(t, uint64(12345), unknown.Desired())
	assert.Nil(t, unknown.Parameters())
}

func TestResolve(t *testing.T) {
	none, err := Resolve(0, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	byName, err := Resolve(1, "Polygon")
	require.NoError(t, err)
	assert.Equal(t, uint64(137), byName.Desired())
	assert.NotNil(t, byName.Parameters())

	byID, err := Resolve(10, " ")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), byID.Desired())

	_, err = Resolve(0, "nope")
	assert.Error(t, err)
}
