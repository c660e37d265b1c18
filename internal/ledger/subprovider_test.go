package ledger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connector/internal/web3"
)

type fakeDevice struct {
	mu      sync.Mutex
	derived []string
	closed  bool
}

func (d *fakeDevice) Derive(ctx context.Context, path accounts.DerivationPath, confirm bool) (common.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.derived = append(d.derived, path.String())
	var addr common.Address
	addr[19] = byte(path[len(path)-1] + 1)
	return addr, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func factoryFor(d *fakeDevice) ClientFactory {
	return func(ctx context.Context) (DeviceClient, error) {
		return d, nil
	}
}

func passthrough(ctx context.Context, req web3.RequestArguments) (json.RawMessage, error) {
	return json.RawMessage(`"next:` + req.Method + `"`), nil
}

func TestParseBaseDerivationPath(t *testing.T) {
	def, err := ParseBaseDerivationPath("")
	require.NoError(t, err)
	assert.Equal(t, "m/44'/60'/0'", def.String())

	withRoot, err := ParseBaseDerivationPath("m/44'/60'/1'")
	require.NoError(t, err)
	assert.Equal(t, "m/44'/60'/1'", withRoot.String())

	_, err = ParseBaseDerivationPath("44'/x")
	assert.Error(t, err)
}

func TestSubproviderAccounts(t *testing.T) {
	device := &fakeDevice{}
	s, err := NewSubprovider(1, factoryFor(device), AccountFetchingConfigs{NumAddressesToReturn: 2}, "")
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	raw, err := s.HandleRequest(context.Background(), web3.RequestArguments{Method: web3.MethodRequestAccounts}, passthrough)
	require.NoError(t, err)
	var addresses []string
	require.NoError(t, json.Unmarshal(raw, &addresses))
	assert.Equal(t, []string{
		"0x0000000000000000000000000000000000000001",
		"0x0000000000000000000000000000000000000002",
	}, addresses)
	assert.Equal(t, []string{"m/44'/60'/0'/0", "m/44'/60'/0'/1"}, device.derived)

	raw, err = s.HandleRequest(context.Background(), web3.RequestArguments{Method: "eth_coinbase"}, passthrough)
	require.NoError(t, err)
	assert.JSONEq(t, `"0x0000000000000000000000000000000000000001"`, string(raw))

	s.Stop()
	assert.True(t, device.closed)
	_, err = s.HandleRequest(context.Background(), web3.RequestArguments{Method: web3.MethodAccounts}, passthrough)
	var rpcErr *web3.ProviderRpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, web3.ErrCodeDisconnected, rpcErr.Code)
}

func TestSubproviderRouting(t *testing.T) {
	s, err := NewSubprovider(5, factoryFor(&fakeDevice{}), AccountFetchingConfigs{}, "")
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	raw, err := s.HandleRequest(context.Background(), web3.RequestArguments{Method: "net_version"}, passthrough)
	require.NoError(t, err)
	assert.JSONEq(t, `"5"`, string(raw))

	raw, err = s.HandleRequest(context.Background(), web3.RequestArguments{Method: web3.MethodChainID}, passthrough)
	require.NoError(t, err)
	assert.JSONEq(t, `"next:eth_chainId"`, string(raw))

	_, err = s.HandleRequest(context.Background(), web3.RequestArguments{Method: "personal_sign"}, passthrough)
	var rpcErr *web3.ProviderRpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, web3.ErrCodeUnsupportedMethod, rpcErr.Code)
}

func TestSubproviderStartFailure(t *testing.T) {
	boom := stderrors.New("device locked")
	s, err := NewSubprovider(1, func(ctx context.Context) (DeviceClient, error) {
		return nil, boom
	}, AccountFetchingConfigs{}, "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(context.Background()), boom)

	_, err = NewSubprovider(1, nil, AccountFetchingConfigs{}, "")
	assert.Error(t, err)
}

func TestAccountFetchingDefaults(t *testing.T) {
	c := AccountFetchingConfigs{}.withDefaults()
	assert.Equal(t, 1000, c.AddressSearchLimit)
	assert.Equal(t, 1, c.NumAddressesToReturn)

	capped := AccountFetchingConfigs{AddressSearchLimit: 3, NumAddressesToReturn: 10}.withDefaults()
	assert.Equal(t, 3, capped.NumAddressesToReturn)
}
