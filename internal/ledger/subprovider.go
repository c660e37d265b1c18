package ledger

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"moff.io/moff-connector/internal/engine"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/concurrent"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// AccountFetchingConfigs tunes how many addresses are derived from the device.
type AccountFetchingConfigs struct {
	AddressSearchLimit               int  `yaml:"address_search_limit"`
	NumAddressesToReturn             int  `yaml:"num_addresses_to_return"`
	ShouldAskForOnDeviceConfirmation bool `yaml:"should_ask_for_on_device_confirmation"`
}

const (
	defaultAddressSearchLimit   = 1000
	defaultNumAddressesToReturn = 1
)

func (c AccountFetchingConfigs) withDefaults() AccountFetchingConfigs {
	if c.AddressSearchLimit <= 0 {
		c.AddressSearchLimit = defaultAddressSearchLimit
	}
	if c.NumAddressesToReturn <= 0 {
		c.NumAddressesToReturn = defaultNumAddressesToReturn
	}
	if c.NumAddressesToReturn > c.AddressSearchLimit {
		c.NumAddressesToReturn = c.AddressSearchLimit
	}
	return c
}

var signingMethods = map[string]bool{
	"eth_sign":             true,
	"personal_sign":        true,
	"eth_signTransaction":  true,
	"eth_sendTransaction":  true,
	"eth_signTypedData":    true,
	"eth_signTypedData_v3": true,
	"eth_signTypedData_v4": true,
}

// Subprovider is the device stage. It answers account requests from the device and passes
// everything else on.
type Subprovider struct {
	networkID uint64
	factory   ClientFactory
	configs   AccountFetchingConfigs
	basePath  accounts.DerivationPath
	// the device handles one exchange at a time
	device concurrent.Limiter

	mu     sync.Mutex
	client DeviceClient
}

var (
	_ engine.Subprovider = (*Subprovider)(nil)
	_ engine.Starter     = (*Subprovider)(nil)
	_ engine.Stopper     = (*Subprovider)(nil)
)

func NewSubprovider(networkID uint64, factory ClientFactory, configs AccountFetchingConfigs, baseDerivationPath string) (*Subprovider, error) {
	if factory == nil {
		return nil, errors.New("ledger client factory not present")
	}
	basePath, err := ParseBaseDerivationPath(baseDerivationPath)
	if err != nil {
		return nil, err
	}
	return &Subprovider{
		networkID: networkID,
		factory:   factory,
		configs:   configs.withDefaults(),
		basePath:  basePath,
		device:    concurrent.NewLimiter(1),
	}, nil
}

// Start opens the device session.
func (s *Subprovider) Start(ctx context.Context) error {
	client, err := s.factory(ctx)
	if err != nil {
		return errors.Wrap(err, "open ledger device")
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	log.Infof("ledger stage - device ready on network %d, base path %s", s.networkID, s.basePath)
	return nil
}

func (s *Subprovider) Stop() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Warnf("ledger stage - close device:%v", err)
	}
}

func (s *Subprovider) HandleRequest(ctx context.Context, req web3.RequestArguments, next engine.Next) (json.RawMessage, error) {
	switch {
	case req.Method == web3.MethodAccounts, req.Method == web3.MethodRequestAccounts:
		addresses, err := s.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(addresses)
	case req.Method == "eth_coinbase":
		addresses, err := s.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		if len(addresses) == 0 {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(addresses[0])
	case req.Method == "net_version":
		return json.Marshal(strconv.FormatUint(s.networkID, 10))
	case signingMethods[req.Method]:
		return nil, web3.NewProviderRpcError(web3.ErrCodeUnsupportedMethod, "%s not supported by the ledger stage", req.Method)
	default:
		return next(ctx, req)
	}
}

// Accounts derives the configured number of addresses below the base path.
func (s *Subprovider) Accounts(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return nil, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "ledger device not open")
	}
	if err := s.device.AddContext(ctx); err != nil {
		return nil, err
	}
	defer s.device.Done()

	addresses := make([]string, 0, s.configs.NumAddressesToReturn)
	for i := 0; i < s.configs.NumAddressesToReturn; i++ {
		path := childPath(s.basePath, uint32(i))
		address, err := client.Derive(ctx, path, s.configs.ShouldAskForOnDeviceConfirmation)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address.Hex())
	}
	return addresses, nil
}
