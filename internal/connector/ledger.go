package connector

import (
	"context"
	"sync"
	"time"

	"moff.io/moff-connector/internal/engine"
	"moff.io/moff-connector/internal/ledger"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/concurrent"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

type LedgerOptions struct {
	ChainID                uint64
	URL                    string
	PollingInterval        time.Duration
	RequestTimeout         time.Duration
	AccountFetchingConfigs ledger.AccountFetchingConfigs
	BaseDerivationPath     string
	MaxRequestsPerSecond   int
	CacheSize              int
	// ClientFactory opens the device, ledger.USBClientFactory when nil.
	ClientFactory ledger.ClientFactory
	// OnError is accepted for parity with the embedded options. The engine emits no
	// notifications, so nothing is reported through it.
	OnError func(error)
}

// LedgerConnector talks to a hardware wallet through a provider engine: device stage, cache
// stage and RPC stage.
type LedgerConnector struct {
	name    string
	actions web3.Actions
	opts    LedgerOptions

	acquisition *concurrent.Promise[web3.Provider]

	mu         sync.Mutex
	engine     *engine.Engine
	generation uint64
}

var _ web3.Connector = (*LedgerConnector)(nil)

func NewLedgerConnector(name string, actions web3.Actions, opts LedgerOptions) (*LedgerConnector, error) {
	if actions == nil {
		return nil, ErrNilActions
	}
	if opts.URL == "" {
		return nil, errors.New("ledger rpc url not present")
	}
	if opts.ChainID == 0 {
		return nil, errors.New("ledger chain id not present")
	}
	if opts.ClientFactory == nil {
		opts.ClientFactory = ledger.USBClientFactory
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = engine.DefaultCacheSize
	}
	c := &LedgerConnector{name: name, actions: actions, opts: opts}
	c.acquisition = concurrent.NewPromise(c.initialize)
	return c, nil
}

func (c *LedgerConnector) Name() string {
	return c.name
}

func (c *LedgerConnector) Provider() web3.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil
	}
	return c.engine
}

// ensureProvider opens the engine once. A failed open is forgotten so the next call tries again.
func (c *LedgerConnector) ensureProvider(ctx context.Context) (web3.Provider, error) {
	provider, err := c.acquisition.Get(ctx)
	if err != nil {
		c.acquisition.ResetFailed()
	}
	return provider, err
}

func (c *LedgerConnector) initialize(ctx context.Context) (web3.Provider, error) {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	device, err := ledger.NewSubprovider(c.opts.ChainID, c.opts.ClientFactory, c.opts.AccountFetchingConfigs, c.opts.BaseDerivationPath)
	if err != nil {
		return nil, err
	}
	e := engine.New(c.opts.PollingInterval)
	e.AddProvider(device)
	e.AddProvider(engine.NewCacheSubprovider(c.opts.CacheSize))
	e.AddProvider(engine.NewRPCSubprovider(c.opts.URL, c.opts.RequestTimeout, c.opts.MaxRequestsPerSecond))
	if err := e.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "start ledger provider")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		log.Debugf("%v - deactivated during initialization, stopping engine", c.name)
		e.Stop()
		return nil, nil
	}
	c.engine = e
	return e, nil
}

// ConnectEagerly silently restores the session. It always returns nil.
func (c *LedgerConnector) ConnectEagerly(ctx context.Context) error {
	connectEagerly(ctx, c.name, c.actions, c.ensureProvider)
	return nil
}

// Activate opens the device and the engine. The chain is fixed by the options, so desired is
// ignored and nothing is committed; accounts are read on demand through the provider.
func (c *LedgerConnector) Activate(ctx context.Context, _ *web3.ChainSelection) error {
	cancelActivation := c.actions.StartActivation()
	defer cancelActivation()

	provider, err := c.ensureProvider(ctx)
	if err != nil {
		return err
	}
	if provider == nil {
		return ErrNoProvider
	}
	return nil
}

// Deactivate stops the engine and forgets it so the next activation opens the device again.
func (c *LedgerConnector) Deactivate(_ context.Context, cause error) error {
	c.mu.Lock()
	e := c.engine
	c.engine = nil
	c.generation++
	c.acquisition.Reset()
	c.mu.Unlock()

	if cause != nil {
		log.Debugf("%v - deactivating:%v", c.name, cause)
	}
	if e != nil {
		e.Stop()
	}
	return nil
}
