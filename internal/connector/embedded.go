package connector

import (
	"context"
	"sync"

	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/concurrent"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// SDK is an embedded wallet widget client.
type SDK interface {
	Init(ctx context.Context, options interface{}) error
	// Login may show the widget's own UI. A declined login leaves Provider nil.
	Login(ctx context.Context, options interface{}) error
	Provider() web3.Provider
	Logout(ctx context.Context) error
	CleanUp(ctx context.Context) error
}

// SDKConstructor builds an SDK from constructor options.
type SDKConstructor func(options interface{}) (SDK, error)

// SDKLoader obtains the SDK module. It fails when the module is unavailable.
type SDKLoader func(ctx context.Context) (SDKConstructor, error)

type EmbeddedOptions struct {
	Loader             SDKLoader
	ConstructorOptions interface{}
	InitOptions        interface{}
	LoginOptions       interface{}
	// OnError receives errors carried by disconnect notifications.
	OnError func(error)
}

// EmbeddedConnector connects to an embedded wallet widget through its SDK.
type EmbeddedConnector struct {
	name    string
	actions web3.Actions
	opts    EmbeddedOptions

	acquisition *concurrent.Promise[web3.Provider]

	mu         sync.Mutex
	sdk        SDK
	provider   web3.Provider
	generation uint64
}

var _ web3.Connector = (*EmbeddedConnector)(nil)

func NewEmbeddedConnector(name string, actions web3.Actions, opts EmbeddedOptions) (*EmbeddedConnector, error) {
	if actions == nil {
		return nil, ErrNilActions
	}
	if opts.Loader == nil {
		return nil, errors.New("embedded sdk loader not present")
	}
	c := &EmbeddedConnector{name: name, actions: actions, opts: opts}
	c.acquisition = concurrent.NewPromise(c.initialize)
	return c, nil
}

func (c *EmbeddedConnector) Name() string {
	return c.name
}

func (c *EmbeddedConnector) Provider() web3.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// ensureProvider runs the memoized initialization and returns the current provider. A failed
// initialization is forgotten so the next call tries again.
func (c *EmbeddedConnector) ensureProvider(ctx context.Context) (web3.Provider, error) {
	if _, err := c.acquisition.Get(ctx); err != nil {
		c.acquisition.ResetFailed()
		return nil, err
	}
	return c.Provider(), nil
}

func (c *EmbeddedConnector) initialize(ctx context.Context) (web3.Provider, error) {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()
	return c.construct(ctx, generation)
}

// construct loads the SDK, logs in and, when a provider results, bridges its events. The
// result is dropped when the connector was deactivated meanwhile. An SDK that fails to log
// in, or that replaces one without a provider, is cleaned up.
func (c *EmbeddedConnector) construct(ctx context.Context, generation uint64) (web3.Provider, error) {
	newSDK, err := c.opts.Loader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load embedded sdk")
	}
	sdk, err := newSDK(c.opts.ConstructorOptions)
	if err != nil {
		return nil, errors.Wrap(err, "construct embedded sdk")
	}
	if err := sdk.Init(ctx, c.opts.InitOptions); err != nil {
		c.discard(ctx, sdk)
		return nil, errors.Wrap(err, "init embedded sdk")
	}
	if err := sdk.Login(ctx, c.opts.LoginOptions); err != nil {
		c.discard(ctx, sdk)
		return nil, errors.Wrap(err, "login embedded sdk")
	}
	provider := sdk.Provider()

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		log.Debugf("%v - deactivated during initialization, discarding sdk", c.name)
		c.discard(ctx, sdk)
		return nil, nil
	}
	previous := c.sdk
	c.sdk = sdk
	c.provider = provider
	c.mu.Unlock()

	if previous != nil && previous != sdk {
		c.discard(ctx, previous)
	}

	if provider == nil {
		log.Debugf("%v - sdk returned no provider", c.name)
		return nil, nil
	}
	bridgeEvents(c.name, provider, c.actions, c.opts.OnError)
	return provider, nil
}

// discard releases an SDK the connector does not hold.
func (c *EmbeddedConnector) discard(ctx context.Context, sdk SDK) {
	if err := sdk.CleanUp(ctx); err != nil {
		log.Warnf("%v - clean up discarded sdk:%v", c.name, err)
	}
}

// ConnectEagerly silently restores the session. It always returns nil.
func (c *EmbeddedConnector) ConnectEagerly(ctx context.Context) error {
	connectEagerly(ctx, c.name, c.actions, c.ensureProvider)
	return nil
}

// Activate connects and, when desired names another chain than the wallet's, negotiates the
// switch. On failure the activation is cancelled and the error returned.
func (c *EmbeddedConnector) Activate(ctx context.Context, desired *web3.ChainSelection) (err error) {
	var cancelActivation web3.CancelActivation
	if !isConnected(c.Provider()) {
		cancelActivation = c.actions.StartActivation()
	}
	defer func() {
		if err != nil && cancelActivation != nil {
			cancelActivation()
		}
	}()

	provider, err := c.ensureProvider(ctx)
	if err != nil {
		return err
	}
	if provider == nil {
		c.mu.Lock()
		generation := c.generation
		c.mu.Unlock()
		if provider, err = c.construct(ctx, generation); err != nil {
			return err
		}
		if provider == nil {
			return ErrNoProvider
		}
	}

	chainID, accounts, err := probe(ctx, provider, web3.MethodRequestAccounts)
	if err != nil {
		return err
	}
	desiredID := desired.Desired()
	if desiredID == 0 || desiredID == chainID {
		return c.actions.Update(web3.FullUpdate(chainID, accounts))
	}
	return negotiateChain(ctx, c.name, provider, desired, c.Activate)
}

// Deactivate logs out, cleans up the SDK and forgets the provider so the next activation
// starts from scratch.
func (c *EmbeddedConnector) Deactivate(ctx context.Context, cause error) error {
	c.mu.Lock()
	sdk := c.sdk
	c.sdk = nil
	c.provider = nil
	c.generation++
	c.acquisition.Reset()
	c.mu.Unlock()

	if cause != nil {
		log.Debugf("%v - deactivating:%v", c.name, cause)
	}
	if sdk == nil {
		return nil
	}
	var errs []error
	if err := sdk.Logout(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "logout embedded sdk"))
	}
	if err := sdk.CleanUp(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "clean up embedded sdk"))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
