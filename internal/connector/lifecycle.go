// Package connector implements the activation lifecycle shared by every wallet connector:
// eager reconnection, explicit activation with chain negotiation, provider events and
// deactivation.
package connector

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

var (
	ErrNoAccounts = errors.New("no accounts returned")
	ErrNoProvider = errors.New("provider not available")
	ErrNilActions = errors.New("connector actions not present")
)

// ensureFunc acquires the provider of a connector. A nil provider with a nil error means the
// agent declined to hand one out.
type ensureFunc func(ctx context.Context) (web3.Provider, error)

// connectEagerly is the silent reconnection shared by every connector. It never returns an
// error: failures leave the shared state disconnected.
func connectEagerly(ctx context.Context, name string, actions web3.Actions, ensure ensureFunc) {
	cancelActivation := actions.StartActivation()

	provider, err := ensure(ctx)
	if err == nil && provider == nil {
		cancelActivation()
		return
	}
	if err == nil {
		err = commitEagerly(ctx, provider, actions)
	}
	if err != nil {
		log.Debugf("%v - could not connect eagerly:%v", name, err)
		// An out-of-band connect event may already have written a chain id, which the cancel
		// handle cannot roll back, so the state is reset instead.
		actions.ResetState()
	}
}

func commitEagerly(ctx context.Context, provider web3.Provider, actions web3.Actions) error {
	chainID, accounts, err := probe(ctx, provider, web3.MethodAccounts)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}
	return actions.Update(web3.FullUpdate(chainID, accounts))
}

// probe requests the chain id and the accounts concurrently and waits for both.
func probe(ctx context.Context, provider web3.Provider, accountsMethod string) (uint64, []string, error) {
	var (
		chainHex string
		accounts []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return requestInto(gctx, provider, web3.RequestArguments{Method: web3.MethodChainID}, &chainHex)
	})
	g.Go(func() error {
		return requestInto(gctx, provider, web3.RequestArguments{Method: accountsMethod}, &accounts)
	})
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	chainID, err := web3.ParseChainID(chainHex)
	if err != nil {
		return 0, nil, err
	}
	if accounts == nil {
		accounts = []string{}
	}
	return chainID, accounts, nil
}

func requestInto(ctx context.Context, provider web3.Provider, args web3.RequestArguments, out interface{}) error {
	raw, err := provider.Request(ctx, args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s result %s", args.Method, string(raw))
	}
	return nil
}

func isConnected(provider web3.Provider) bool {
	checker, ok := provider.(web3.ConnectionChecker)
	return ok && checker.IsConnected()
}
