package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/atomic"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/log"
)

// Provider is the web3.Provider of an approved session. Chain id and accounts are answered from
// the session, every other method is relayed to the wallet.
type Provider struct {
	client    *Client
	connected atomic.Bool

	mu        sync.Mutex
	session   Session
	listeners map[string][]web3.Listener
}

var (
	_ web3.Provider          = (*Provider)(nil)
	_ web3.EventEmitter      = (*Provider)(nil)
	_ web3.ConnectionChecker = (*Provider)(nil)
)

func newProvider(c *Client, s Session) *Provider {
	p := &Provider{client: c, session: s, listeners: make(map[string][]web3.Listener)}
	p.connected.Store(true)
	return p
}

func (p *Provider) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.session
	s.Accounts = append([]string(nil), p.session.Accounts...)
	return s
}

func (p *Provider) IsConnected() bool {
	return p.connected.Load()
}

func (p *Provider) On(event string, l web3.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[event] = append(p.listeners[event], l)
}

func (p *Provider) Request(ctx context.Context, args web3.RequestArguments) (json.RawMessage, error) {
	if !p.connected.Load() {
		return nil, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "session not connected")
	}
	switch args.Method {
	case web3.MethodChainID:
		return json.Marshal(web3.FormatChainID(p.Session().ChainID))
	case web3.MethodAccounts, web3.MethodRequestAccounts:
		return json.Marshal(p.Session().Accounts)
	}

	result, err := p.client.call(ctx, p.Session().PeerID, args.Method, args.Params)
	if err != nil {
		return nil, err
	}
	if args.Method == web3.MethodSwitchChain || args.Method == web3.MethodAddChain {
		// Wallets confirm the switch before their session update arrives.
		if chainID, ok := requestedChain(args.Params); ok {
			p.update(&chainID, nil)
		}
	}
	return result, nil
}

func requestedChain(params []interface{}) (uint64, bool) {
	if len(params) == 0 {
		return 0, false
	}
	var chainHex string
	switch param := params[0].(type) {
	case map[string]interface{}:
		chainHex, _ = param["chainId"].(string)
	case map[string]string:
		chainHex = param["chainId"]
	}
	if chainHex == "" {
		return 0, false
	}
	chainID, err := web3.ParseChainID(chainHex)
	return chainID, err == nil
}

// update applies a session change and emits the matching events.
func (p *Provider) update(chainID *uint64, accounts []string) {
	p.mu.Lock()
	chainChanged := chainID != nil && *chainID != p.session.ChainID
	if chainChanged {
		p.session.ChainID = *chainID
	}
	accountsChanged := accounts != nil && !equalAccounts(accounts, p.session.Accounts)
	if accountsChanged {
		p.session.Accounts = append([]string(nil), accounts...)
	}
	p.mu.Unlock()

	if chainChanged {
		log.Debugf("bridge - chain changed to %d", *chainID)
		p.emit(web3.EventChainChanged, web3.FormatChainID(*chainID))
	}
	if accountsChanged {
		log.Debugf("bridge - accounts changed to %v", accounts)
		p.emit(web3.EventAccountsChanged, append([]string(nil), accounts...))
	}
}

// end marks the session over and returns the peer id it was bound to.
func (p *Provider) end() string {
	p.connected.Store(false)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.PeerID
}

func (p *Provider) emit(event string, payload interface{}) {
	p.mu.Lock()
	listeners := append([]web3.Listener(nil), p.listeners[event]...)
	p.mu.Unlock()
	for _, l := range listeners {
		l(payload)
	}
}

func equalAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
