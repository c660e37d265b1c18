package connector

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/atomic"
	"moff.io/moff-connector/internal/store"
	"moff.io/moff-connector/internal/web3"
)

const (
	accountA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	accountB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

// fakeWallet behaves like an injected wallet: it knows a set of chains, switches between them
// and learns new ones through wallet_addEthereumChain.
type fakeWallet struct {
	mu        sync.Mutex
	chainID   uint64
	accounts  []string
	known     map[uint64]bool
	switchErr error
	addErr    error
	connected bool
	calls     []string
	added     []map[string]interface{}
	listeners map[string][]web3.Listener
}

func newFakeWallet(chainID uint64, accounts ...string) *fakeWallet {
	return &fakeWallet{
		chainID:   chainID,
		accounts:  accounts,
		known:     map[uint64]bool{chainID: true},
		listeners: make(map[string][]web3.Listener),
	}
}

func (w *fakeWallet) Request(_ context.Context, args web3.RequestArguments) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, args.Method)
	switch args.Method {
	case web3.MethodChainID:
		return json.Marshal(web3.FormatChainID(w.chainID))
	case web3.MethodAccounts, web3.MethodRequestAccounts:
		if w.accounts == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(w.accounts)
	case web3.MethodSwitchChain:
		if w.switchErr != nil {
			return nil, w.switchErr
		}
		id, err := paramChainID(args)
		if err != nil {
			return nil, err
		}
		if !w.known[id] {
			return nil, web3.NewProviderRpcError(web3.ErrCodeUnrecognizedChain, "unrecognized chain %d", id)
		}
		w.chainID = id
		return json.Marshal(nil)
	case web3.MethodAddChain:
		if w.addErr != nil {
			return nil, w.addErr
		}
		id, err := paramChainID(args)
		if err != nil {
			return nil, err
		}
		w.added = append(w.added, args.Params[0].(map[string]interface{}))
		w.known[id] = true
		w.chainID = id
		return json.Marshal(nil)
	}
	return nil, web3.NewProviderRpcError(web3.ErrCodeUnsupportedMethod, "unsupported %s", args.Method)
}

func paramChainID(args web3.RequestArguments) (uint64, error) {
	m := args.Params[0].(map[string]interface{})
	return web3.ParseChainID(m["chainId"].(string))
}

func (w *fakeWallet) On(event string, l web3.Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners[event] = append(w.listeners[event], l)
}

func (w *fakeWallet) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *fakeWallet) emit(event string, payload interface{}) {
	w.mu.Lock()
	listeners := append([]web3.Listener(nil), w.listeners[event]...)
	w.mu.Unlock()
	for _, l := range listeners {
		l(payload)
	}
}

func (w *fakeWallet) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWallet) count(method string) int {
	n := 0
	for _, c := range w.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

type fakeSDK struct {
	wallet   *fakeWallet
	loginErr error
	logouts  atomic.Int32
	cleanUps atomic.Int32
}

func (s *fakeSDK) Init(context.Context, interface{}) error {
	return nil
}

func (s *fakeSDK) Login(context.Context, interface{}) error {
	return s.loginErr
}

func (s *fakeSDK) Provider() web3.Provider {
	if s.wallet == nil {
		return nil
	}
	return s.wallet
}

func (s *fakeSDK) Logout(context.Context) error {
	s.logouts.Inc()
	return nil
}

func (s *fakeSDK) CleanUp(context.Context) error {
	s.cleanUps.Inc()
	return nil
}

// loaderFor returns a loader handing out sdk and counting how often it ran.
func loaderFor(sdk *fakeSDK, loads *atomic.Int32) SDKLoader {
	return func(ctx context.Context) (SDKConstructor, error) {
		loads.Inc()
		return func(interface{}) (SDK, error) {
			return sdk, nil
		}, nil
	}
}

// countingActions is a store counting how often activation cancel handles run.
type countingActions struct {
	*store.Store
	starts  atomic.Int32
	cancels atomic.Int32
	resets  atomic.Int32
}

func newCountingActions() *countingActions {
	return &countingActions{Store: store.New("test")}
}

func (a *countingActions) StartActivation() web3.CancelActivation {
	a.starts.Inc()
	cancel := a.Store.StartActivation()
	return func() {
		a.cancels.Inc()
		cancel()
	}
}

func (a *countingActions) ResetState() {
	a.resets.Inc()
	a.Store.ResetState()
}
