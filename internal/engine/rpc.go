package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/ratelimit"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// RPCSubprovider forwards every request it receives to a JSON-RPC node over HTTP. It is meant
// to be the last stage.
type RPCSubprovider struct {
	url     string
	timeout time.Duration
	limiter ratelimit.Limiter

	mu     sync.RWMutex
	client *rpc.Client
}

// NewRPCSubprovider forwards to url. A positive timeout bounds every request, a positive
// maxRequestsPerSecond throttles outgoing requests.
func NewRPCSubprovider(url string, timeout time.Duration, maxRequestsPerSecond int) *RPCSubprovider {
	limiter := ratelimit.NewUnlimited()
	if maxRequestsPerSecond > 0 {
		limiter = ratelimit.New(maxRequestsPerSecond)
	}
	return &RPCSubprovider{url: url, timeout: timeout, limiter: limiter}
}

func (r *RPCSubprovider) Start(ctx context.Context) error {
	client, err := rpc.DialHTTPWithClient(r.url, &http.Client{Timeout: r.timeout})
	if err != nil {
		return errors.Wrapf(err, "dial rpc %s", r.url)
	}
	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
	log.Infof("rpc stage - forwarding to %s", r.url)
	return nil
}

func (r *RPCSubprovider) Stop() {
	r.mu.Lock()
	client := r.client
	r.client = nil
	r.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

func (r *RPCSubprovider) HandleRequest(ctx context.Context, req web3.RequestArguments, _ Next) (json.RawMessage, error) {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client == nil {
		return nil, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "rpc stage not started")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	r.limiter.Take()

	params := req.Params
	if params == nil {
		params = []interface{}{}
	}
	var result json.RawMessage
	if err := client.CallContext(ctx, &result, req.Method, params...); err != nil {
		return nil, toProviderError(err)
	}
	return result, nil
}

// toProviderError keeps the JSON-RPC error code of node errors so callers can branch on it.
func toProviderError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return errors.Wrap(err, "rpc request")
	}
	out := &web3.ProviderRpcError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		if data, marshalErr := json.Marshal(dataErr.ErrorData()); marshalErr == nil {
			out.Data = data
		}
	}
	return out
}
