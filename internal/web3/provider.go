// Package web3 holds the contracts shared by every connector: the EIP-1193 style provider,
// the shared state sink and the chain selection passed to Activate.
package web3

import (
	"context"
	"encoding/json"
	"fmt"
)

// RequestArguments is one EIP-1193 request.
type RequestArguments struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

// Provider is the request/response handle through which a connector talks to an agent.
type Provider interface {
	Request(ctx context.Context, args RequestArguments) (json.RawMessage, error)
}

// Provider events.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventChainChanged    = "chainChanged"
	EventAccountsChanged = "accountsChanged"
)

// ProviderConnectInfo is the payload of the connect event.
type ProviderConnectInfo struct {
	ChainID string `json:"chainId"`
}

// Listener receives an event payload. Payload types per event:
// connect ProviderConnectInfo, disconnect error, chainChanged string, accountsChanged []string.
type Listener func(payload interface{})

// EventEmitter is implemented by providers that push notifications.
type EventEmitter interface {
	On(event string, listener Listener)
}

// ConnectionChecker is implemented by providers able to tell whether the agent is already connected.
type ConnectionChecker interface {
	IsConnected() bool
}

// Methods issued by the activation lifecycle.
const (
	MethodChainID         = "eth_chainId"
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
)

// EIP-1193 and EIP-3085 error codes.
const (
	ErrCodeUserRejected      = 4001
	ErrCodeUnauthorized      = 4100
	ErrCodeUnsupportedMethod = 4200
	ErrCodeDisconnected      = 4900
	ErrCodeChainDisconnected = 4901
	ErrCodeUnrecognizedChain = 4902
	ErrCodeInternal          = -32603
)

// ProviderRpcError is an error returned by a provider, carrying the EIP-1193 code.
type ProviderRpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProviderRpcError) Error() string {
	return fmt.Sprintf("provider rpc error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the EIP-1193 code.
func (e *ProviderRpcError) ErrorCode() int {
	return e.Code
}

func NewProviderRpcError(code int, format string, args ...interface{}) *ProviderRpcError {
	return &ProviderRpcError{Code: code, Message: fmt.Sprintf(format, args...)}
}
