package bridge

import (
	"encoding/json"
	"strings"

	"moff.io/moff-connector/pkg/common"
)

const (
	methodSessionRequest = "wc_sessionRequest"
	methodSessionUpdate  = "wc_sessionUpdate"
)

type jsonRpcRequest struct {
	Id      int64         `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newJSONRpcRequest(method string, params ...interface{}) *jsonRpcRequest {
	r := &jsonRpcRequest{
		Id:      common.NewPayloadID(),
		JSONRpc: "2.0",
		Method:  method,
		Params:  []interface{}{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

func (e *jsonRpcRequest) Marshal() []byte {
	s, _ := json.Marshal(e)
	return s
}

// IsSilentPayload reports whether the bridge should skip push notifications for the request.
func (e *jsonRpcRequest) IsSilentPayload() bool {
	return strings.HasPrefix(e.Method, "wc_")
}

type peer struct {
	PeerID   string     `json:"peerId"`
	PeerMeta ClientMeta `json:"peerMeta"`
	ChainID  *uint64    `json:"chainId"`
}

type sessionStatus struct {
	Approved bool     `json:"approved"`
	ChainID  *uint64  `json:"chainId"`
	Accounts []string `json:"accounts"`
}

type sessionResult struct {
	sessionStatus
	PeerID   string     `json:"peerId"`
	PeerMeta ClientMeta `json:"peerMeta"`
}

type rpcResponse struct {
	result json.RawMessage
	err    error
}
