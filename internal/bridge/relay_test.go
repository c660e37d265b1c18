package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/wallectconnect"
)

const (
	accountA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	accountB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

type relayConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (rc *relayConn) write(data []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	_ = rc.conn.WriteMessage(websocket.TextMessage, data)
}

// relay is an in-memory bridge server: pub messages go to the subscribers of their topic and are
// queued until one subscribes.
type relay struct {
	upgrader websocket.Upgrader
	server   *httptest.Server

	mu     sync.Mutex
	subs   map[string][]*relayConn
	queued map[string][][]byte
	conns  []*relayConn
}

func newRelay(t *testing.T) *relay {
	r := &relay{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subs:     make(map[string][]*relayConn),
		queued:   make(map[string][][]byte),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *relay) serve(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	rc := &relayConn{conn: conn}
	r.mu.Lock()
	r.conns = append(r.conns, rc)
	r.mu.Unlock()
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wallectconnect.ParseMessage(data)
		if err != nil {
			continue
		}
		switch msg.Type {
		case wallectconnect.MessageSub:
			r.mu.Lock()
			r.subs[msg.Topic] = append(r.subs[msg.Topic], rc)
			queued := r.queued[msg.Topic]
			delete(r.queued, msg.Topic)
			r.mu.Unlock()
			for _, q := range queued {
				rc.write(q)
			}
		case wallectconnect.MessagePub:
			r.mu.Lock()
			targets := append([]*relayConn(nil), r.subs[msg.Topic]...)
			if len(targets) == 0 {
				r.queued[msg.Topic] = append(r.queued[msg.Topic], data)
			}
			r.mu.Unlock()
			for _, target := range targets {
				target.write(data)
			}
		}
	}
}

// dropAll closes every connection, as a restarting bridge would.
func (r *relay) dropAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.conns {
		_ = rc.conn.Close()
	}
}

// mobileWallet scans the pairing uri and answers requests like a wallet app.
type mobileWallet struct {
	t        *testing.T
	reject   bool
	peerID   string
	key      []byte
	conn     *websocket.Conn
	writeMu  sync.Mutex
	ended    chan struct{}
	endOnce  sync.Once
	mu       sync.Mutex
	chainID  uint64
	accounts []string
	clientID string
	methods  []string
}

func newMobileWallet(t *testing.T, chainID uint64, accounts ...string) *mobileWallet {
	return &mobileWallet{
		t:        t,
		peerID:   "wallet-peer",
		chainID:  chainID,
		accounts: accounts,
		ended:    make(chan struct{}),
	}
}

func (w *mobileWallet) pair(ctx context.Context, uri string) error {
	parsed, err := wallectconnect.ParseURI(uri)
	if err != nil {
		return err
	}
	w.key = parsed.Key
	wsURL := wallectconnect.GetWebSocketUrl(parsed.BridgeURL, wallectconnect.Protocol, parsed.Version)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	w.conn = conn
	w.t.Cleanup(func() { _ = conn.Close() })
	for _, topic := range []string{w.peerID, parsed.HandshakeTopic} {
		w.write(&wallectconnect.Message{Topic: topic, Type: wallectconnect.MessageSub, Silent: true})
	}
	go w.readLoop()
	return nil
}

func (w *mobileWallet) display(ctx context.Context, uri string, png []byte) error {
	assert.NotEmpty(w.t, png)
	return w.pair(ctx, uri)
}

func (w *mobileWallet) write(msg *wallectconnect.Message) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.WriteMessage(websocket.TextMessage, msg.Marshal())
}

func (w *mobileWallet) publish(payload interface{}) {
	data, err := json.Marshal(payload)
	require.NoError(w.t, err)
	w.mu.Lock()
	clientID := w.clientID
	w.mu.Unlock()
	msg, err := wallectconnect.Seal(clientID, data, w.key, false)
	require.NoError(w.t, err)
	w.write(msg)
}

func (w *mobileWallet) respond(id int64, result interface{}) {
	w.publish(map[string]interface{}{"id": id, "jsonrpc": "2.0", "result": result})
}

func (w *mobileWallet) fail(id int64, code int, message string) {
	w.publish(map[string]interface{}{"id": id, "jsonrpc": "2.0", "error": map[string]interface{}{"code": code, "message": message}})
}

// pushUpdate sends a wc_sessionUpdate as the wallet app does when the user changes chain or account.
func (w *mobileWallet) pushUpdate(approved bool, chainID uint64, accounts []string) {
	w.mu.Lock()
	if approved {
		w.chainID = chainID
		w.accounts = accounts
	}
	w.mu.Unlock()
	w.publish(map[string]interface{}{
		"id":      1,
		"jsonrpc": "2.0",
		"method":  methodSessionUpdate,
		"params":  []interface{}{map[string]interface{}{"approved": approved, "chainId": chainID, "accounts": accounts}},
	})
}

func (w *mobileWallet) readLoop() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wallectconnect.ParseMessage(data)
		if err != nil || msg.Type != wallectconnect.MessagePub {
			continue
		}
		payload, err := msg.Open(w.key)
		if err != nil {
			continue
		}
		w.handle(gjson.ParseBytes(payload))
	}
}

func (w *mobileWallet) handle(request gjson.Result) {
	id := request.Get("id").Int()
	method := request.Get("method").String()
	params := request.Get("params").Array()
	w.mu.Lock()
	w.methods = append(w.methods, method)
	w.mu.Unlock()

	switch method {
	case methodSessionRequest:
		w.mu.Lock()
		w.clientID = params[0].Get("peerId").String()
		chainID, accounts := w.chainID, w.accounts
		w.mu.Unlock()
		if w.reject {
			w.fail(id, -32000, "Session Rejected")
			return
		}
		w.respond(id, map[string]interface{}{
			"approved":  true,
			"chainId":   chainID,
			"networkId": 0,
			"accounts":  accounts,
			"peerId":    w.peerID,
			"peerMeta":  map[string]interface{}{"name": "Fake Wallet", "url": "https://wallet.example"},
		})
	case methodSessionUpdate:
		if !params[0].Get("approved").Bool() {
			w.endOnce.Do(func() { close(w.ended) })
		}
	case web3.MethodSwitchChain:
		chainID, err := web3.ParseChainID(params[0].Get("chainId").String())
		if err != nil || chainID == 404 {
			w.fail(id, web3.ErrCodeUnrecognizedChain, "Unrecognized chain ID")
			return
		}
		w.respond(id, nil)
		w.mu.Lock()
		accounts := w.accounts
		w.mu.Unlock()
		w.pushUpdate(true, chainID, accounts)
	case "personal_sign":
		w.respond(id, "0xsigned")
	default:
		w.fail(id, -32601, "Method not found")
	}
}

func (w *mobileWallet) received(method string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.methods {
		if m == method {
			return true
		}
	}
	return false
}
