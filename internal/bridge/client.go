package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/moff-connector/internal/connector"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
	"moff.io/moff-connector/pkg/wallectconnect"
)

var (
	ErrNotInitialized = errors.New("bridge client not initialized")
	errClientClosed   = errors.New("bridge client closed")
)

// Client is the embedded wallet SDK. Init opens the bridge connection, Login pairs with a
// wallet and Provider exposes the approved session.
type Client struct {
	opts   Options
	dialer *websocket.Dialer

	initialized atomic.Bool
	closed      atomic.Bool

	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	handshakeTopic string
	clientID       string
	encryptionKey  []byte
	chainID        uint64

	mu       sync.Mutex
	pending  map[int64]chan rpcResponse
	provider *Provider
}

var _ connector.SDK = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.BridgeURL == "" {
		opts.BridgeURL = wallectconnect.RandomBridgeURL()
	}
	return &Client{
		opts:    opts,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pending: make(map[int64]chan rpcResponse),
	}
}

// New is the connector.SDKConstructor of Client, options must be an Options.
func New(options interface{}) (connector.SDK, error) {
	switch opts := options.(type) {
	case Options:
		return NewClient(opts), nil
	case *Options:
		if opts != nil {
			return NewClient(*opts), nil
		}
	case nil:
		return NewClient(Options{}), nil
	}
	return nil, errors.Errorf("unexpected bridge options %T", options)
}

// Loader hands out New. The bridge ships with the binary, so loading never fails.
func Loader() connector.SDKLoader {
	return func(ctx context.Context) (connector.SDKConstructor, error) {
		return New, nil
	}
}

// Init generates the session key and topics, dials the bridge and subscribes to the client topic.
func (c *Client) Init(ctx context.Context, options interface{}) error {
	var opts InitOptions
	switch o := options.(type) {
	case InitOptions:
		opts = o
	case *InitOptions:
		if o != nil {
			opts = *o
		}
	case nil:
	default:
		return errors.Errorf("unexpected bridge init options %T", options)
	}
	if !c.initialized.CAS(false, true) {
		return errors.New("bridge client initialized twice")
	}
	key, err := wallectconnect.GenerateRandomBytes(wallectconnect.KeySize)
	if err != nil {
		return errors.Wrap(err, "generate session key")
	}
	c.encryptionKey = key
	c.handshakeTopic = uuid.NewString()
	c.clientID = uuid.NewString()
	c.chainID = opts.ChainID

	wsURL := wallectconnect.GetWebSocketUrl(c.opts.BridgeURL, wallectconnect.Protocol, wallectconnect.Version)
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return errors.Wrap(err, "dial to wallet connect bridge url")
	}
	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop()

	return c.send(&wallectconnect.Message{Topic: c.clientID, Type: wallectconnect.MessageSub, Silent: true})
}

// URI returns the pairing uri. Valid after Init.
func (c *Client) URI() string {
	return wallectconnect.URI{
		HandshakeTopic: c.handshakeTopic,
		Version:        wallectconnect.Version,
		BridgeURL:      c.opts.BridgeURL,
		Key:            c.encryptionKey,
	}.String()
}

// Login requests a session, displays the pairing QR code and waits for the wallet. A rejected
// session is not an error: Provider stays nil.
func (c *Client) Login(ctx context.Context, options interface{}) error {
	var opts LoginOptions
	switch o := options.(type) {
	case LoginOptions:
		opts = o
	case *LoginOptions:
		if o != nil {
			opts = *o
		}
	case nil:
	default:
		return errors.Errorf("unexpected bridge login options %T", options)
	}
	if !c.initialized.Load() || c.closed.Load() {
		return ErrNotInitialized
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var chainID *uint64
	if c.chainID != 0 {
		chainID = &c.chainID
	}
	request := newJSONRpcRequest(methodSessionRequest, peer{PeerID: c.clientID, PeerMeta: c.opts.Meta, ChainID: chainID})
	responses := c.register(request.Id)
	defer c.unregister(request.Id)
	if err := c.publish(c.handshakeTopic, request); err != nil {
		return err
	}

	uri := c.URI()
	log.Debugf("bridge - pairing uri:%v", uri)
	if opts.DisplayQRCode != nil {
		png, err := qrcode.Encode(uri, qrcode.Medium, 256)
		if err != nil {
			return errors.Wrap(err, "encode wallet connect qr code")
		}
		if err := opts.DisplayQRCode(ctx, uri, png); err != nil {
			return errors.Wrap(err, "display qr code")
		}
	}

	result, err := c.await(ctx, responses)
	if err != nil {
		var rpcErr *web3.ProviderRpcError
		if errors.As(err, &rpcErr) {
			log.Debugf("bridge - session rejected:%v", rpcErr.Message)
			return nil
		}
		return err
	}
	var session sessionResult
	if err := json.Unmarshal(result, &session); err != nil {
		return errors.Wrap(err, "unmarshal session result")
	}
	if !session.Approved {
		log.Debugf("bridge - session not approved")
		return nil
	}
	if len(session.Accounts) == 0 {
		return errors.New("no wallet accounts acquired")
	}
	s := Session{PeerID: session.PeerID, PeerMeta: session.PeerMeta, Accounts: session.Accounts}
	if session.ChainID != nil {
		s.ChainID = *session.ChainID
	}
	log.Infof("bridge - session approved by %v on chain %d", s.PeerMeta.Name, s.ChainID)

	c.mu.Lock()
	c.provider = newProvider(c, s)
	c.mu.Unlock()
	return nil
}

// Provider returns the session provider, nil before an approved Login.
func (c *Client) Provider() web3.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil {
		return nil
	}
	return c.provider
}

// Logout tells the wallet the session is over.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	p := c.provider
	c.provider = nil
	c.mu.Unlock()
	if p == nil || c.closed.Load() {
		return nil
	}
	peerID := p.end()
	request := newJSONRpcRequest(methodSessionUpdate, sessionStatus{Approved: false})
	return c.publish(peerID, request)
}

// CleanUp closes the bridge connection and fails pending requests.
func (c *Client) CleanUp(ctx context.Context) error {
	if !c.closed.CAS(false, true) {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	if err != nil {
		return errors.Wrap(err, "close bridge connection")
	}
	return nil
}

// call sends a JSON-RPC request to topic and waits for its response.
func (c *Client) call(ctx context.Context, topic, method string, params []interface{}) (json.RawMessage, error) {
	request := newJSONRpcRequest(method, params...)
	responses := c.register(request.Id)
	defer c.unregister(request.Id)
	if err := c.publish(topic, request); err != nil {
		return nil, err
	}
	return c.await(ctx, responses)
}

func (c *Client) await(ctx context.Context, responses chan rpcResponse) (json.RawMessage, error) {
	select {
	case resp := <-responses:
		return resp.result, resp.err
	case <-c.done:
		return nil, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "bridge connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) register(id int64) chan rpcResponse {
	ch := make(chan rpcResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) unregister(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) publish(topic string, request *jsonRpcRequest) error {
	msg, err := wallectconnect.Seal(topic, request.Marshal(), c.encryptionKey, request.IsSilentPayload())
	if err != nil {
		return err
	}
	log.Debugf("bridge - publish %v #%d to %v", request.Method, request.Id, topic)
	return c.send(msg)
}

func (c *Client) send(msg *wallectconnect.Message) error {
	if c.closed.Load() {
		return errClientClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, msg.Marshal()); err != nil {
		return errors.Wrap(err, "write wallet connect message to server")
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Warnf("bridge - read:%v", err)
				c.connectionLost(err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg, err := wallectconnect.ParseMessage(data)
		if err != nil {
			log.Warnf("bridge - %v", err)
			continue
		}
		if msg.Type != wallectconnect.MessagePub {
			continue
		}
		if err := c.send(&wallectconnect.Message{Topic: c.clientID, Type: wallectconnect.MessageAck, Silent: true}); err != nil {
			log.Warnf("bridge - ack:%v", err)
		}
		payload, err := msg.Open(c.encryptionKey)
		if err != nil {
			log.Warnf("bridge - open message:%v", err)
			continue
		}
		c.dispatch(payload)
	}
}

// dispatch routes a decrypted payload: requests from the wallet carry a method, everything
// else answers a pending request.
func (c *Client) dispatch(payload []byte) {
	parsed := gjson.ParseBytes(payload)
	if method := parsed.Get("method"); method.Exists() {
		c.handleRequest(method.String(), parsed)
		return
	}
	id := parsed.Get("id").Int()
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		log.Debugf("bridge - response #%d without pending request", id)
		return
	}
	var resp rpcResponse
	if rpcErr := parsed.Get("error"); rpcErr.Exists() {
		resp.err = web3.NewProviderRpcError(int(rpcErr.Get("code").Int()), "%s", rpcErr.Get("message").String())
	} else {
		resp.result = json.RawMessage(parsed.Get("result").Raw)
		if len(resp.result) == 0 {
			resp.result = json.RawMessage("null")
		}
	}
	select {
	case ch <- resp:
	default:
		log.Debugf("bridge - duplicate response #%d", id)
	}
}

func (c *Client) handleRequest(method string, request gjson.Result) {
	if method != methodSessionUpdate {
		log.Debugf("bridge - ignoring wallet request %v", method)
		return
	}
	params := request.Get("params").Array()
	if len(params) == 0 {
		return
	}
	var status sessionStatus
	if err := json.Unmarshal([]byte(params[0].Raw), &status); err != nil {
		log.Warnf("bridge - session update %v:%v", params[0].Raw, err)
		return
	}
	c.mu.Lock()
	p := c.provider
	if !status.Approved {
		c.provider = nil
	}
	c.mu.Unlock()
	if p == nil {
		return
	}
	if !status.Approved {
		log.Warnf("bridge - session closed by wallet")
		p.end()
		p.emit(web3.EventDisconnect, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "session closed by wallet"))
		return
	}
	p.update(status.ChainID, status.Accounts)
}

func (c *Client) connectionLost(err error) {
	c.mu.Lock()
	p := c.provider
	c.provider = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	p.end()
	p.emit(web3.EventDisconnect, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "bridge connection lost: %v", err))
}
