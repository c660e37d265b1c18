package wallectconnect

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"moff.io/moff-connector/pkg/errors"
)

// Session establishment:
//
//	the dapp subscribes to its client id topic and publishes an encrypted wc_sessionRequest to the
//	handshake topic, then shows the pairing uri as a QR code;
//	the wallet scans it, subscribes to the handshake topic, and answers on the client id topic;
//	afterwards both sides publish to each other's peer id and wc_sessionUpdate carries chain and
//	account changes, approved=false ends the session.

const (
	alphanumerical  = "abcdefghijklmnopqrstuvwxyz0123456789"
	bridgeURLFormat = "https://%v.bridge.walletconnect.org"

	Protocol = "wc"
	Version  = "1"
)

// Relay message types.
const (
	MessagePub = "pub"
	MessageSub = "sub"
	MessageAck = "ack"
)

// Message is the envelope exchanged with the bridge server. Payload is the JSON of an
// EncryptionPayload, empty for sub and ack.
type Message struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message")
	}
	return &msg, nil
}

func (msg *Message) Marshal() []byte {
	bytes, _ := json.Marshal(msg)
	return bytes
}

// Seal encrypts payload with key into a pub message for topic.
func Seal(topic string, payload, key []byte, silent bool) (*Message, error) {
	encrypted, err := Encrypt(payload, key)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(encrypted)
	if err != nil {
		return nil, errors.Wrap(err, "marshal encryption payload")
	}
	return &Message{Topic: topic, Type: MessagePub, Payload: string(data), Silent: silent}, nil
}

// Open decrypts the payload of a pub message.
func (msg *Message) Open(key []byte) ([]byte, error) {
	var encrypted EncryptionPayload
	if err := json.Unmarshal([]byte(msg.Payload), &encrypted); err != nil {
		return nil, errors.Wrap(err, "unmarshal encryption payload")
	}
	return Decrypt(&encrypted, key)
}

func RandomBridgeURL() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf(bridgeURLFormat, string(alphanumerical[r.Intn(len(alphanumerical))]))
}

// GetWebSocketUrl turns a bridge url into the websocket endpoint of protocol/version.
func GetWebSocketUrl(bridgeURL, protocol, version string) string {
	switch {
	case strings.HasPrefix(bridgeURL, "https"):
		bridgeURL = strings.Replace(bridgeURL, "https", "wss", 1)
	case strings.HasPrefix(bridgeURL, "http"):
		bridgeURL = strings.Replace(bridgeURL, "http", "ws", 1)
	}
	return bridgeURL + "?protocol=" + protocol + "&version=" + version + "&env=go"
}

// URI is the pairing uri shown to the wallet, wc:<topic>@1?bridge=<url>&key=<hex>.
type URI struct {
	HandshakeTopic string
	Version        string
	BridgeURL      string
	Key            []byte
}

func (u URI) String() string {
	return fmt.Sprintf("%s:%s@%s?bridge=%s&key=%s",
		Protocol, u.HandshakeTopic, u.Version, url.QueryEscape(u.BridgeURL), hex.EncodeToString(u.Key))
}

func ParseURI(s string) (*URI, error) {
	if !strings.HasPrefix(s, Protocol+":") {
		return nil, errors.Errorf("not a %s uri: %s", Protocol, s)
	}
	rest := strings.TrimPrefix(s, Protocol+":")
	at := strings.Index(rest, "@")
	q := strings.Index(rest, "?")
	if at <= 0 || q < at {
		return nil, errors.Errorf("malformed %s uri: %s", Protocol, s)
	}
	values, err := url.ParseQuery(rest[q+1:])
	if err != nil {
		return nil, errors.Wrap(err, "parse uri query")
	}
	key, err := hex.DecodeString(values.Get("key"))
	if err != nil {
		return nil, errors.Wrap(err, "decode uri key")
	}
	if len(key) != KeySize {
		return nil, errors.Errorf("uri key has %d bytes", len(key))
	}
	return &URI{
		HandshakeTopic: rest[:at],
		Version:        rest[at+1 : q],
		BridgeURL:      values.Get("bridge"),
		Key:            key,
	}, nil
}

func extractHostname(url string) string {
	var hostname string
	idx := strings.Index(url, "//")
	if idx > -1 {
		hostname = strings.Split(url, "/")[2]
	} else {
		hostname = strings.Split(url, "/")[0]
	}
	hostname = strings.Split(hostname, ":")[0]
	return strings.Split(hostname, "?")[0]
}

// ExtractRootDomain returns the last two labels of the host of url.
func ExtractRootDomain(url string) string {
	arr := strings.Split(extractHostname(url), ".")
	if len(arr) > 2 {
		arr = arr[len(arr)-2:]
	}
	return strings.Join(arr, ".")
}
