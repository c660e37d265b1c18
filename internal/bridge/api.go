// Package bridge is an embedded wallet SDK pairing with a mobile wallet through a wallet
// connect v1 bridge server. The session is end-to-end encrypted with a key shared through the
// pairing QR code.
package bridge

import (
	"context"
	"time"
)

const defaultLoginTimeout = 5 * time.Minute

// ClientMeta describes the dapp to the wallet.
type ClientMeta struct {
	Description string   `json:"description" yaml:"description"`
	URL         string   `json:"url" yaml:"url"`
	Icons       []string `json:"icons" yaml:"icons"`
	Name        string   `json:"name" yaml:"name"`
}

// Options are the constructor options of a Client.
type Options struct {
	// BridgeURL is the bridge server, a random public bridge when empty.
	BridgeURL string
	Meta      ClientMeta
}

// InitOptions select the chain proposed when the session is requested.
type InitOptions struct {
	ChainID uint64
}

// DisplayQRCodeFn shows the pairing uri to the user, png is its QR code.
type DisplayQRCodeFn func(ctx context.Context, uri string, png []byte) error

type LoginOptions struct {
	DisplayQRCode DisplayQRCodeFn
	// Timeout bounds the wait for the wallet to answer the session request.
	Timeout time.Duration
}

// Session is the pairing approved by the wallet.
type Session struct {
	PeerID   string
	PeerMeta ClientMeta
	ChainID  uint64
	Accounts []string
}
