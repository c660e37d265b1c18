// Package ledger talks to a Ledger hardware wallet and exposes it as an engine stage answering
// account requests.
package ledger

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// DefaultBaseDerivationPath is the Ledger Live account root.
const DefaultBaseDerivationPath = "44'/60'/0'"

// DeviceClient is an open session with a hardware device.
type DeviceClient interface {
	// Derive returns the address at path. confirm asks the device to display the address
	// when the transport supports it.
	Derive(ctx context.Context, path accounts.DerivationPath, confirm bool) (common.Address, error)
	Close() error
}

// ClientFactory opens a device session. Opening may prompt the user on the device.
type ClientFactory func(ctx context.Context) (DeviceClient, error)

var ErrNoDevice = errors.New("no ledger device found")

type usbClient struct {
	wallet accounts.Wallet
}

// USBClientFactory opens the first Ledger plugged in over USB.
func USBClientFactory(ctx context.Context) (DeviceClient, error) {
	hub, err := usbwallet.NewLedgerHub()
	if err != nil {
		return nil, errors.Wrap(err, "open ledger hub")
	}
	wallets := hub.Wallets()
	if len(wallets) == 0 {
		return nil, ErrNoDevice
	}
	wallet := wallets[0]
	if err := wallet.Open(""); err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", wallet.URL())
	}
	log.Infof("ledger device - opened %s", wallet.URL())
	return &usbClient{wallet: wallet}, nil
}

func (c *usbClient) Derive(ctx context.Context, path accounts.DerivationPath, confirm bool) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	if confirm {
		log.Debugf("ledger device - on-device confirmation not supported over usb hid, deriving %s silently", path)
	}
	account, err := c.wallet.Derive(path, false)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "derive %s", path)
	}
	return account.Address, nil
}

func (c *usbClient) Close() error {
	return c.wallet.Close()
}

// ParseBaseDerivationPath parses an account root such as "44'/60'/0'", with or without the
// leading "m/". Empty means DefaultBaseDerivationPath.
func ParseBaseDerivationPath(path string) (accounts.DerivationPath, error) {
	if path == "" {
		path = DefaultBaseDerivationPath
	}
	if !strings.HasPrefix(path, "m/") {
		path = "m/" + path
	}
	parsed, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parse derivation path %q", path)
	}
	return parsed, nil
}

// childPath returns base/index.
func childPath(base accounts.DerivationPath, index uint32) accounts.DerivationPath {
	path := make(accounts.DerivationPath, len(base), len(base)+1)
	copy(path, base)
	return append(path, index)
}
