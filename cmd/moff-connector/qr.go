package main

import (
	"context"
	"io/ioutil"

	"moff.io/moff-connector/internal/bridge"
	"moff.io/moff-connector/internal/config"
	"moff.io/moff-connector/pkg/common"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

const qrKeyPrefix = "pairing/"

type qrHost interface {
	HostQRCode(ctx context.Context, key string, png []byte) (string, error)
}

// qrDisplay picks how pairing codes reach the user. host is only used for s3.
func qrDisplay(conf config.EmbeddedLogin, host qrHost) bridge.DisplayQRCodeFn {
	switch conf.QRDisplay {
	case config.QRDisplayFile:
		return fileQRCode(conf.QRFile)
	case config.QRDisplayS3:
		return hostedQRCode(host)
	default:
		return logQRCode
	}
}

func logQRCode(_ context.Context, uri string, _ []byte) error {
	log.Infof("Scan with a wallet connect wallet, or paste the uri: %v", uri)
	return nil
}

func fileQRCode(path string) bridge.DisplayQRCodeFn {
	return func(_ context.Context, uri string, png []byte) error {
		if err := ioutil.WriteFile(path, png, 0644); err != nil {
			return errors.Wrapf(err, "write qr code %s", path)
		}
		log.Infof("Pairing qr code written to %v, uri: %v", path, uri)
		return nil
	}
}

func hostedQRCode(host qrHost) bridge.DisplayQRCodeFn {
	return func(ctx context.Context, uri string, png []byte) error {
		if host == nil {
			return errors.New("aws not initialized")
		}
		url, err := host.HostQRCode(ctx, qrKeyPrefix+common.NewCutUUIDString()+".png", png)
		if err != nil {
			return err
		}
		log.Infof("Pairing qr code hosted at %v", url)
		return nil
	}
}
