package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connector/internal/config"
)

type fakeHost struct {
	keys []string
}

func (h *fakeHost) HostQRCode(_ context.Context, key string, _ []byte) (string, error) {
	h.keys = append(h.keys, key)
	return "https://example.com/" + key, nil
}

func TestFileQRCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairing.png")
	display := qrDisplay(config.EmbeddedLogin{QRDisplay: config.QRDisplayFile, QRFile: path}, nil)

	require.NoError(t, display(context.Background(), "wc:abc@1", []byte("png")))
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestHostedQRCode(t *testing.T) {
	host := &fakeHost{}
	display := qrDisplay(config.EmbeddedLogin{QRDisplay: config.QRDisplayS3}, host)

	require.NoError(t, display(context.Background(), "wc:abc@1", []byte("png")))
	require.Len(t, host.keys, 1)
	assert.True(t, strings.HasPrefix(host.keys[0], qrKeyPrefix))
	assert.True(t, strings.HasSuffix(host.keys[0], ".png"))

	assert.Error(t, hostedQRCode(nil)(context.Background(), "wc:abc@1", nil))
}

func TestLogQRCode(t *testing.T) {
	display := qrDisplay(config.EmbeddedLogin{}, nil)
	assert.NoError(t, display(context.Background(), "wc:abc@1", nil))
}
