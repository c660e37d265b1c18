package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connector/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load("config.yml")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, 4*time.Second, c.Ledger.PollingInterval.Duration())
	assert.Equal(t, 5*time.Minute, c.Embedded.Login.Timeout.Duration())
	assert.Equal(t, 1000, c.Ledger.AccountFetching.AddressSearchLimit)
	assert.Equal(t, "Moff", c.Embedded.Constructor.Name)
	assert.Equal(t, "127.0.0.1:6379", c.RedisCredential.GetRedisAddress())
	assert.True(t, c.Secrets())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ledger:\n  polling_interval: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		content string
		valid   bool
	}{
		{"nothing enabled", "log_level: debug\n", false},
		{"ledger without url", "ledger:\n  enabled: true\n  chain_id: 1\n", false},
		{"ledger without chain", "ledger:\n  enabled: true\n  url: http://localhost:8545\n", false},
		{"ledger bad path", "ledger:\n  enabled: true\n  chain_id: 1\n  url: http://localhost:8545\n  base_derivation_path: \"44'/x\"\n", false},
		{"ledger", "ledger:\n  enabled: true\n  chain_id: 1\n  url: http://localhost:8545\n", true},
		{"embedded default display", "embedded:\n  enabled: true\n", true},
		{"embedded file without path", "embedded:\n  enabled: true\n  login:\n    qr_display: file\n", false},
		{"embedded s3 without bucket", "embedded:\n  enabled: true\n  login:\n    qr_display: s3\n", false},
		{"embedded unknown display", "embedded:\n  enabled: true\n  login:\n    qr_display: tv\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Load(writeConfig(t, tc.content))
			require.NoError(t, err)
			if tc.valid {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

type fakeSource map[string]string

func (f fakeSource) GetParameterValue(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.Errorf("parameter %s not found", name)
	}
	return v, nil
}

func TestResolve(t *testing.T) {
	c := &Configuration{
		SentryDSN: "ssm:/app/sentry",
		Postgres:  DBCredential{Password: "ssm:/app/pg"},
		Ledger:    Ledger{URL: "http://localhost:8545"},
	}
	require.NoError(t, c.Resolve(context.Background(), fakeSource{
		"/app/sentry": "https://key@sentry.io/1",
		"/app/pg":     "secret",
	}))
	assert.Equal(t, "https://key@sentry.io/1", c.SentryDSN)
	assert.Equal(t, "secret", c.Postgres.Password)
	assert.Equal(t, "http://localhost:8545", c.Ledger.URL)
	assert.False(t, c.Secrets())

	c.LarkWebhook = "ssm:/app/missing"
	assert.Error(t, c.Resolve(context.Background(), fakeSource{}))
}
