package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connector/pkg/errors"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(`{"connector":"ledger","operation":"activate","chain":"polygon"}`)
	require.NoError(t, err)
	assert.Equal(t, &Command{Connector: "ledger", Operation: OperationActivate, Chain: "polygon"}, cmd)

	for _, body := range []string{
		`not json`,
		`{"operation":"activate"}`,
		`{"connector":"ledger","operation":"explode"}`,
	} {
		_, err := ParseCommand(body)
		assert.True(t, errors.Is(err, ErrInvalidCommand), body)
	}
}

func TestHandleCommand(t *testing.T) {
	m := NewManager()
	c, s := register(m, "ledger", 1)
	ctx := context.Background()

	require.NoError(t, m.HandleCommand(ctx, `{"connector":"ledger","operation":"activate","chain_id":137}`))
	assert.Equal(t, uint64(137), s.State().ChainID)

	require.NoError(t, m.HandleCommand(ctx, `{"connector":"ledger","operation":"deactivate","reason":"expired"}`))
	assert.Equal(t, 1, c.deactivated)
	assert.Zero(t, s.State().ChainID)

	require.NoError(t, m.HandleCommand(ctx, `{"connector":"ledger","operation":"eager"}`))
	assert.Equal(t, 1, c.eager)

	err := m.HandleCommand(ctx, `{"connector":"ledger","operation":"activate","chain":"nope"}`)
	assert.True(t, errors.Is(err, ErrInvalidCommand))

	err = m.HandleCommand(ctx, `{"connector":"nope","operation":"eager"}`)
	assert.True(t, errors.Is(err, ErrUnknownConnector))
}
