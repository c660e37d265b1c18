package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginIsIdempotent(t *testing.T) {
	ctx := Begin(context.Background())
	assert.Equal(t, ctx, Begin(ctx))

	WithValue(ctx, KeyCaller, "10.0.0.1")
	assert.Equal(t, "10.0.0.1", String(ctx, KeyCaller))
	assert.Equal(t, "10.0.0.1", Value(Begin(ctx), KeyCaller))
}

func TestWithoutBegin(t *testing.T) {
	ctx := context.Background()
	WithValue(ctx, KeyCaller, "10.0.0.1")
	assert.Nil(t, Value(ctx, KeyCaller))
	assert.Empty(t, String(ctx, KeyRequestID))
}
