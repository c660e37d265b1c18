package meta

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Well known keys.
const (
	KeyRequestID = "request_id"
	KeyCaller    = "caller"
)

// metadata is a mutable bag carried by a request context.
type metadata struct {
	carrier map[interface{}]interface{}
	mu      sync.RWMutex
}

func (c *metadata) Value(key interface{}) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carrier[key]
}

func (c *metadata) WithValue(key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carrier[key] = value
}

type contextKey struct{}

var metaContextKey = contextKey{}

// Begin attaches a metadata bag to parent, close to the root of a request. Calling it again
// on a context that already carries one returns parent unchanged.
func Begin(parent context.Context) context.Context {
	value := parent.Value(metaContextKey)
	if value == nil {
		meta := &metadata{
			carrier: make(map[interface{}]interface{}),
		}
		return context.WithValue(parent, metaContextKey, meta)
	}
	return parent
}

func metadataFrom(parent context.Context) *metadata {
	value := parent.Value(metaContextKey)
	if value == nil {
		logrus.Debug("meta not found from context, should call meta.Begin() first?")
		return nil
	}
	return value.(*metadata)
}

// WithValue stores key in the bag of parent. Without a bag it is a no-op.
func WithValue(parent context.Context, key, val interface{}) {
	meta := metadataFrom(parent)
	if meta == nil {
		return
	}
	meta.WithValue(key, val)
}

func Value(parent context.Context, key interface{}) interface{} {
	meta := metadataFrom(parent)
	if meta == nil {
		return nil
	}
	return meta.Value(key)
}

// String returns the string stored under key, empty when missing.
func String(parent context.Context, key interface{}) string {
	s, _ := Value(parent, key).(string)
	return s
}
