package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPayloadID(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 500; i++ {
		id := NewPayloadID()
		assert.Less(t, id, int64(1)<<53)
		assert.Positive(t, id)
		assert.False(t, seen[id], "duplicate payload id %d", id)
		seen[id] = true
	}
}

func TestNewCutUUIDString(t *testing.T) {
	s := NewCutUUIDString()
	assert.Len(t, s, 32)
	assert.NotContains(t, s, "-")
}

func TestMustGetJSONString(t *testing.T) {
	assert.Equal(t, "{}", MustGetJSONString(nil))
	assert.Equal(t, `{"a":1}`, MustGetJSONString(map[string]int{"a": 1}))
	assert.Equal(t, "{}", MustGetJSONString(make(chan int)))
}

func TestTrimIP(t *testing.T) {
	assert.Equal(t, "127.0.0.1", TrimIP("127.0.0.1:8080"))
	assert.Equal(t, "localhost", TrimIP("localhost"))
}
