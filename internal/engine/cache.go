package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"gopkg.in/fatih/set.v0"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/log"
)

// DefaultCacheSize bounds the number of cached responses.
const DefaultCacheSize = 512

type cacheScope int

const (
	scopeNever cacheScope = iota
	// scopePerma entries live until the engine stops.
	scopePerma
	// scopeBlock entries are dropped on every new block.
	scopeBlock
)

var (
	permaMethods = newMethodSet(
		"web3_clientVersion",
		"net_version",
		web3.MethodChainID,
		"eth_getBlockByHash",
		"eth_getTransactionByHash",
		"eth_getTransactionReceipt",
		"eth_getUncleByBlockHashAndIndex",
		"eth_getTransactionByBlockHashAndIndex",
	)
	blockMethods = newMethodSet(
		"eth_getBalance",
		"eth_getCode",
		"eth_getStorageAt",
		"eth_call",
		"eth_estimateGas",
		"eth_gasPrice",
		"eth_getTransactionCount",
		"eth_getBlockByNumber",
		"eth_getBlockTransactionCountByNumber",
		"eth_getLogs",
	)
)

func newMethodSet(methods ...string) set.Interface {
	s := set.New(set.NonThreadSafe)
	for _, m := range methods {
		s.Add(m)
	}
	return s
}

type cacheEntry struct {
	scope  cacheScope
	result json.RawMessage
}

// CacheSubprovider answers repeated requests from memory. Responses to immutable lookups are
// kept until Stop, responses depending on the chain head until the next block. Null results
// are never cached.
type CacheSubprovider struct {
	mu      sync.Mutex
	size    int
	entries *linkedhashmap.Map
	hits    int
}

func NewCacheSubprovider(size int) *CacheSubprovider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CacheSubprovider{size: size, entries: linkedhashmap.New()}
}

func (c *CacheSubprovider) HandleRequest(ctx context.Context, req web3.RequestArguments, next Next) (json.RawMessage, error) {
	scope := scopeOf(req.Method)
	if scope == scopeNever {
		return next(ctx, req)
	}
	key, err := cacheKey(req)
	if err != nil {
		return next(ctx, req)
	}
	c.mu.Lock()
	if v, found := c.entries.Get(key); found {
		c.hits++
		c.mu.Unlock()
		return append(json.RawMessage(nil), v.(*cacheEntry).result...), nil
	}
	c.mu.Unlock()

	result, err := next(ctx, req)
	if err != nil || isNull(result) {
		return result, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Put(key, &cacheEntry{scope: scope, result: append(json.RawMessage(nil), result...)})
	for c.entries.Size() > c.size {
		oldest := c.entries.Keys()[0]
		c.entries.Remove(oldest)
	}
	return result, nil
}

// OnBlock drops every block scoped entry.
func (c *CacheSubprovider) OnBlock(number uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for _, k := range c.entries.Keys() {
		v, _ := c.entries.Get(k)
		if v.(*cacheEntry).scope == scopeBlock {
			c.entries.Remove(k)
			dropped++
		}
	}
	if dropped > 0 {
		log.Debugf("cache stage - block %d invalidated %d entries", number, dropped)
	}
}

func (c *CacheSubprovider) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}

// Stats returns the number of cached entries and cache hits so far.
func (c *CacheSubprovider) Stats() (entries, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Size(), c.hits
}

func scopeOf(method string) cacheScope {
	switch {
	case permaMethods.Has(method):
		return scopePerma
	case blockMethods.Has(method):
		return scopeBlock
	default:
		return scopeNever
	}
}

func cacheKey(req web3.RequestArguments) (string, error) {
	params, err := json.Marshal(req.Params)
	if err != nil {
		return "", err
	}
	return req.Method + ":" + string(params), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
