// Package engine chains subproviders into one web3.Provider. A request walks the stages in
// the order they were added until one of them answers it.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/atomic"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// DefaultPollingInterval is used when no polling interval is configured.
const DefaultPollingInterval = 4 * time.Second

// Next hands a request to the following stage.
type Next func(ctx context.Context, req web3.RequestArguments) (json.RawMessage, error)

// Subprovider is one stage of the engine.
type Subprovider interface {
	HandleRequest(ctx context.Context, req web3.RequestArguments, next Next) (json.RawMessage, error)
}

// Starter is implemented by stages holding resources opened by Engine.Start.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by stages releasing resources on Engine.Stop.
type Stopper interface {
	Stop()
}

// BlockListener is implemented by stages interested in new block numbers.
type BlockListener interface {
	OnBlock(number uint64)
}

type Engine struct {
	pollingInterval time.Duration

	mu          sync.RWMutex
	stages      []Subprovider
	latestBlock uint64

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ web3.Provider = (*Engine)(nil)

// New returns an engine polling for blocks every pollingInterval, DefaultPollingInterval when zero.
// A negative interval disables polling.
func New(pollingInterval time.Duration) *Engine {
	if pollingInterval == 0 {
		pollingInterval = DefaultPollingInterval
	}
	return &Engine{pollingInterval: pollingInterval}
}

// AddProvider appends a stage. Stages must be added before Start.
func (e *Engine) AddProvider(s Subprovider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stages = append(e.stages, s)
}

// Start starts every stage in order and the block poller. When a stage fails to start, the
// stages already started are stopped again and the error is returned.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CAS(false, true) {
		return nil
	}
	stages := e.snapshot()
	for i, s := range stages {
		starter, ok := s.(Starter)
		if !ok {
			continue
		}
		if err := starter.Start(ctx); err != nil {
			stopStages(stages[:i])
			e.running.Store(false)
			return errors.Wrapf(err, "start stage %d", i)
		}
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	if e.pollingInterval > 0 {
		e.wg.Add(1)
		go e.pollBlocks(pollCtx)
	}
	log.Infof("provider engine started with %d stages", len(stages))
	return nil
}

// Stop stops the poller and every stage. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	if !e.running.CAS(true, false) {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	stopStages(e.snapshot())
	log.Info("provider engine stopped")
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

// Request sends req through the stages.
func (e *Engine) Request(ctx context.Context, req web3.RequestArguments) (json.RawMessage, error) {
	if !e.running.Load() {
		return nil, web3.NewProviderRpcError(web3.ErrCodeDisconnected, "provider engine not started")
	}
	return e.handle(e.snapshot(), 0)(ctx, req)
}

func (e *Engine) handle(stages []Subprovider, i int) Next {
	return func(ctx context.Context, req web3.RequestArguments) (json.RawMessage, error) {
		if i >= len(stages) {
			return nil, web3.NewProviderRpcError(web3.ErrCodeUnsupportedMethod, "method %s not handled by any stage", req.Method)
		}
		return stages[i].HandleRequest(ctx, req, e.handle(stages, i+1))
	}
}

// LatestBlock returns the last block number seen by the poller.
func (e *Engine) LatestBlock() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latestBlock
}

func (e *Engine) pollBlocks(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.pollingInterval)
	defer ticker.Stop()
	for {
		e.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	raw, err := e.handle(e.snapshot(), 0)(ctx, web3.RequestArguments{Method: "eth_blockNumber"})
	if err != nil {
		if ctx.Err() == nil {
			log.Debugf("provider engine - poll block number:%v", err)
		}
		return
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		log.Debugf("provider engine - decode block number %s:%v", string(raw), err)
		return
	}
	number, err := hexutil.DecodeUint64(hex)
	if err != nil {
		log.Debugf("provider engine - parse block number:%v", err)
		return
	}
	e.mu.Lock()
	changed := number != e.latestBlock
	e.latestBlock = number
	stages := append([]Subprovider(nil), e.stages...)
	e.mu.Unlock()
	if !changed {
		return
	}
	for _, s := range stages {
		if l, ok := s.(BlockListener); ok {
			l.OnBlock(number)
		}
	}
}

func (e *Engine) snapshot() []Subprovider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Subprovider(nil), e.stages...)
}

func stopStages(stages []Subprovider) {
	for i := len(stages) - 1; i >= 0; i-- {
		if stopper, ok := stages[i].(Stopper); ok {
			stopper.Stop()
		}
	}
}
