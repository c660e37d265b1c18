// Package wallet owns the configured connectors and their stores, runs lifecycle operations
// on behalf of the transports and fans state changes out to the sinks.
package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"moff.io/moff-connector/internal/store"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

var ErrUnknownConnector = errors.New("unknown connector")

type Operation string

const (
	OperationActivate   Operation = "activate"
	OperationDeactivate Operation = "deactivate"
	OperationEager      Operation = "eager"
)

// StateSink receives every state change of every connector.
type StateSink interface {
	PublishState(ctx context.Context, connector string, state web3.State) error
}

// Snapshot is the last connector that reached a connected state.
type Snapshot struct {
	Connector   string
	ChainID     uint64
	Accounts    []string
	ConnectedAt time.Time
}

// SnapshotStore persists the last connection across restarts.
type SnapshotStore interface {
	Save(ctx context.Context, s Snapshot) error
	Last(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}

// Recorder audits lifecycle operations.
type Recorder interface {
	Record(ctx context.Context, connector string, op Operation, desired uint64, state web3.State, err error)
}

type Option func(*Manager)

func WithSinks(sinks ...StateSink) Option {
	return func(m *Manager) {
		m.sinks = append(m.sinks, sinks...)
	}
}

func WithSnapshots(s SnapshotStore) Option {
	return func(m *Manager) {
		m.snapshots = s
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

type entry struct {
	connector   web3.Connector
	store       *store.Store
	unsubscribe func()
}

type Manager struct {
	sinks     []StateSink
	snapshots SnapshotStore
	recorder  Recorder

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a connector writing to s. Registering a name twice replaces the first one.
func (m *Manager) Register(name string, c web3.Connector, s *store.Store) {
	e := &entry{connector: c, store: s}
	e.unsubscribe = s.Subscribe(func(state web3.State) {
		m.onState(name, state)
	})
	m.mu.Lock()
	old := m.entries[name]
	m.entries[name] = e
	m.mu.Unlock()
	if old != nil {
		old.unsubscribe()
	}
	log.Infof("wallet - registered connector %v", name)
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConnector, "connector %s", name)
	}
	return e, nil
}

// Names returns the registered connector names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// States returns the current state of every connector.
func (m *Manager) States() map[string]web3.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make(map[string]web3.State, len(m.entries))
	for name, e := range m.entries {
		states[name] = e.store.State()
	}
	return states
}

func (m *Manager) Activate(ctx context.Context, name string, desired *web3.ChainSelection) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}
	log.Infof("wallet - activating %v, desired chain %v", name, desired)
	err = e.connector.Activate(ctx, desired)
	m.record(ctx, name, OperationActivate, desired.Desired(), e.store.State(), err)
	return err
}

func (m *Manager) ConnectEagerly(ctx context.Context, name string) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}
	err = e.connector.ConnectEagerly(ctx)
	m.record(ctx, name, OperationEager, 0, e.store.State(), err)
	return err
}

// Deactivate releases the connector and clears its state.
func (m *Manager) Deactivate(ctx context.Context, name string, cause error) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}
	err = e.connector.Deactivate(ctx, cause)
	e.store.ResetState()
	m.record(ctx, name, OperationDeactivate, 0, e.store.State(), err)
	if m.snapshots != nil {
		last, lastErr := m.snapshots.Last(ctx)
		if lastErr != nil {
			log.Warnf("wallet - read last connection:%v", lastErr)
		} else if last != nil && last.Connector == name {
			if err := m.snapshots.Clear(ctx); err != nil {
				log.Warnf("wallet - clear last connection:%v", err)
			}
		}
	}
	return err
}

// Start reconnects silently to the connector saved as the last connection.
func (m *Manager) Start(ctx context.Context) {
	if m.snapshots == nil {
		return
	}
	last, err := m.snapshots.Last(ctx)
	if err != nil {
		log.Warnf("wallet - read last connection:%v", err)
		return
	}
	if last == nil {
		return
	}
	if _, err := m.lookup(last.Connector); err != nil {
		log.Warnf("wallet - last connection %v no longer configured", last.Connector)
		return
	}
	log.Infof("wallet - reconnecting to %v", last.Connector)
	if err := m.ConnectEagerly(ctx, last.Connector); err != nil {
		log.Warnf("wallet - reconnect %v:%v", last.Connector, err)
	}
}

// Stop deactivates every connector.
func (m *Manager) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, name := range m.Names() {
		e, err := m.lookup(name)
		if err != nil {
			continue
		}
		if err := e.connector.Deactivate(ctx, nil); err != nil {
			log.Warnf("wallet - deactivate %v:%v", name, err)
		}
	}
}

func (m *Manager) onState(name string, state web3.State) {
	ctx := context.Background()
	for _, sink := range m.sinks {
		if err := sink.PublishState(ctx, name, state); err != nil {
			log.Warnf("wallet - publish %v state:%v", name, err)
		}
	}
	if m.snapshots != nil && Connected(state) {
		err := m.snapshots.Save(ctx, Snapshot{
			Connector:   name,
			ChainID:     state.ChainID,
			Accounts:    state.Accounts,
			ConnectedAt: time.Now(),
		})
		if err != nil {
			log.Warnf("wallet - save last connection:%v", err)
		}
	}
}

func (m *Manager) record(ctx context.Context, name string, op Operation, desired uint64, state web3.State, err error) {
	if m.recorder != nil {
		m.recorder.Record(ctx, name, op, desired, state, err)
	}
}

// Connected reports whether state has a chain and at least one account and no activation running.
func Connected(state web3.State) bool {
	return state.ChainID != 0 && len(state.Accounts) > 0 && !state.Activating
}
