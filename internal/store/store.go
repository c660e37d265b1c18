// Package store keeps the shared connection state written by connectors and fans every change
// out to subscribers.
package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// Listener is called with a copy of the state after every change, outside the store lock.
type Listener func(web3.State)

// Store implements web3.Actions.
type Store struct {
	name string

	mu        sync.Mutex
	state     web3.State
	nullifier uint64

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

var _ web3.Actions = (*Store)(nil)

// New returns an empty, disconnected store. name labels log lines.
func New(name string) *Store {
	return &Store{
		name:      name,
		listeners: make(map[int]Listener),
	}
}

func (s *Store) Name() string {
	return s.name
}

// State returns a copy of the current state.
func (s *Store) State() web3.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Subscribe registers l and returns a func removing it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// StartActivation flags the store as activating. The returned func clears the flag again,
// unless another write happened in between.
func (s *Store) StartActivation() web3.CancelActivation {
	s.mu.Lock()
	s.nullifier++
	nullifier := s.nullifier
	s.state.Activating = true
	snapshot := copyState(s.state)
	s.mu.Unlock()
	s.notify(snapshot)

	return func() {
		s.mu.Lock()
		if s.nullifier != nullifier {
			s.mu.Unlock()
			return
		}
		s.state.Activating = false
		snapshot := copyState(s.state)
		s.mu.Unlock()
		s.notify(snapshot)
	}
}

// Update merges u into the state. Activating is cleared once chain id and accounts are both known.
func (s *Store) Update(u web3.StateUpdate) error {
	if u.ChainID != nil {
		if err := ValidateChainID(*u.ChainID); err != nil {
			return err
		}
	}
	var accounts []string
	if u.Accounts != nil {
		accounts = make([]string, 0, len(u.Accounts))
		for _, a := range u.Accounts {
			checksummed, err := ValidateAccount(a)
			if err != nil {
				return err
			}
			accounts = append(accounts, checksummed)
		}
	}

	s.mu.Lock()
	s.nullifier++
	if u.ChainID != nil {
		s.state.ChainID = *u.ChainID
	}
	if accounts != nil {
		s.state.Accounts = accounts
	}
	if s.state.Activating && s.state.ChainID != 0 && s.state.Accounts != nil {
		s.state.Activating = false
	}
	snapshot := copyState(s.state)
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

// ResetState unconditionally clears the state to disconnected.
func (s *Store) ResetState() {
	s.mu.Lock()
	s.nullifier++
	s.state = web3.State{}
	s.mu.Unlock()
	log.Debugf("store %v - reset state", s.name)
	s.notify(web3.State{})
}

func (s *Store) notify(state web3.State) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		l(copyState(state))
	}
}

func copyState(in web3.State) web3.State {
	out := in
	if in.Accounts != nil {
		out.Accounts = append([]string(nil), in.Accounts...)
	}
	return out
}

// ValidateChainID rejects ids outside 1..2^53-1.
func ValidateChainID(id uint64) error {
	if id == 0 || id > web3.MaxSafeChainID {
		return errors.Errorf("invalid chain id %d", id)
	}
	return nil
}

// ValidateAccount rejects anything that is not a 20 byte hex address and returns its EIP-55 form.
func ValidateAccount(account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", errors.Errorf("invalid account %q", account)
	}
	return common.HexToAddress(account).Hex(), nil
}
