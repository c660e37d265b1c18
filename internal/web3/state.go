package web3

// State is the shared connection state written by connectors.
type State struct {
	ChainID    uint64   `json:"chainId,omitempty"`
	Accounts   []string `json:"accounts,omitempty"`
	Activating bool     `json:"activating"`
}

// StateUpdate is a partial write; nil fields are left untouched.
type StateUpdate struct {
	ChainID  *uint64
	Accounts []string
}

// CancelActivation rolls back the activating flag of one activation attempt.
type CancelActivation func()

// Actions is the sink connectors write shared state into.
type Actions interface {
	StartActivation() CancelActivation
	Update(StateUpdate) error
	ResetState()
}

// ChainUpdate builds a StateUpdate carrying only the chain id.
func ChainUpdate(chainID uint64) StateUpdate {
	return StateUpdate{ChainID: &chainID}
}

// AccountsUpdate builds a StateUpdate carrying only the accounts.
func AccountsUpdate(accounts []string) StateUpdate {
	return StateUpdate{Accounts: accounts}
}

// FullUpdate builds a StateUpdate carrying chain id and accounts.
func FullUpdate(chainID uint64, accounts []string) StateUpdate {
	return StateUpdate{ChainID: &chainID, Accounts: accounts}
}
