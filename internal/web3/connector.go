package web3

import "context"

// Connector establishes, tracks and tears down the connection to one agent.
type Connector interface {
	// ConnectEagerly silently restores a previous connection. Failures only reset shared state.
	ConnectEagerly(ctx context.Context) error
	// Activate connects explicitly, optionally moving the agent to the selected chain.
	Activate(ctx context.Context, desired *ChainSelection) error
	// Deactivate releases the provider. Calling it twice is harmless.
	Deactivate(ctx context.Context, cause error) error
	// Provider returns the acquired provider, nil before acquisition.
	Provider() Provider
}
