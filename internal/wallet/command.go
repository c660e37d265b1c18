package wallet

import (
	"context"
	"encoding/json"

	"moff.io/moff-connector/internal/chains"
	"moff.io/moff-connector/pkg/errors"
)

var ErrInvalidCommand = errors.New("invalid command")

// Command is a lifecycle operation requested through a queue.
type Command struct {
	Connector string    `json:"connector"`
	Operation Operation `json:"operation"`
	ChainID   uint64    `json:"chain_id,omitempty"`
	Chain     string    `json:"chain,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func ParseCommand(body string) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal([]byte(body), &cmd); err != nil {
		return nil, errors.Wrapf(ErrInvalidCommand, "decode: %v", err)
	}
	if cmd.Connector == "" {
		return nil, errors.Wrap(ErrInvalidCommand, "connector not present")
	}
	switch cmd.Operation {
	case OperationActivate, OperationDeactivate, OperationEager:
	default:
		return nil, errors.Wrapf(ErrInvalidCommand, "operation %q", cmd.Operation)
	}
	return &cmd, nil
}

// Execute runs cmd against the registered connectors.
func (m *Manager) Execute(ctx context.Context, cmd *Command) error {
	switch cmd.Operation {
	case OperationActivate:
		desired, err := chains.Resolve(cmd.ChainID, cmd.Chain)
		if err != nil {
			return errors.Wrap(ErrInvalidCommand, err.Error())
		}
		return m.Activate(ctx, cmd.Connector, desired)
	case OperationDeactivate:
		var cause error
		if cmd.Reason != "" {
			cause = errors.New(cmd.Reason)
		}
		return m.Deactivate(ctx, cmd.Connector, cause)
	case OperationEager:
		return m.ConnectEagerly(ctx, cmd.Connector)
	}
	return errors.Wrapf(ErrInvalidCommand, "operation %q", cmd.Operation)
}

// HandleCommand parses and executes one queued command body.
func (m *Manager) HandleCommand(ctx context.Context, body string) error {
	cmd, err := ParseCommand(body)
	if err != nil {
		return err
	}
	return m.Execute(ctx, cmd)
}
