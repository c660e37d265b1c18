package databus

import (
	"context"
	"time"

	"moff.io/moff-connector/internal/chains"
	"moff.io/moff-connector/internal/wallet"
	"moff.io/moff-connector/internal/web3"
)

// StateEventOf converts a state change of connector into an event on topic.
func StateEventOf(topic, connector string, state web3.State) *StateEvent {
	e := NewStateEvent(topic)
	e.Connector = connector
	e.ChainID = state.ChainID
	e.Accounts = state.Accounts
	e.Activating = state.Activating
	e.Connected = wallet.Connected(state)
	e.At = time.Now().UnixMilli()
	if state.ChainID != 0 {
		e.ChainName = chains.Name(state.ChainID)
	}
	if e.Accounts == nil {
		e.Accounts = []string{}
	}
	return e
}

// StateSink produces every state change to a kafka topic keyed by connector.
type StateSink struct {
	bus   *DataBus
	topic string
}

var _ wallet.StateSink = (*StateSink)(nil)

func NewStateSink(bus *DataBus, topic string) *StateSink {
	return &StateSink{bus: bus, topic: topic}
}

func (s *StateSink) PublishState(_ context.Context, connector string, state web3.State) error {
	return s.bus.Publish(StateEventOf(s.topic, connector, state))
}
