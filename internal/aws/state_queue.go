package aws

import (
	"context"

	"moff.io/moff-connector/internal/databus"
	"moff.io/moff-connector/internal/wallet"
	"moff.io/moff-connector/internal/web3"
)

const stateQueueMaxTry = 3

type messageSender interface {
	MultiTrySendMessageToSQS(ctx context.Context, queueUrl, message string, maxTry int) error
}

// StateQueue forwards state changes to an SQS queue, one message per change.
type StateQueue struct {
	sender   messageSender
	queueURL string
}

var _ wallet.StateSink = (*StateQueue)(nil)

func (s *Clients) NewStateQueue(queueURL string) *StateQueue {
	return &StateQueue{sender: s, queueURL: queueURL}
}

func (q *StateQueue) PublishState(ctx context.Context, connector string, state web3.State) error {
	body := databus.StateEventOf("", connector, state).Serialize()
	if len(body) == 0 {
		return nil
	}
	return q.sender.MultiTrySendMessageToSQS(ctx, q.queueURL, string(body), stateQueueMaxTry)
}
