package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"moff.io/moff-connector/pkg/log"
)

// CommandExecutor runs one command message body.
type CommandExecutor func(ctx context.Context, body string) error

// CommandWorker consumes lifecycle commands from an SQS queue.
type CommandWorker struct {
	clients  *Clients
	queueURL string
	dedup    Deduplicator
	exec     CommandExecutor
}

func (s *Clients) NewCommandWorker(queueURL string, dedup Deduplicator, exec CommandExecutor) *CommandWorker {
	return &CommandWorker{clients: s, queueURL: queueURL, dedup: dedup, exec: exec}
}

func (w *CommandWorker) Start(ctx context.Context) {
	w.clients.NewSQSWorker(ctx, w.queueURL, w.dedup, commandHandler(ctx, w.exec))
}

// commandHandler deletes every command once executed. A failed activation is an outcome, not
// a reason to redeliver.
func commandHandler(ctx context.Context, exec CommandExecutor) QueueMessageHandler {
	return func(msg *types.Message) (bool, error) {
		if err := exec(ctx, aws.ToString(msg.Body)); err != nil {
			log.Warnf("command message %v:%v", aws.ToString(msg.MessageId), err)
		}
		return true, nil
	}
}
