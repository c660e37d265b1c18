package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

type QueueMessageHandler func(*types.Message) (deleteMsg bool, err error)

// Deduplicator remembers message ids already handled.
type Deduplicator interface {
	// Claim returns false when key was claimed before and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const deduplicationTTL = time.Hour * 24 * 3

func (s *Clients) NewSQSWorker(ctx context.Context, queueURL string, dedup Deduplicator, handler QueueMessageHandler) {
	go s.blockingConsumeSQSMessages(ctx, queueURL, dedup, handler)
}

func queueNameOf(queueURL string) string {
	idx := strings.LastIndex(queueURL, "/")
	return queueURL[idx+1:]
}

func deduplicationKey(queueName, messageID string) string {
	return fmt.Sprintf("%v_deduplication:%v", queueName, messageID)
}

func (s *Clients) blockingConsumeSQSMessages(ctx context.Context, queueURL string, dedup Deduplicator, handler QueueMessageHandler) {
	queueName := queueNameOf(queueURL)
	log.Infof("Blocking consume messages from queue %v...", queueName)
	defer log.Infof("Stopped to consume messages from queue %v...", queueName)
	for {
		msg, err := s.GetSingleMessageFromSQS(ctx, queueURL)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			log.Error(err)
			continue
		}
		if msg == nil {
			continue
		}
		s.handleMessage(ctx, queueURL, queueName, msg, dedup, handler)
	}
}

// handleMessage runs handler at most once per message id. Duplicates are deleted unhandled; a
// failed or kept message releases its id so a redelivery is handled again.
func (s *Clients) handleMessage(ctx context.Context, queueURL, queueName string, msg *types.Message, dedup Deduplicator, handler QueueMessageHandler) {
	cacheKey := deduplicationKey(queueName, aws.ToString(msg.MessageId))
	claimed, err := dedup.Claim(ctx, cacheKey, deduplicationTTL)
	if err != nil {
		log.Error(errors.WrapAndReport(err, "deduplicate queue message"))
		return
	}
	if !claimed {
		if err := s.DeleteSingleMessageFromSQS(ctx, queueURL, aws.ToString(msg.ReceiptHandle)); err != nil {
			log.Error(err)
		}
		return
	}

	deleteMsg, err := handler(msg)
	if err != nil {
		log.Error(err)
		if err := dedup.Release(ctx, cacheKey); err != nil {
			log.Error(errors.WrapfAndReport(err, "delete queue %v message %v deduplication", queueName, aws.ToString(msg.MessageId)))
		}
		return
	}
	if deleteMsg {
		if err := s.DeleteSingleMessageFromSQS(ctx, queueURL, aws.ToString(msg.ReceiptHandle)); err != nil {
			log.Error(err)
		}
		return
	}
	if err := dedup.Release(ctx, cacheKey); err != nil {
		log.Error(errors.WrapfAndReport(err, "delete queue %v message %v deduplication", queueName, aws.ToString(msg.MessageId)))
	}
}

func (s *Clients) GetSingleMessageFromSQS(ctx context.Context, queueUrl string) (*types.Message, error) {
	output, err := s.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueUrl),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapfAndReport(err, "query sqs message from %s", queueUrl)
	}
	if len(output.Messages) == 0 {
		return nil, nil
	}
	return &output.Messages[0], nil
}

func (s *Clients) DeleteSingleMessageFromSQS(ctx context.Context, queueUrl, receiptHandle string) error {
	_, err := s.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueUrl),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return errors.WrapfAndReport(err, "delete sqs message from %s", queueUrl)
}

func (s *Clients) MultiTrySendMessageToSQS(ctx context.Context, queueUrl, message string, maxTry int) error {
	for i := 0; i < maxTry; i++ {
		_, err := s.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueUrl),
			MessageBody: aws.String(message),
		})
		if err != nil {
			log.Error(errors.WrapfAndReport(err, "send sqs message to %s", queueUrl))
			continue
		}
		return nil
	}
	return errors.ErrorfAndReport("send sqs message to %s max try exceeded", queueUrl)
}
