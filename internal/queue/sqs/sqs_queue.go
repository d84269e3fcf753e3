// internal/queue/sqs/sqs_queue.go
package sqs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sqsbridge/internal/logger"
	queue "sqsbridge/internal/queue/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI is the subset of the SQS client used by the adapter.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

var (
	_ queue.Client    = (*SQSQueue)(nil)
	_ queue.Inspector = (*SQSQueue)(nil)
)

// SQSQueue adapts an aws-sdk-go-v2 SQS client to queue.Client. It holds no
// per-call state and is safe for concurrent use.
type SQSQueue struct {
	client sqsAPI
	logger logger.Logger
}

// NewSQSQueue wraps client. *sqs.Client satisfies sqsAPI.
func NewSQSQueue(client sqsAPI, log logger.Logger) *SQSQueue {
	return &SQSQueue{
		client: client,
		logger: log.With(logger.String("component", "sqs_queue")),
	}
}

// ReceiveMessages issues a single long-poll receive.
func (q *SQSQueue) ReceiveMessages(ctx context.Context, req queue.ReceiveRequest) ([]queue.Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(req.QueueURL),
		MaxNumberOfMessages: int32(req.MaxMessages),
		WaitTimeSeconds:     int32(req.WaitTime / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameAll,
		},
		MessageAttributeNames: []string{"All"},
	}
	if req.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(req.VisibilityTimeout / time.Second)
	}

	result, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, classify("ReceiveMessage", err)
	}

	messages := make([]queue.Message, 0, len(result.Messages))
	for _, msg := range result.Messages {
		if msg.MessageId == nil || msg.ReceiptHandle == nil {
			q.logger.Warn("skipping message without id or receipt handle")
			continue
		}
		messages = append(messages, toMessage(msg))
	}

	if len(messages) > 0 {
		q.logger.Debug("received messages", logger.Int("count", len(messages)))
	}

	return messages, nil
}

func toMessage(msg types.Message) queue.Message {
	m := queue.Message{
		ID:            aws.ToString(msg.MessageId),
		Body:          aws.ToString(msg.Body),
		ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		Attributes:    make(map[string]string, len(msg.Attributes)),
	}
	for k, v := range msg.Attributes {
		m.Attributes[k] = v
	}
	if len(msg.MessageAttributes) > 0 {
		m.MessageAttributes = make(map[string]string, len(msg.MessageAttributes))
		for k, v := range msg.MessageAttributes {
			if v.StringValue != nil {
				m.MessageAttributes[k] = *v.StringValue
			}
		}
	}
	return m
}

// DeleteMessageBatch deletes up to queue.MaxBatchSize deliveries in one call.
// Batch entry ids are positional so duplicate message ids within a batch are
// still addressed individually.
func (q *SQSQueue) DeleteMessageBatch(ctx context.Context, queueURL string, entries []queue.DeleteEntry) (queue.DeleteResult, error) {
	var result queue.DeleteResult
	if len(entries) == 0 {
		return result, nil
	}
	if len(entries) > queue.MaxBatchSize {
		return result, &queue.Anomaly{
			Op:       "DeleteMessageBatch",
			Category: queue.Incorrect,
			Err:      fmt.Errorf("batch of %d entries exceeds limit of %d", len(entries), queue.MaxBatchSize),
		}
	}

	requestEntries := make([]types.DeleteMessageBatchRequestEntry, len(entries))
	for i, e := range entries {
		requestEntries[i] = types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: aws.String(e.ReceiptHandle),
		}
	}

	out, err := q.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  requestEntries,
	})
	if err != nil {
		return result, classify("DeleteMessageBatch", err)
	}

	for _, s := range out.Successful {
		if e, ok := entryAt(entries, s.Id); ok {
			result.Deleted = append(result.Deleted, e.ID)
		}
	}
	for _, f := range out.Failed {
		failure := queue.DeleteFailure{
			Code:        aws.ToString(f.Code),
			Message:     aws.ToString(f.Message),
			SenderFault: f.SenderFault,
		}
		if e, ok := entryAt(entries, f.Id); ok {
			failure.ID = e.ID
		} else {
			failure.ID = aws.ToString(f.Id)
		}
		result.Failed = append(result.Failed, failure)
	}

	return result, nil
}

func entryAt(entries []queue.DeleteEntry, id *string) (queue.DeleteEntry, bool) {
	i, err := strconv.Atoi(aws.ToString(id))
	if err != nil || i < 0 || i >= len(entries) {
		return queue.DeleteEntry{}, false
	}
	return entries[i], true
}

// Depth reports the approximate number of visible, in-flight and delayed messages.
func (q *SQSQueue) Depth(ctx context.Context, queueURL string) (queue.Depth, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return queue.Depth{}, classify("GetQueueAttributes", err)
	}

	attr := func(name types.QueueAttributeName) int64 {
		n, _ := strconv.ParseInt(out.Attributes[string(name)], 10, 64)
		return n
	}

	return queue.Depth{
		Visible:  attr(types.QueueAttributeNameApproximateNumberOfMessages),
		InFlight: attr(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		Delayed:  attr(types.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}, nil
}
