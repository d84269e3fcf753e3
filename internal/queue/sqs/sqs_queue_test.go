package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"sqsbridge/internal/logger"
	queue "sqsbridge/internal/queue/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSQSClient struct {
	mock.Mock
}

func (m *MockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSClient) DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageBatchOutput), args.Error(1)
}

func (m *MockSQSClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.GetQueueAttributesOutput), args.Error(1)
}

const testQueueURL = "http://localhost:4566/000000000000/bridge-queue"

func TestReceiveMessages(t *testing.T) {
	t.Run("builds the request and maps messages", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
			return aws.ToString(in.QueueUrl) == testQueueURL &&
				in.MaxNumberOfMessages == 5 &&
				in.WaitTimeSeconds == 20 &&
				in.VisibilityTimeout == 120
		})).Return(&sqs.ReceiveMessageOutput{
			Messages: []types.Message{
				{
					MessageId:     aws.String("m-1"),
					ReceiptHandle: aws.String("rh-1"),
					Body:          aws.String(`{"hello":"world"}`),
					Attributes:    map[string]string{"ApproximateReceiveCount": "2"},
					MessageAttributes: map[string]types.MessageAttributeValue{
						"trace": {DataType: aws.String("String"), StringValue: aws.String("abc")},
						"blob":  {DataType: aws.String("Binary"), BinaryValue: []byte{1}},
					},
				},
				{MessageId: aws.String("m-2"), ReceiptHandle: aws.String("rh-2"), Body: aws.String("second")},
				{MessageId: aws.String("m-3")},
			},
		}, nil).Once()

		msgs, err := q.ReceiveMessages(context.Background(), queue.ReceiveRequest{
			QueueURL:          testQueueURL,
			MaxMessages:       5,
			WaitTime:          20 * time.Second,
			VisibilityTimeout: 2 * time.Minute,
		})
		require.NoError(t, err)
		require.Len(t, msgs, 2)

		assert.Equal(t, "m-1", msgs[0].ID)
		assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)
		assert.Equal(t, `{"hello":"world"}`, msgs[0].Body)
		assert.Equal(t, "2", msgs[0].Attributes["ApproximateReceiveCount"])
		assert.Equal(t, map[string]string{"trace": "abc"}, msgs[0].MessageAttributes)
		assert.Equal(t, "m-2", msgs[1].ID)
		client.AssertExpectations(t)
	})

	t.Run("omits visibility timeout when not set", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
			return in.VisibilityTimeout == 0 && in.WaitTimeSeconds == 0
		})).Return(&sqs.ReceiveMessageOutput{}, nil).Once()

		msgs, err := q.ReceiveMessages(context.Background(), queue.ReceiveRequest{QueueURL: testQueueURL, MaxMessages: 1})
		require.NoError(t, err)
		assert.Empty(t, msgs)
		client.AssertExpectations(t)
	})

	t.Run("classifies errors", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		client.On("ReceiveMessage", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}).Once()

		_, err := q.ReceiveMessages(context.Background(), queue.ReceiveRequest{QueueURL: testQueueURL, MaxMessages: 1})
		require.Error(t, err)

		var anomaly *queue.Anomaly
		require.True(t, errors.As(err, &anomaly))
		assert.Equal(t, queue.Forbidden, anomaly.Category)
		assert.Equal(t, "AccessDenied", anomaly.Code)
		assert.Equal(t, "ReceiveMessage", anomaly.Op)
	})
}

func TestDeleteMessageBatch(t *testing.T) {
	entries := []queue.DeleteEntry{
		{ID: "m-1", ReceiptHandle: "rh-1"},
		{ID: "m-2", ReceiptHandle: "rh-2"},
		{ID: "m-1", ReceiptHandle: "rh-1b"},
	}

	t.Run("maps positional ids back to message ids", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		client.On("DeleteMessageBatch", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageBatchInput) bool {
			if len(in.Entries) != 3 {
				return false
			}
			return aws.ToString(in.Entries[0].Id) == "0" &&
				aws.ToString(in.Entries[2].Id) == "2" &&
				aws.ToString(in.Entries[2].ReceiptHandle) == "rh-1b"
		})).Return(&sqs.DeleteMessageBatchOutput{
			Successful: []types.DeleteMessageBatchResultEntry{{Id: aws.String("0")}, {Id: aws.String("2")}},
			Failed: []types.BatchResultErrorEntry{{
				Id:          aws.String("1"),
				Code:        aws.String("ReceiptHandleIsInvalid"),
				Message:     aws.String("expired"),
				SenderFault: true,
			}},
		}, nil).Once()

		result, err := q.DeleteMessageBatch(context.Background(), testQueueURL, entries)
		require.NoError(t, err)
		assert.Equal(t, []string{"m-1", "m-1"}, result.Deleted)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, queue.DeleteFailure{ID: "m-2", Code: "ReceiptHandleIsInvalid", Message: "expired", SenderFault: true}, result.Failed[0])
		client.AssertExpectations(t)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		result, err := q.DeleteMessageBatch(context.Background(), testQueueURL, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Deleted)
		client.AssertNotCalled(t, "DeleteMessageBatch", mock.Anything, mock.Anything)
	})

	t.Run("rejects oversized batches", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		big := make([]queue.DeleteEntry, queue.MaxBatchSize+1)
		_, err := q.DeleteMessageBatch(context.Background(), testQueueURL, big)
		assert.Equal(t, queue.Incorrect, queue.CategoryOf(err))
		client.AssertNotCalled(t, "DeleteMessageBatch", mock.Anything, mock.Anything)
	})

	t.Run("whole call failure is an anomaly", func(t *testing.T) {
		client := new(MockSQSClient)
		q := NewSQSQueue(client, logger.NewNopLogger())

		client.On("DeleteMessageBatch", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "ThrottlingException"}).Once()

		_, err := q.DeleteMessageBatch(context.Background(), testQueueURL, entries)
		assert.Equal(t, queue.Busy, queue.CategoryOf(err))
	})
}

func TestDepth(t *testing.T) {
	client := new(MockSQSClient)
	q := NewSQSQueue(client, logger.NewNopLogger())

	client.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(&sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(types.QueueAttributeNameApproximateNumberOfMessages):           "42",
			string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible): "7",
			string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed):    "0",
		},
	}, nil).Once()

	depth, err := q.Depth(context.Background(), testQueueURL)
	require.NoError(t, err)
	assert.Equal(t, queue.Depth{Visible: 42, InFlight: 7, Delayed: 0}, depth)
}
