// internal/queue/iface/queue.go
package queue

import (
	"context"
	"time"
)

// MaxBatchSize is the hard per-call limit the queue service places on both
// receive and delete-batch requests.
const MaxBatchSize = 10

// Message is a single delivery of a queue message. A redelivery of the same
// message carries the same ID but a different ReceiptHandle.
type Message struct {
	ID                string
	Body              string
	ReceiptHandle     string
	Attributes        map[string]string
	MessageAttributes map[string]string
}

// ReceiveRequest describes one long-poll receive call.
type ReceiveRequest struct {
	QueueURL    string
	MaxMessages int
	WaitTime    time.Duration
	// VisibilityTimeout overrides the queue's redelivery delay when non-zero.
	VisibilityTimeout time.Duration
}

// DeleteEntry identifies one delivery to remove in a batch.
type DeleteEntry struct {
	ID            string
	ReceiptHandle string
}

// DeleteFailure is a per-entry failure reported by a batch delete.
type DeleteFailure struct {
	ID          string
	Code        string
	Message     string
	SenderFault bool
}

// DeleteResult reports the per-entry outcome of a batch delete.
type DeleteResult struct {
	Deleted []string
	Failed  []DeleteFailure
}

// Client is the subset of queue operations the bridge depends on.
// Implementations must be safe for concurrent use and must report
// failed calls as *Anomaly.
type Client interface {
	ReceiveMessages(ctx context.Context, req ReceiveRequest) ([]Message, error)
	DeleteMessageBatch(ctx context.Context, queueURL string, entries []DeleteEntry) (DeleteResult, error)
}

// Depth is an approximate snapshot of the queue backlog.
type Depth struct {
	Visible  int64
	InFlight int64
	Delayed  int64
}

// Inspector is implemented by clients able to report queue depth.
type Inspector interface {
	Depth(ctx context.Context, queueURL string) (Depth, error)
}
