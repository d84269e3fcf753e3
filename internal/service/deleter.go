package service

import (
	"context"
	"time"

	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"
)

const deleteTimeout = 30 * time.Second

type deleter struct {
	queue     queue.Client
	queueURL  string
	batchSize int
	wait      time.Duration
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// accumulate groups messages from in into batches of at most batchSize. A
// batch is emitted when it is full, when wait has elapsed since its first
// message arrived, or when in is closed. out is closed after the last batch.
func (d *deleter) accumulate(in <-chan queue.Message, out chan<- []queue.Message) {
	defer close(out)

	for {
		first, ok := <-in
		if !ok {
			return
		}

		batch := make([]queue.Message, 0, d.batchSize)
		batch = append(batch, first)
		timer := time.NewTimer(d.wait)
		closed := false

	collect:
		for len(batch) < d.batchSize {
			select {
			case msg, ok := <-in:
				if !ok {
					closed = true
					break collect
				}
				batch = append(batch, msg)
			case <-timer.C:
				break collect
			}
		}
		timer.Stop()

		out <- batch
		if closed {
			return
		}
	}
}

// flush issues one delete-batch call per batch until in is closed.
func (d *deleter) flush(in <-chan []queue.Message) {
	for batch := range in {
		d.deleteBatch(batch)
	}
	d.logger.Info("deleter drained")
}

func (d *deleter) deleteBatch(batch []queue.Message) {
	entries := make([]queue.DeleteEntry, len(batch))
	for i, msg := range batch {
		entries[i] = queue.DeleteEntry{ID: msg.ID, ReceiptHandle: msg.ReceiptHandle}
	}

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	result, err := d.queue.DeleteMessageBatch(ctx, d.queueURL, entries)
	if err != nil {
		d.metrics.Deleted(metrics.ResultError, len(batch))
		d.logger.Error("failed to delete batch",
			logger.Int("batch_size", len(batch)),
			logger.String("category", queue.CategoryOf(err).String()),
			logger.Error(err))
		return
	}

	for _, f := range result.Failed {
		d.logger.Warn("failed to delete message",
			logger.String("message_id", f.ID),
			logger.String("code", f.Code),
			logger.String("reason", f.Message),
			logger.Bool("sender_fault", f.SenderFault))
	}

	d.metrics.Deleted(metrics.ResultOK, len(result.Deleted))
	d.metrics.Deleted(metrics.ResultFailed, len(result.Failed))

	d.logger.Debug("deleted batch",
		logger.Int("batch_size", len(batch)),
		logger.Int("deleted", len(result.Deleted)),
		logger.Int("failed", len(result.Failed)))
}
