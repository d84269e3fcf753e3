package service

import (
	"context"
	"time"

	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"
)

// receiveGrace is added to the long-poll wait to form the receive call timeout.
const receiveGrace = 5 * time.Second

type fetcher struct {
	queue      queue.Client
	request    queue.ReceiveRequest
	errorPause time.Duration
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// run polls the queue until stop is closed or a fatal anomaly occurs and
// reports whether it ended cleanly. out is closed on return.
//
// A receive call is never aborted by stop; the stop signal is checked once
// the call returns and its messages have been handed on.
func (f *fetcher) run(stop <-chan struct{}, out chan<- queue.Message) bool {
	defer close(out)

	f.logger.Info("fetcher started",
		logger.String("queue_url", f.request.QueueURL),
		logger.Int("max_messages", f.request.MaxMessages),
		logger.Duration("wait_time", f.request.WaitTime))

	for {
		ctx, cancel := context.WithTimeout(context.Background(), f.request.WaitTime+receiveGrace)
		messages, err := f.queue.ReceiveMessages(ctx, f.request)
		cancel()

		if err != nil {
			category := queue.CategoryOf(err)
			f.metrics.FetchError(category.String())

			if category.Fatal() {
				f.logger.Error("fatal queue anomaly, stopping fetcher",
					logger.String("category", category.String()),
					logger.Error(err))
				return false
			}

			f.logger.Warn("transient queue anomaly",
				logger.String("category", category.String()),
				logger.Error(err))

			if f.pause(stop) {
				f.logger.Info("fetcher stopped on request")
				return true
			}
			continue
		}

		f.metrics.Fetched(len(messages))
		for _, msg := range messages {
			out <- msg
		}

		select {
		case <-stop:
			f.logger.Info("fetcher stopped on request")
			return true
		default:
		}
	}
}

// pause waits out errorPause after a transient failure. It reports true if
// stop was closed meanwhile.
func (f *fetcher) pause(stop <-chan struct{}) bool {
	if f.errorPause <= 0 {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(f.errorPause)
	defer t.Stop()

	select {
	case <-stop:
		return true
	case <-t.C:
		return false
	}
}
