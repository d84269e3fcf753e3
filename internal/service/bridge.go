package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sqsbridge/internal/config"
	"sqsbridge/internal/httpclient"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"
)

// ErrAlreadyStarted is returned by Start on a bridge that has been started before.
var ErrAlreadyStarted = errors.New("bridge already started")

func IsAlreadyStartedError(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

const defaultErrorPause = time.Second

// Bridge moves messages from a queue to an HTTP endpoint: fetch, post, then
// delete the messages the endpoint accepted.
type Bridge struct {
	cfg     config.Config
	queue   queue.Client
	poster  httpclient.Poster
	metrics *metrics.Metrics
	logger  logger.Logger

	// errorPause is the delay before retrying after a transient receive failure.
	errorPause time.Duration

	started atomic.Bool
	run     atomic.Pointer[Run]
}

func NewBridge(
	cfg config.Config,
	queueClient queue.Client,
	poster httpclient.Poster,
	m *metrics.Metrics,
	log logger.Logger,
) *Bridge {
	return &Bridge{
		cfg:        cfg,
		queue:      queueClient,
		poster:     poster,
		metrics:    m,
		logger:     log.With(logger.String("component", "bridge")),
		errorPause: defaultErrorPause,
	}
}

// Start validates the configuration, starts every stage and returns
// immediately. Nothing is started when the configuration is invalid.
func (b *Bridge) Start() (*Run, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cannot start bridge: %w", err)
	}
	if !b.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	cfg := b.cfg
	fetched := make(chan queue.Message, 2*cfg.FetchMaxMessages)
	posted := make(chan queue.Message, 2*cfg.DeleteBatchSize)
	batches := make(chan []queue.Message, 1)

	f := &fetcher{
		queue: b.queue,
		request: queue.ReceiveRequest{
			QueueURL:          cfg.QueueURL,
			MaxMessages:       cfg.FetchMaxMessages,
			WaitTime:          cfg.FetchWait(),
			VisibilityTimeout: cfg.VisibilityTimeout(),
		},
		errorPause: b.errorPause,
		metrics:    b.metrics,
		logger:     b.logger.With(logger.String("stage", "fetcher")),
	}
	p := &poster{
		client:      b.poster,
		url:         cfg.PostURL,
		contentType: cfg.PostContentType,
		limit:       cfg.PostMaxConnections,
		metrics:     b.metrics,
		logger:      b.logger.With(logger.String("stage", "poster")),
	}
	d := &deleter{
		queue:     b.queue,
		queueURL:  cfg.QueueURL,
		batchSize: cfg.DeleteBatchSize,
		wait:      cfg.DeleteWait(),
		metrics:   b.metrics,
		logger:    b.logger.With(logger.String("stage", "deleter")),
	}

	r := newRun()
	b.run.Store(r)
	b.metrics.SetRunning(true)
	b.metrics.SetFatal(false)

	var stages sync.WaitGroup
	stages.Add(4)

	go func() {
		defer stages.Done()
		ok := f.run(r.stop, fetched)
		if !ok {
			b.metrics.SetFatal(true)
		}
		r.done <- !ok
	}()
	go func() {
		defer stages.Done()
		p.run(fetched, posted)
	}()
	go func() {
		defer stages.Done()
		d.accumulate(posted, batches)
	}()
	go func() {
		defer stages.Done()
		d.flush(batches)
	}()

	go func() {
		stages.Wait()
		b.metrics.SetRunning(false)
		b.logger.Info("bridge drained")
		close(r.drained)
	}()

	b.logger.Info("bridge started",
		logger.String("queue_url", cfg.QueueURL),
		logger.String("post_url", cfg.PostURL),
		logger.Int("post_max_connections", cfg.PostMaxConnections),
		logger.Int("delete_batch_size", cfg.DeleteBatchSize))

	return r, nil
}

// Current returns the run started by Start, or nil before Start.
func (b *Bridge) Current() *Run {
	return b.run.Load()
}

// Run is the handle to a started bridge.
type Run struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan bool
	drained  chan struct{}
}

func newRun() *Run {
	return &Run{
		stop:    make(chan struct{}),
		done:    make(chan bool, 1),
		drained: make(chan struct{}),
	}
}

// Stop asks the bridge to stop after the in-flight receive call returns.
// It is safe to call more than once and from any goroutine.
func (r *Run) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done delivers exactly one value once fetching has ended: true if it ended
// on a fatal anomaly, false if it was stopped on request.
func (r *Run) Done() <-chan bool {
	return r.done
}

// Drained is closed once every stage has exited and the last delete batch
// has been flushed.
func (r *Run) Drained() <-chan struct{} {
	return r.drained
}

// Wait blocks until the run has drained or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for bridge to drain: %w", ctx.Err())
	}
}

func (r *Run) Stopping() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}
