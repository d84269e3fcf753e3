package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cache "sqsbridge/internal/cache/iface"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"

	"github.com/robfig/cron/v3"
)

const statsKeyPrefix = "sqsbridge:stats:"

// StatsKey is the cache key holding the latest stats report of a node.
func StatsKey(nodeID string) string {
	return statsKeyPrefix + nodeID
}

// StatsReport is a node's pipeline counters plus, when available, the queue backlog.
type StatsReport struct {
	NodeID     string           `json:"node_id"`
	ReportedAt time.Time        `json:"reported_at"`
	Pipeline   metrics.Snapshot `json:"pipeline"`
	Queue      *queue.Depth     `json:"queue,omitempty"`
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// StatsReporter periodically logs a StatsReport and, when a cache is
// configured, publishes it under StatsKey with a TTL of three intervals so
// a node that stops reporting disappears.
type StatsReporter struct {
	metrics   *metrics.Metrics
	inspector queue.Inspector
	queueURL  string
	cache     cache.Cache
	nodeID    string
	schedule  string
	ttl       time.Duration
	cron      *cron.Cron
	logger    logger.Logger
}

// NewStatsReporter validates schedule. inspector and store may be nil.
func NewStatsReporter(
	schedule string,
	nodeID string,
	queueURL string,
	m *metrics.Metrics,
	inspector queue.Inspector,
	store cache.Cache,
	log logger.Logger,
) (*StatsReporter, error) {
	sched, err := scheduleParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}

	next := sched.Next(time.Now())
	interval := sched.Next(next).Sub(next)

	return &StatsReporter{
		metrics:   m,
		inspector: inspector,
		queueURL:  queueURL,
		cache:     store,
		nodeID:    nodeID,
		schedule:  schedule,
		ttl:       3 * interval,
		cron:      cron.New(cron.WithParser(scheduleParser)),
		logger:    log.With(logger.String("component", "stats_reporter")),
	}, nil
}

// Start schedules the report job
func (s *StatsReporter) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Report(context.Background()); err != nil {
			s.logger.Warn("stats report failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add stats cron: %w", err)
	}

	s.cron.Start()
	s.logger.Info("stats reporter started",
		logger.String("schedule", s.schedule),
		logger.Duration("ttl", s.ttl))

	return nil
}

// Stop waits for a running report to finish or ctx to be done.
func (s *StatsReporter) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Collect builds a report without publishing it. A failing depth lookup is
// logged and leaves Queue nil.
func (s *StatsReporter) Collect(ctx context.Context) (StatsReport, error) {
	snapshot, err := s.metrics.Snapshot()
	if err != nil {
		return StatsReport{}, err
	}

	report := StatsReport{
		NodeID:     s.nodeID,
		ReportedAt: time.Now().UTC(),
		Pipeline:   snapshot,
	}

	if s.inspector != nil {
		depth, err := s.inspector.Depth(ctx, s.queueURL)
		if err != nil {
			s.logger.Warn("failed to read queue depth", logger.Error(err))
		} else {
			report.Queue = &depth
		}
	}

	return report, nil
}

// Report collects, logs and publishes one report.
func (s *StatsReporter) Report(ctx context.Context) error {
	report, err := s.Collect(ctx)
	if err != nil {
		return err
	}

	fields := []logger.Field{
		logger.Int64("fetched", report.Pipeline.Fetched),
		logger.Int64("posted", report.Pipeline.Posted),
		logger.Int64("post_rejected", report.Pipeline.PostRejected),
		logger.Int64("post_errors", report.Pipeline.PostErrors),
		logger.Int64("posts_in_flight", report.Pipeline.PostsInFlight),
		logger.Int64("deleted", report.Pipeline.Deleted),
		logger.Int64("delete_failed", report.Pipeline.DeleteFailed),
		logger.Int64("delete_errors", report.Pipeline.DeleteErrors),
		logger.Bool("running", report.Pipeline.Running),
	}
	if report.Queue != nil {
		fields = append(fields,
			logger.Int64("queue_visible", report.Queue.Visible),
			logger.Int64("queue_in_flight", report.Queue.InFlight))
	}
	s.logger.Info("pipeline stats", fields...)

	if s.cache == nil {
		return nil
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal stats report: %w", err)
	}
	if err := s.cache.Set(ctx, StatsKey(s.nodeID), string(raw), s.ttl); err != nil {
		return fmt.Errorf("failed to publish stats report: %w", err)
	}

	return nil
}
