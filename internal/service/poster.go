package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sqsbridge/internal/httpclient"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"

	"golang.org/x/sync/errgroup"
)

type poster struct {
	client      httpclient.Poster
	url         string
	contentType string
	limit       int
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// run posts every message from in with at most limit requests outstanding
// and forwards the ones answered with 200 to out. out is closed once in is
// closed and every request has finished.
func (p *poster) run(in <-chan queue.Message, out chan<- queue.Message) {
	defer close(out)

	var g errgroup.Group
	g.SetLimit(p.limit)

	for msg := range in {
		g.Go(func() error {
			p.post(msg, out)
			return nil
		})
	}

	_ = g.Wait()
	p.logger.Info("poster drained")
}

func (p *poster) post(msg queue.Message, out chan<- queue.Message) {
	start := time.Now()
	result := metrics.ResultError
	p.metrics.PostStarted()

	defer func() {
		if r := recover(); r != nil {
			result = metrics.ResultError
			p.logger.Error("panic while posting message",
				logger.String("message_id", msg.ID),
				logger.Any("panic", r))
		}
		p.metrics.PostFinished(result, time.Since(start).Seconds())
	}()

	status, err := p.client.Post(context.Background(), p.url, p.contentType, []byte(msg.Body))
	if err != nil {
		if httpclient.IsBuildRequestError(err) {
			p.logger.Error("failed to build request",
				logger.String("message_id", msg.ID),
				logger.Error(err))
			return
		}
		p.logger.Warn("failed to post message",
			logger.String("message_id", msg.ID),
			logger.Error(err))
		return
	}

	if status != http.StatusOK {
		result = metrics.ResultRejected
		p.logger.Warn("endpoint rejected message",
			logger.String("message_id", msg.ID),
			logger.Int("status_code", status),
			logger.String("status", fmt.Sprintf("%d %s", status, http.StatusText(status))))
		return
	}

	result = metrics.ResultOK
	out <- msg
}
