package handler

import (
	"context"

	"sqsbridge/commons/error_handler"
	"sqsbridge/commons/handler"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/service"
)

// StatsCollector builds a stats report on demand.
type StatsCollector interface {
	Collect(ctx context.Context) (service.StatsReport, error)
}

type StatsHandler struct {
	collector StatsCollector
	logger    logger.Logger
}

type StatsRequest struct{}

func NewStatsHandler(collector StatsCollector, log logger.Logger) *StatsHandler {
	return &StatsHandler{
		collector: collector,
		logger:    log.With(logger.String("component", "stats_handler")),
	}
}

// StatsService returns the node's pipeline counters and queue backlog
func (h *StatsHandler) StatsService(
	ctx context.Context,
	ioutil *handler.RequestIo[StatsRequest],
) (service.StatsReport, *error_handler.ErrorCollection) {
	report, err := h.collector.Collect(ctx)
	if err != nil {
		h.logger.Error("failed to collect stats", logger.Error(err))
		return service.StatsReport{}, error_handler.NewErrorCollection().
			AddError(error_handler.CodeInternalServerError, "Failed to collect stats", nil)
	}

	return report, nil
}
