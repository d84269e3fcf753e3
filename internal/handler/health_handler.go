package handler

import (
	"context"

	"sqsbridge/commons/error_handler"
	"sqsbridge/commons/handler"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
)

// PipelineState reports the current pipeline counters and flags.
type PipelineState interface {
	Snapshot() (metrics.Snapshot, error)
}

type HealthHandler struct {
	logger      logger.Logger
	serviceName string
	nodeID      string
	state       PipelineState
}

type HealthRequest struct{}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	NodeID  string `json:"node_id"`
	Running bool   `json:"running"`
	Fatal   bool   `json:"fatal"`
}

func NewHealthHandler(log logger.Logger, serviceName, nodeID string, state PipelineState) *HealthHandler {
	return &HealthHandler{
		logger:      log.With(logger.String("component", "health_handler")),
		serviceName: serviceName,
		nodeID:      nodeID,
		state:       state,
	}
}

// HealthService reports unhealthy once the pipeline has stopped on a fatal anomaly.
func (h *HealthHandler) HealthService(
	ctx context.Context,
	ioutil *handler.RequestIo[HealthRequest],
) (HealthResponse, *error_handler.ErrorCollection) {
	h.logger.Debug("health check requested")

	response := HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		NodeID:  h.nodeID,
	}

	snapshot, err := h.state.Snapshot()
	if err != nil {
		h.logger.Error("failed to read pipeline state", logger.Error(err))
		return response, error_handler.NewErrorCollection().
			AddError(error_handler.CodeInternalServerError, "Unable to read pipeline state", nil)
	}

	response.Running = snapshot.Running
	response.Fatal = snapshot.Fatal

	if snapshot.Fatal {
		response.Status = "unhealthy"
		return response, error_handler.NewErrorCollection().
			AddError(error_handler.CodeServiceUnavailable, "Pipeline stopped on a fatal queue anomaly", nil)
	}

	return response, nil
}
