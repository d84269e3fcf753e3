package routes

import (
	"net/http"

	"sqsbridge/commons/routes"
	"sqsbridge/internal/handler"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/service"

	"github.com/gin-gonic/gin"
)

func InitStatsRoutes(
	router *gin.Engine,
	statsHandler *handler.StatsHandler,
	log logger.Logger,
) {
	apiV1 := routes.CreateAPIGroup(router, "v1")

	deps := routes.RouteDependencies{
		Logger: log,
	}

	// GET /api/v1/stats - Pipeline counters and queue backlog
	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[handler.StatsRequest, service.StatsReport]{
			Path:        "/stats",
			Method:      http.MethodGet,
			ServiceFunc: statsHandler.StatsService,
			RequireAuth: false,
		},
	)
}

// InitMetricsRoutes exposes the prometheus handler outside the API group.
func InitMetricsRoutes(router *gin.Engine, metricsHandler http.Handler) {
	router.GET(routes.MetricsPath, gin.WrapH(metricsHandler))
}
