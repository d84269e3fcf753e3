package service_init

import (
	"context"

	"sqsbridge/commons/routes"
	"sqsbridge/commons/server"
	cache "sqsbridge/internal/cache/iface"
	"sqsbridge/internal/config"
	"sqsbridge/internal/handler"
	"sqsbridge/internal/httpclient"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"
	"sqsbridge/internal/queue/sqs"
	internalRoutes "sqsbridge/internal/routes"
	"sqsbridge/internal/service"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const serviceName = "sqsbridge"

// BridgeModule wires the bridge pipeline, the stats reporter and the ops HTTP
// surface. It expects config.Config, logger.Logger, *awssqs.Client and
// cache.Cache to be provided.
func BridgeModule() fx.Option {
	return fx.Module("bridge",
		fx.Provide(
			ProvideSQSQueue,
			ProvideQueueClient,
			ProvideQueueInspector,
			ProvidePoster,
			metrics.NewMetrics,
			ProvideBridge,
			ProvideStatsReporter,
			ProvideHealthHandler,
			ProvideStatsHandler,
			ProvideRouterConfig,
			ProvideServerConfig,
			ProvideRouteInitializer,
		),
		fx.Invoke(
			ManageStatsReporterLifecycle,
			ManageBridgeLifecycle,
		),
	)
}

// Queue Providers

func ProvideSQSQueue(client *awssqs.Client, log logger.Logger) *sqs.SQSQueue {
	return sqs.NewSQSQueue(client, log)
}

func ProvideQueueClient(q *sqs.SQSQueue) queue.Client {
	return q
}

func ProvideQueueInspector(q *sqs.SQSQueue) queue.Inspector {
	return q
}

// Service Providers

func ProvidePoster(cfg config.Config, log logger.Logger) httpclient.Poster {
	return httpclient.NewHTTPClient(httpclient.Options{
		Timeout:        cfg.PostTimeout(),
		MaxConnections: cfg.PostMaxConnections,
	}, log)
}

func ProvideBridge(
	cfg config.Config,
	q queue.Client,
	poster httpclient.Poster,
	m *metrics.Metrics,
	log logger.Logger,
) *service.Bridge {
	return service.NewBridge(cfg, q, poster, m, log)
}

func ProvideStatsReporter(
	cfg config.Config,
	m *metrics.Metrics,
	inspector queue.Inspector,
	store cache.Cache,
	log logger.Logger,
) (*service.StatsReporter, error) {
	return service.NewStatsReporter(cfg.StatsSchedule, cfg.NodeID, cfg.QueueURL, m, inspector, store, log)
}

// HTTP Providers

func ProvideHealthHandler(cfg config.Config, m *metrics.Metrics, log logger.Logger) *handler.HealthHandler {
	return handler.NewHealthHandler(log, serviceName, cfg.NodeID, m)
}

func ProvideStatsHandler(reporter *service.StatsReporter, log logger.Logger) *handler.StatsHandler {
	return handler.NewStatsHandler(reporter, log)
}

func ProvideRouterConfig() routes.RouterConfig {
	return routes.RouterConfig{
		ServiceName: serviceName,
		Version:     "v1",
	}
}

func ProvideServerConfig(cfg config.Config) server.ServerConfig {
	return server.ServerConfig{
		Port: cfg.HTTPPort,
	}
}

func ProvideRouteInitializer(
	healthHandler *handler.HealthHandler,
	statsHandler *handler.StatsHandler,
	m *metrics.Metrics,
) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitHealthRoutes(router, healthHandler, deps.Logger)
		internalRoutes.InitStatsRoutes(router, statsHandler, deps.Logger)
		internalRoutes.InitMetricsRoutes(router, m.Handler())
	}
}

// Lifecycle Management

// ManageBridgeLifecycle starts the bridge with the application and drains it
// on stop. A fatal queue anomaly shuts the application down with exit code 1.
func ManageBridgeLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	bridge *service.Bridge,
	srv *server.HTTPServer,
	log logger.Logger,
) {
	// The HTTP server's lifecycle hooks are managed by its constructor; taking
	// it here keeps it in the dependency graph.
	_ = srv

	var run *service.Run

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting bridge")
			r, err := bridge.Start()
			if err != nil {
				return err
			}
			run = r

			go func() {
				if fatal := <-r.Done(); fatal {
					log.Error("bridge stopped on a fatal queue anomaly, shutting down")
					if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
						log.Error("failed to request shutdown", logger.Error(err))
					}
					return
				}
				log.Info("bridge stopped fetching")
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if run == nil {
				return nil
			}
			log.Info("stopping bridge")
			run.Stop()
			return run.Wait(ctx)
		},
	})
}

func ManageStatsReporterLifecycle(lc fx.Lifecycle, reporter *service.StatsReporter, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting stats reporter")
			return reporter.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping stats reporter")
			return reporter.Stop(ctx)
		},
	})
}
