package config

import (
	"context"

	"sqsbridge/commons/routes"
	cache "sqsbridge/internal/cache/iface"
	redisCache "sqsbridge/internal/cache/redis"
	internalConfig "sqsbridge/internal/config"
	"sqsbridge/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// ProvideLogger creates and configures the logger for the application
func ProvideLogger(cfg internalConfig.Config) (logger.Logger, error) {
	return logger.NewZapLoggerWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
}

// ProvideFxLogger creates the FX event logger using the application logger
func ProvideFxLogger(log logger.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{
		Logger: log.(*logger.ZapLogger).Logger(),
	}
}

// ProvideRouteDependencies creates route dependencies
func ProvideRouteDependencies(log logger.Logger) routes.RouteDependencies {
	return routes.RouteDependencies{
		Logger: log,
	}
}

// ProvideRouter creates and configures the Gin router with all routes
func ProvideRouter(
	config routes.RouterConfig,
	deps routes.RouteDependencies,
	routeInitializer func(*gin.Engine, routes.RouteDependencies),
) *gin.Engine {
	router := routes.NewRouter(config, deps)
	routeInitializer(router, deps)
	return router
}

func initializeSqsClient(ctx context.Context, endpoint, region string) (*sqs.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// ProvideSQSClient provides an SQS client (for LocalStack or AWS)
func ProvideSQSClient(cfg internalConfig.Config, log logger.Logger) (*sqs.Client, error) {
	client, err := initializeSqsClient(context.Background(), cfg.SQSEndpoint, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	log.Info("sqs client configured",
		logger.String("region", cfg.AWSRegion),
		logger.String("endpoint", cfg.SQSEndpoint))

	return client, nil
}

// ProvideRedisCache provides a Redis cache client, or nil when no address is configured
func ProvideRedisCache(lc fx.Lifecycle, cfg internalConfig.Config, log logger.Logger) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, stats snapshots will only be logged")
		return nil, nil
	}

	password := "" // No password for local development
	db := 0        // Default DB

	c, err := redisCache.NewRedisCache(cfg.RedisAddr, password, db, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return c, nil
}
