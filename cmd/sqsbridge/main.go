package main

import (
	"fmt"
	"os"
	"time"

	commonConfig "sqsbridge/commons/config"
	"sqsbridge/commons/server"
	"sqsbridge/internal/config"
	service_init "sqsbridge/internal/service/init"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

// stopGrace is added to the longest in-flight operation when sizing the stop timeout.
const stopGrace = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "sqsbridge",
		Usage: "forward SQS messages to an HTTP endpoint and delete the ones it accepts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file; environment variables override it",
				EnvVars: []string{"BRIDGE_CONFIG_FILE"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv file to load before reading the environment (repeatable)",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if level := c.String("log-level"); level != "" {
		if err := os.Setenv("LOG_LEVEL", level); err != nil {
			return fmt.Errorf("failed to set log level: %w", err)
		}
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: c.String("config"),
		EnvFiles:   c.StringSlice("env-file"),
	})
	if err != nil {
		return err
	}

	fx.New(
		fx.Supply(cfg),
		fx.WithLogger(commonConfig.ProvideFxLogger),
		fx.StopTimeout(cfg.FetchWait()+cfg.PostTimeout()+stopGrace),
		fx.Provide(
			commonConfig.ProvideLogger,
			commonConfig.ProvideRouteDependencies,
			commonConfig.ProvideSQSClient,
			commonConfig.ProvideRedisCache,
			commonConfig.ProvideRouter,
			server.NewHTTPServer,
		),
		service_init.BridgeModule(),
	).Run()

	return nil
}
