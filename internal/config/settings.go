package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the raw, partially populated configuration as read from a YAML
// file and the environment. A nil field means "not provided".
type Settings struct {
	FetchMaxMessages           *int    `yaml:"fetch-max-messages" env:"BRIDGE_FETCH_MAX_MESSAGES"`
	FetchWaitSecs              *int    `yaml:"fetch-wait-secs" env:"BRIDGE_FETCH_WAIT_SECS"`
	FetchVisibilityTimeoutSecs *int    `yaml:"fetch-visibility-timeout-secs" env:"BRIDGE_FETCH_VISIBILITY_TIMEOUT_SECS"`
	DeleteBatchSize            *int    `yaml:"delete-batch-size" env:"BRIDGE_DELETE_BATCH_SIZE"`
	DeleteWaitMsecs            *int    `yaml:"delete-wait-msecs" env:"BRIDGE_DELETE_WAIT_MSECS"`
	PostURL                    *string `yaml:"post-url" env:"BRIDGE_POST_URL"`
	PostContentType            *string `yaml:"post-content-type" env:"BRIDGE_POST_CONTENT_TYPE"`
	PostTimeoutMsecs           *int    `yaml:"post-timeout-msecs" env:"BRIDGE_POST_TIMEOUT_MSECS"`
	PostMaxConnections         *int    `yaml:"post-max-connections" env:"BRIDGE_POST_MAX_CONNECTIONS"`
	QueueURL                   *string `yaml:"queue-url" env:"BRIDGE_QUEUE_URL"`

	AWSRegion     *string `yaml:"aws-region" env:"AWS_REGION"`
	SQSEndpoint   *string `yaml:"sqs-endpoint" env:"BRIDGE_SQS_ENDPOINT"`
	HTTPPort      *string `yaml:"http-port" env:"BRIDGE_HTTP_PORT"`
	RedisAddr     *string `yaml:"redis-addr" env:"BRIDGE_REDIS_ADDR"`
	StatsSchedule *string `yaml:"stats-schedule" env:"BRIDGE_STATS_SCHEDULE"`
	NodeID        *string `yaml:"node-id" env:"BRIDGE_NODE_ID"`
	LogLevel      *string `yaml:"log-level" env:"LOG_LEVEL"`
	LogFormat     *string `yaml:"log-format" env:"LOG_FORMAT"`
}

// Config is the fully populated bridge configuration. Build it with
// Settings.Resolve and check it with Validate before use.
type Config struct {
	FetchMaxMessages   int    `yaml:"fetch-max-messages" validate:"min=1,max=10"`
	FetchWaitSecs      int    `yaml:"fetch-wait-secs" validate:"min=0,max=20"`
	DeleteBatchSize    int    `yaml:"delete-batch-size" validate:"min=1,max=10"`
	DeleteWaitMsecs    int    `yaml:"delete-wait-msecs" validate:"min=0"`
	PostURL            string `yaml:"post-url" validate:"required,http_endpoint"`
	PostContentType    string `yaml:"post-content-type" validate:"required"`
	PostTimeoutMsecs   int    `yaml:"post-timeout-msecs" validate:"gt=0"`
	PostMaxConnections int    `yaml:"post-max-connections" validate:"gt=0"`
	QueueURL           string `yaml:"queue-url" validate:"required,http_endpoint"`

	// FetchVisibilityTimeoutSecs is nil when the queue's own setting applies.
	FetchVisibilityTimeoutSecs *int `yaml:"fetch-visibility-timeout-secs" validate:"-"`

	AWSRegion     string `yaml:"aws-region" validate:"required"`
	SQSEndpoint   string `yaml:"sqs-endpoint" validate:"omitempty,http_endpoint"`
	HTTPPort      string `yaml:"http-port" validate:"required,numeric"`
	RedisAddr     string `yaml:"redis-addr" validate:"omitempty,hostname_port"`
	StatsSchedule string `yaml:"stats-schedule" validate:"required"`
	NodeID        string `yaml:"node-id" validate:"required"`
	LogLevel      string `yaml:"log-level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat     string `yaml:"log-format" validate:"omitempty,oneof=json console"`
}

// Defaults returns the values used for every setting the caller leaves out.
// PostURL and QueueURL have no default.
func Defaults() Config {
	return Config{
		FetchMaxMessages:   10,
		FetchWaitSecs:      20,
		DeleteBatchSize:    10,
		DeleteWaitMsecs:    1000,
		PostContentType:    "application/json",
		PostTimeoutMsecs:   30000,
		PostMaxConnections: 10,
		AWSRegion:          "us-east-1",
		HTTPPort:           "8090",
		StatsSchedule:      "@every 30s",
		NodeID:             uuid.NewString(),
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Resolve merges s over defaults. Explicit zero values in s are kept.
func (s Settings) Resolve(defaults Config) Config {
	c := defaults

	setInt(&c.FetchMaxMessages, s.FetchMaxMessages)
	setInt(&c.FetchWaitSecs, s.FetchWaitSecs)
	setInt(&c.DeleteBatchSize, s.DeleteBatchSize)
	setInt(&c.DeleteWaitMsecs, s.DeleteWaitMsecs)
	setString(&c.PostURL, s.PostURL)
	setString(&c.PostContentType, s.PostContentType)
	setInt(&c.PostTimeoutMsecs, s.PostTimeoutMsecs)
	setInt(&c.PostMaxConnections, s.PostMaxConnections)
	setString(&c.QueueURL, s.QueueURL)
	if s.FetchVisibilityTimeoutSecs != nil {
		v := *s.FetchVisibilityTimeoutSecs
		c.FetchVisibilityTimeoutSecs = &v
	}

	setString(&c.AWSRegion, s.AWSRegion)
	setString(&c.SQSEndpoint, s.SQSEndpoint)
	setString(&c.HTTPPort, s.HTTPPort)
	setString(&c.RedisAddr, s.RedisAddr)
	setString(&c.StatsSchedule, s.StatsSchedule)
	setString(&c.NodeID, s.NodeID)
	setString(&c.LogLevel, s.LogLevel)
	setString(&c.LogFormat, s.LogFormat)

	return c
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (c Config) FetchWait() time.Duration {
	return time.Duration(c.FetchWaitSecs) * time.Second
}

// VisibilityTimeout returns zero when no override is configured.
func (c Config) VisibilityTimeout() time.Duration {
	if c.FetchVisibilityTimeoutSecs == nil {
		return 0
	}
	return time.Duration(*c.FetchVisibilityTimeoutSecs) * time.Second
}

func (c Config) DeleteWait() time.Duration {
	return time.Duration(c.DeleteWaitMsecs) * time.Millisecond
}

func (c Config) PostTimeout() time.Duration {
	return time.Duration(c.PostTimeoutMsecs) * time.Millisecond
}

// LoadOptions points Load at optional configuration sources.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. Environment variables override it.
	ConfigFile string
	// EnvFiles are dotenv files loaded into the environment when they exist.
	// Variables already set in the process environment are not overridden.
	EnvFiles []string
}

// Load reads settings from the YAML file and the environment, merges them over
// Defaults and validates the result.
func Load(opts LoadOptions) (Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return Config{}, err
	}

	var s Settings
	if opts.ConfigFile != "" {
		raw, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigFile, err)
		}
	}

	if err := env.Parse(&s); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg := s.Resolve(Defaults())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat env file %s: %w", f, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}
