package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings come from the pod environment. A .env file in the working
// directory is loaded first for local runs and never overrides real variables.

type Config struct {
	DBHost              string `mapstructure:"DB_HOST"`
	DBPort              string `mapstructure:"DB_PORT"`
	DBUser              string `mapstructure:"DB_USER"`
	DBPassword          string `mapstructure:"DB_PASSWORD"`
	DBName              string `mapstructure:"DB_NAME"`
	DBInstrumented      bool   `mapstructure:"DB_INSTRUMENTED"`
	StoreDriver         string `mapstructure:"STORE_DRIVER"`
	ServerPort          string `mapstructure:"SERVER_PORT"`
	AWSRegion           string `mapstructure:"AWS_REGION"`
	AWSEndpoint         string `mapstructure:"AWS_ENDPOINT"`
	OvertimeSQSQueueURL string `mapstructure:"OVERTIME_SQS_QUEUE_URL"`
	EventsSQSQueueURL   string `mapstructure:"ATTENDANCE_EVENTS_SQS_QUEUE_URL"`
	WorkerConcurrency   int    `mapstructure:"WORKER_CONCURRENCY"`
	DirectoryAPIURL     string `mapstructure:"DIRECTORY_API_URL"`
	OrgTimezone         string `mapstructure:"ORG_TIMEZONE"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	JWTIssuer           string `mapstructure:"JWT_ISSUER"`
	OTLPEndpoint        string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	IsLocalDev          bool   `mapstructure:"IS_LOCAL_DEV"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	localDevJWTSecret = "local-dev-secret"
)

// DSN is the pgx connection URL for the configured database.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// LoadConfig reads configuration from .env and environment variables.
func LoadConfig() (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("DB_HOST", "db")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "attendance_db")
	v.SetDefault("DB_INSTRUMENTED", true)
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	v.SetDefault("OVERTIME_SQS_QUEUE_URL", "http://localstack:4566/000000000000/overtime-sync-queue")
	v.SetDefault("ATTENDANCE_EVENTS_SQS_QUEUE_URL", "http://localstack:4566/000000000000/attendance-events-queue")
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("DIRECTORY_API_URL", "http://localhost:8081/")
	v.SetDefault("ORG_TIMEZONE", "UTC")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317")
	v.SetDefault("IS_LOCAL_DEV", false)

	v.AutomaticEnv()

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))
	if config.JWTSecret == "" && config.IsLocalDev {
		config.JWTSecret = localDevJWTSecret
	}
	return config, config.Validate()
}

// Validate rejects settings the services cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" && !c.IsLocalDev {
		return fmt.Errorf("JWT_SECRET is required outside local development")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	return nil
}
