package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/usecase/executor"
	"github.com/simaogato/settlement-engine/internal/usecase/reconcile"
)

// Config holds the engine settings.
// Empty DBConnStr, NATSURL or RedisAddr disable that integration.
type Config struct {
	GRPCPort    int
	MetricsPort int
	APIToken    string

	ClearingAccount    string
	ExecutionDelay     time.Duration
	FailureProbability float64

	DBConnStr   string
	NATSURL     string
	NATSSubject string
	RedisAddr   string

	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration

	LogLevel     string
	Environment  string
	OTLPEndpoint string
}

// Load reads the configuration from the environment, overridden by args
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("settlement-engine", flag.ContinueOnError)

	fs.IntVar(&cfg.GRPCPort, "grpc-port", getEnvInt("GRPC_PORT", 8080), "gRPC server port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", getEnvInt("METRICS_PORT", 9090), "Metrics server port")
	fs.StringVar(&cfg.APIToken, "api-token", getEnv("API_TOKEN", "dev-token"), "Token required in the authorization metadata")

	fs.StringVar(&cfg.ClearingAccount, "clearing-account", getEnv("CLEARING_ACCOUNT", ""), "Platform clearing account (26 digits)")
	fs.DurationVar(&cfg.ExecutionDelay, "execution-delay", getEnvDuration("EXECUTION_DELAY", executor.DefaultDelay), "Simulated transfer service time")
	fs.Float64Var(&cfg.FailureProbability, "failure-probability", getEnvFloat("FAILURE_PROBABILITY", executor.DefaultFailureProbability), "Simulated transfer failure probability")

	fs.StringVar(&cfg.DBConnStr, "db", dbConnectionString(), "Postgres connection string for the outcome store")
	fs.StringVar(&cfg.NATSURL, "nats-url", getEnv("NATS_URL", ""), "NATS server URL for outcome publishing")
	fs.StringVar(&cfg.NATSSubject, "nats-subject", getEnv("NATS_SUBJECT", "settlement.outcomes"), "NATS subject for outcomes")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", ""), "Redis address for the enqueue acknowledgement log")

	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", getEnvDuration("RECONCILE_INTERVAL", time.Minute), "Reconciliation sweep interval")
	fs.DurationVar(&cfg.ReconcileGrace, "reconcile-grace", getEnvDuration("RECONCILE_GRACE", reconcile.DefaultGrace), "Age after which an unacknowledged request is stuck")

	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Environment, "environment", getEnv("ENVIRONMENT", "production"), "Deployment environment")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP gRPC endpoint, empty disables tracing")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.ClearingAccount != "" {
		if _, err := domain.NewBankAccount(c.ClearingAccount); err != nil {
			return fmt.Errorf("invalid clearing account: %w", err)
		}
	}
	if c.FailureProbability < 0 || c.FailureProbability > 1 {
		return fmt.Errorf("failure probability must be within [0, 1], got %v", c.FailureProbability)
	}
	if c.ExecutionDelay < 0 {
		return fmt.Errorf("execution delay cannot be negative, got %v", c.ExecutionDelay)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %v", c.ReconcileInterval)
	}
	return nil
}

// dbConnectionString uses DB_CONN_STR, or builds one from DB_* variables
// when DB_HOST is set
func dbConnectionString() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host,
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "settlement"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
