package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Run modes
const (
	ModeOnce   = "once"
	ModeWorker = "worker"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Mode        string
	Credentials CredentialsConfig
	Primary     SourceConfig
	Secondary   SecondaryConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Validation  ValidationConfig
	Anomaly     AnomalyConfig
}

// CredentialsConfig locates the credentials file and the service entries in it
type CredentialsConfig struct {
	Path                 string
	PrimaryServiceName   string
	SecondaryServiceName string
}

// SourceConfig holds upstream HTTP settings
type SourceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SecondaryConfig holds telemetry service settings
type SecondaryConfig struct {
	SourceConfig
	// SiteID pins the site to reconcile against; 0 means the first accessible one
	SiteID int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a run journal database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL               string
	RequestExchange   string
	RequestQueue      string
	RequestRoutingKey string
	EventsExchange    string
	ReadingRoutingKey string
	RunDoneRoutingKey string
	DLQQueue          string
	PrefetchCount     int
}

// Enabled reports whether a broker is configured
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// ValidationConfig holds run request validation settings
type ValidationConfig struct {
	RequestToleranceMinutes int
}

// AnomalyConfig holds anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	timeout := time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-reconciler"),
		Mode:        getEnv("RUN_MODE", ModeOnce),
		Credentials: CredentialsConfig{
			Path:                 getEnv("CREDENTIALS_PATH", "secrets.yaml"),
			PrimaryServiceName:   getEnv("PRIMARY_SERVICE_NAME", "uk_gorod"),
			SecondaryServiceName: getEnv("SECONDARY_SERVICE_NAME", "saures"),
		},
		Primary: SourceConfig{
			BaseURL: getEnv("PRIMARY_BASE_URL", ""),
			Timeout: timeout,
		},
		Secondary: SecondaryConfig{
			SourceConfig: SourceConfig{
				BaseURL: getEnv("SECONDARY_BASE_URL", "https://api.saures.ru/1.0"),
				Timeout: timeout,
			},
			SiteID: getEnvAsInt64("SECONDARY_SITE_ID", 0),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			RequestExchange:   getEnv("RABBITMQ_REQUEST_EXCHANGE", "meter-reconciler.requests.exchange"),
			RequestQueue:      getEnv("RABBITMQ_REQUEST_QUEUE", "meter-reconciler.requests.queue"),
			RequestRoutingKey: getEnv("RABBITMQ_REQUEST_ROUTING_KEY", "reconciliation.run.requested"),
			EventsExchange:    getEnv("RABBITMQ_EVENTS_EXCHANGE", "meter-reconciler.events.exchange"),
			ReadingRoutingKey: getEnv("RABBITMQ_READING_ROUTING_KEY", "meter.reading.reconciled"),
			RunDoneRoutingKey: getEnv("RABBITMQ_RUN_DONE_ROUTING_KEY", "reconciliation.run.completed"),
			DLQQueue:          getEnv("RABBITMQ_DLQ_QUEUE", "meter-reconciler.requests.dlq"),
			PrefetchCount:     getEnvAsInt("RABBITMQ_PREFETCH", 1),
		},
		Validation: ValidationConfig{
			RequestToleranceMinutes: getEnvAsInt("RUN_REQUEST_TOLERANCE_MINUTES", 60),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold: getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
		},
	}

	// Validate required fields
	if cfg.Primary.BaseURL == "" {
		return nil, fmt.Errorf("PRIMARY_BASE_URL is required but not set in environment variables")
	}
	switch cfg.Mode {
	case ModeOnce:
	case ModeWorker:
		if !cfg.RabbitMQ.Enabled() {
			return nil, fmt.Errorf("RABBITMQ_URL is required in %s mode", ModeWorker)
		}
	default:
		return nil, fmt.Errorf("RUN_MODE must be %q or %q, got %q", ModeOnce, ModeWorker, cfg.Mode)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
