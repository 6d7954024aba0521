package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// DatabaseUrl is optional. Without it accounts and export runs are kept
	// in memory and lost on restart.
	DatabaseUrl string

	// Storage Configuration
	StorageProvider string // "local" or "s3"

	// Local Storage (development)
	LocalStoragePath string // Base directory for export files
	LocalStorageURL  string // Base URL for downloading export files

	// S3-compatible Storage (production)
	S3Endpoint        string // Empty for AWS; set for MinIO, R2 and friends
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3PublicURL       string

	// Map server
	MapServerMode    string // "http" or "simulated"
	MapServerURL     string
	MapServerTimeout time.Duration
	MapServerRPS     float64

	// External lookups
	OpenWeatherAPIKey string
	ArcGISAPIKey      string
	OverpassURL       string

	// Refresh cadences
	MapRefreshInterval       time.Duration
	DashboardRefreshInterval time.Duration

	// Cron schedules; empty disables the job
	ExportSchedule string
	ReportSchedule string

	// Stored exports older than ExportRetention are deleted on
	// PruneSchedule; zero retention disables pruning
	ExportRetention time.Duration
	PruneSchedule   string

	// Kafka event publishing; disabled when KafkaBrokers is empty
	KafkaBrokers []string
	KafkaTopic   string

	// MQTT live readings; disabled when MQTTBroker is empty
	MQTTBroker   string
	MQTTTopic    string
	MQTTUsername string
	MQTTPassword string

	// InfluxDB analysis history; disabled when InfluxURL is empty
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// Front-end origin allowed for CORS and the event WebSocket. Empty accepts
	// any WebSocket origin and sends no CORS headers.
	AllowedOrigin string

	// Login attempts per minute per client IP
	LoginRateLimit int

	// Seed the demo accounts at startup
	SeedAccounts bool

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./exports"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/api/exports/files"),

		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),

		MapServerMode:    getEnv("MAP_SERVER_MODE", "simulated"),
		MapServerURL:     getEnv("MAP_SERVER_URL", "http://localhost:8080/cgi-bin/qgis_mapserv.fcgi"),
		MapServerTimeout: getEnvDuration("MAP_SERVER_TIMEOUT", 30*time.Second),
		MapServerRPS:     getEnvFloat("MAP_SERVER_RPS", 5),

		OpenWeatherAPIKey: getEnv("OPENWEATHER_API_KEY", ""),
		ArcGISAPIKey:      getEnv("ARCGIS_API_KEY", ""),
		OverpassURL:       getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),

		MapRefreshInterval:       getEnvDuration("MAP_REFRESH_INTERVAL", 30*time.Second),
		DashboardRefreshInterval: getEnvDuration("DASHBOARD_REFRESH_INTERVAL", 5*time.Second),

		ExportSchedule: getEnv("EXPORT_SCHEDULE", ""),
		ReportSchedule: getEnv("REPORT_SCHEDULE", ""),

		ExportRetention: getEnvDuration("EXPORT_RETENTION", 0),
		PruneSchedule:   getEnv("PRUNE_SCHEDULE", "@daily"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "tsfwatch.events"),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTTopic:    getEnv("MQTT_TOPIC", "tsf/stations/+/readings"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", ""),
		InfluxBucket: getEnv("INFLUX_BUCKET", "tsfwatch"),

		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", ""),
		LoginRateLimit: getEnvInt("LOGIN_RATE_LIMIT", 10),
		SeedAccounts:   getEnvBool("SEED_ACCOUNTS", true),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider-specific required settings.
func (cfg *Config) Validate() error {
	// Validate storage configuration
	switch cfg.StorageProvider {
	case "local":
		if cfg.LocalStoragePath == "" {
			return fmt.Errorf("LOCAL_STORAGE_PATH is required when STORAGE_PROVIDER is 'local'")
		}
	case "s3":
		if cfg.S3AccessKeyID == "" {
			return fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER is 's3'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", cfg.StorageProvider)
	}

	// Validate map server configuration
	switch cfg.MapServerMode {
	case "simulated":
	case "http":
		if cfg.MapServerURL == "" {
			return fmt.Errorf("MAP_SERVER_URL is required when MAP_SERVER_MODE is 'http'")
		}
	default:
		return fmt.Errorf("MAP_SERVER_MODE must be either 'http' or 'simulated', got: %s", cfg.MapServerMode)
	}

	if cfg.DashboardRefreshInterval <= 0 || cfg.MapRefreshInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}

	if cfg.ExportRetention < 0 {
		return fmt.Errorf("EXPORT_RETENTION must not be negative, got: %v", cfg.ExportRetention)
	}

	for name, spec := range map[string]string{
		"EXPORT_SCHEDULE": cfg.ExportSchedule,
		"REPORT_SCHEDULE": cfg.ReportSchedule,
		"PRUNE_SCHEDULE":  cfg.PruneSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s is not a valid cron schedule: %w", name, err)
		}
	}

	if cfg.InfluxURL != "" && (cfg.InfluxToken == "" || cfg.InfluxOrg == "") {
		return fmt.Errorf("INFLUX_TOKEN and INFLUX_ORG are required when INFLUX_URL is set")
	}

	if cfg.LoginRateLimit <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got: %d", cfg.LoginRateLimit)
	}

	return nil
}

// IsDevelopment reports whether ENV is "development".
func (cfg *Config) IsDevelopment() bool {
	return cfg.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
