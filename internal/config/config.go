package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the VaultDrive API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Identity IdentityConfig
	Quota    QuotaConfig
	Upload   UploadConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// IdentityConfig groups settings for validating tokens issued by the
// external identity provider.
type IdentityConfig struct {
	TokenSecret string
	Issuer      string
}

// QuotaConfig controls per-owner storage accounting.
type QuotaConfig struct {
	DefaultLimitBytes int64
}

// UploadConfig tunes the chunked upload coordinator.
type UploadConfig struct {
	SessionExpiry   time.Duration
	JanitorInterval time.Duration
	SampleBytes     int64
	PresignTTL      time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("VAULTDRIVE_API_HOST", "0.0.0.0"),
			Port:         getInt("VAULTDRIVE_API_PORT", 8080),
			ReadTimeout:  getDuration("VAULTDRIVE_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("VAULTDRIVE_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("VAULTDRIVE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "vaultdrive_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "vaultdrive"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "vaultdrive"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "vaultdrive"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Identity: IdentityConfig{
			TokenSecret: getString("VAULTDRIVE_IDP_TOKEN_SECRET", "change-me-to-the-idp-shared-secret"),
			Issuer:      getString("VAULTDRIVE_IDP_ISSUER", ""),
		},
		Quota: QuotaConfig{
			DefaultLimitBytes: getInt64("VAULTDRIVE_QUOTA_DEFAULT_LIMIT", 10*1024*1024*1024),
		},
		Upload: UploadConfig{
			SessionExpiry:   getDuration("VAULTDRIVE_UPLOAD_SESSION_EXPIRY", 24*time.Hour),
			JanitorInterval: getDuration("VAULTDRIVE_UPLOAD_JANITOR_INTERVAL", 15*time.Minute),
			SampleBytes:     getInt64("VAULTDRIVE_UPLOAD_SAMPLE_BYTES", 64*1024),
			PresignTTL:      getDuration("VAULTDRIVE_UPLOAD_PRESIGN_TTL", 15*time.Minute),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("VAULTDRIVE_METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
