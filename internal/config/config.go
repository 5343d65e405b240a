package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds record store connection settings.
// Driver selects the backend: "postgres" (default), "sqlite" or "memory".
type DatabaseConfig struct {
	Driver             string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	SQLitePath         string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// IngestConfig holds settings for the ingestion service.
type IngestConfig struct {
	// StagingBackend is "disk" (default) or "minio".
	StagingBackend    string
	StagingDir        string
	MaxUploadBytes    int
	StorageServiceURL string
	ForwardTimeout    time.Duration
}

// StorageConfig holds settings for the processed files (storage) service.
type StorageConfig struct {
	APIKey       string
	MaxBodyBytes int
}

// AppConfig is the centralized configuration struct for both services.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port     string
	LogLevel string
	// Timezone is an IANA location name used for log timestamps.
	Timezone string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Ingest   IngestConfig
	Storage  StorageConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("LOG_TIMEZONE", "UTC"),
		Database: DatabaseConfig{
			Driver:             getEnv("DB_DRIVER", "postgres"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			SQLitePath:         getEnv("SQLITE_PATH", "data/processed_files.db"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Ingest: IngestConfig{
			StagingBackend:    getEnv("STAGING_BACKEND", "disk"),
			StagingDir:        getEnv("STAGING_DIR", os.TempDir()),
			MaxUploadBytes:    getEnvInt("MAX_UPLOAD_BYTES", 32<<20),
			StorageServiceURL: getEnv("STORAGE_SERVICE_URL", "http://localhost:8081"),
			ForwardTimeout:    getEnvDuration("FORWARD_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			APIKey:       getEnv("PROCESSED_FILES_API_KEY", ""),
			MaxBodyBytes: getEnvInt("STORAGE_MAX_BODY_BYTES", 128<<20),
		},
	}
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
