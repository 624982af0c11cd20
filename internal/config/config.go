package config

import (
	"os"
	"strconv"
	"strings"

	"dataportal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Ingest    IngestConfig
	Export    ExportConfig
	Storage   StorageConfig
	Documents DocumentsConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string // postgres or sqlite
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port       string
	PublicPort string // empty disables the public document mirror
	GinMode    string
}

// IngestConfig holds spreadsheet ingestion settings
type IngestConfig struct {
	BatchSize         int
	MaxPositionalCols int
	Lookahead         int
	EmptyHeaderPolicy string // fallback or drop
	ReservedTables    []string
	SofficeBin        string
	MaxUploadBytes    int64
}

// ExportConfig holds workbook export settings
type ExportConfig struct {
	StyleFile    string
	NumericMoney bool
}

// StorageConfig selects where uploaded documents live
type StorageConfig struct {
	Driver         string // local or minio
	Path           string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// DocumentsConfig holds per-category upload limits
type DocumentsConfig struct {
	InternalMaxBytes int64
	ExternalMaxBytes int64
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

const megabyte = 1 << 20

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	config.Server = *loadServerConfig()
	config.Ingest = *loadIngestConfig()
	config.Export = *loadExportConfig()
	config.Storage = *loadStorageConfig()
	config.Documents = *loadDocumentsConfig()
	config.Logging = *loadLoggingConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		Driver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "postgres")),
		URL:    url,
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:       getEnvOrDefault("PORT", "8080"),
		PublicPort: getEnvOrDefault("PUBLIC_PORT", ""),
		GinMode:    getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadIngestConfig() *IngestConfig {
	return &IngestConfig{
		BatchSize:         getEnvIntOrDefault("INGEST_BATCH_SIZE", 500),
		MaxPositionalCols: getEnvIntOrDefault("POSITIONAL_MAX_COLUMNS", 7),
		Lookahead:         getEnvIntOrDefault("POSITIONAL_LOOKAHEAD", 1000),
		EmptyHeaderPolicy: strings.ToLower(getEnvOrDefault("EMPTY_HEADER_POLICY", "fallback")),
		ReservedTables:    getEnvListOrDefault("RESERVED_TABLES", nil),
		SofficeBin:        getEnvOrDefault("SOFFICE_BIN", "libreoffice"),
		MaxUploadBytes:    int64(getEnvIntOrDefault("MAX_UPLOAD_MB", 20)) * megabyte,
	}
}

func loadExportConfig() *ExportConfig {
	return &ExportConfig{
		StyleFile:    getEnvOrDefault("EXPORT_STYLE_FILE", ""),
		NumericMoney: getEnvBoolOrDefault("EXPORT_NUMERIC_MONEY", false),
	}
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Driver:         strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", "local")),
		Path:           getEnvOrDefault("STORAGE_PATH", "./storage"),
		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", ""),
		MinioUseSSL:    getEnvBoolOrDefault("MINIO_USE_SSL", false),
	}
}

func loadDocumentsConfig() *DocumentsConfig {
	return &DocumentsConfig{
		InternalMaxBytes: int64(getEnvIntOrDefault("INTERNAL_MAX_MB", 5)) * megabyte,
		ExternalMaxBytes: int64(getEnvIntOrDefault("EXTERNAL_MAX_MB", 10)) * megabyte,
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite")
	}
	switch config.Ingest.EmptyHeaderPolicy {
	case "fallback", "drop":
	default:
		return errors.ConfigInvalid("EMPTY_HEADER_POLICY must be fallback or drop")
	}
	if config.Ingest.BatchSize <= 0 {
		return errors.ConfigInvalid("INGEST_BATCH_SIZE must be positive")
	}
	if config.Ingest.MaxPositionalCols <= 0 {
		return errors.ConfigInvalid("POSITIONAL_MAX_COLUMNS must be positive")
	}
	switch config.Storage.Driver {
	case "local":
	case "minio":
		if config.Storage.MinioEndpoint == "" || config.Storage.MinioBucket == "" {
			return errors.ConfigInvalid("minio storage requires MINIO_ENDPOINT and MINIO_BUCKET")
		}
	default:
		return errors.ConfigInvalid("STORAGE_DRIVER must be local or minio")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
