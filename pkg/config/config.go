package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OCR       OCRConfig
	Ingest    IngestConfig
	Resolver  ResolverConfig
	Patient   PatientConfig
	Taxonomy  TaxonomyConfig
	OTEL      OTELConfig
	Env       string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OCRConfig holds the external text-recognition service configuration
type OCRConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// IngestConfig holds batch ingestion configuration
type IngestConfig struct {
	InputDir          string
	Workers           int
	ExtractionTimeout time.Duration
	CacheTTLSeconds   int
}

// ResolverConfig holds entity resolution configuration
type ResolverConfig struct {
	FuzzyThreshold float64
}

// PatientConfig points at the static patient identity file
type PatientConfig struct {
	FilePath string
}

// TaxonomyConfig holds classification taxonomy configuration
type TaxonomyConfig struct {
	FilePath      string
	MinConfidence float64
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "medical_timeline"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OCR: OCRConfig{
			BaseURL: getEnv("OCR_BASE_URL", "http://localhost:8884"),
			APIKey:  getEnv("OCR_API_KEY", ""),
			Timeout: getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
		},
		Ingest: IngestConfig{
			InputDir:          getEnv("INGEST_INPUT_DIR", "./exports"),
			Workers:           getEnvAsInt("INGEST_WORKERS", 4),
			ExtractionTimeout: getEnvAsDuration("INGEST_EXTRACTION_TIMEOUT", 60*time.Second),
			CacheTTLSeconds:   getEnvAsInt("INGEST_CACHE_TTL_SECONDS", 30*24*3600),
		},
		Resolver: ResolverConfig{
			FuzzyThreshold: getEnvAsFloat("RESOLVER_FUZZY_THRESHOLD", 0.85),
		},
		Patient: PatientConfig{
			FilePath: getEnv("PATIENT_FILE", ""),
		},
		Taxonomy: TaxonomyConfig{
			FilePath:      getEnv("TAXONOMY_FILE", ""),
			MinConfidence: getEnvAsFloat("TAXONOMY_MIN_CONFIDENCE", 15),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medical-timeline"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Env: getEnv("APP_ENV", "development"),
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
