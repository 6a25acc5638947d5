package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	os.Setenv("TYPESENSE_API_KEY", "test-key")
	defer func() {
		os.Unsetenv("TYPESENSE_URL")
		os.Unsetenv("TYPESENSE_API_KEY")
	}()

	// Load config
	cfg, err := Load()
	assert.NoError(t, err)

	// Verify Typesense config
	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("TYPESENSE_URL")
	os.Unsetenv("TYPESENSE_API_KEY")
	os.Unsetenv("INGEST_WORKERS")
	os.Unsetenv("RESOLVER_FUZZY_THRESHOLD")
	os.Unsetenv("TAXONOMY_MIN_CONFIDENCE")

	cfg, err := Load()
	assert.NoError(t, err)

	// Verify defaults
	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "xyz", cfg.Typesense.APIKey)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 60*time.Second, cfg.Ingest.ExtractionTimeout)
	assert.Equal(t, 0.85, cfg.Resolver.FuzzyThreshold)
	assert.Equal(t, 15.0, cfg.Taxonomy.MinConfidence)
	assert.Equal(t, "medical_timeline", cfg.Database.Database)
}

func TestLoad_IngestOverrides(t *testing.T) {
	os.Setenv("INGEST_WORKERS", "8")
	os.Setenv("INGEST_EXTRACTION_TIMEOUT", "90s")
	os.Setenv("RESOLVER_FUZZY_THRESHOLD", "0.9")
	defer func() {
		os.Unsetenv("INGEST_WORKERS")
		os.Unsetenv("INGEST_EXTRACTION_TIMEOUT")
		os.Unsetenv("RESOLVER_FUZZY_THRESHOLD")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.Equal(t, 90*time.Second, cfg.Ingest.ExtractionTimeout)
	assert.Equal(t, 0.9, cfg.Resolver.FuzzyThreshold)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Database: "timeline", SSLMode: "disable",
	}

	assert.Equal(t,
		"host=db port=5433 user=u password=p dbname=timeline sslmode=disable",
		cfg.DatabaseDSN())
}
