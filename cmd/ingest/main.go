package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vialsmoore/medtimeline/backend/internal/adapters/cache"
	"github.com/vialsmoore/medtimeline/backend/internal/adapters/database"
	"github.com/vialsmoore/medtimeline/backend/internal/adapters/providers/recognition"
	"github.com/vialsmoore/medtimeline/backend/internal/adapters/search"
	"github.com/vialsmoore/medtimeline/backend/internal/application/services"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	domainproviders "github.com/vialsmoore/medtimeline/backend/internal/domain/providers"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/ocr"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/redis"
	tsclient "github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/typesense"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/observability"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
	"github.com/vialsmoore/medtimeline/backend/pkg/config"
)

func main() {
	var inputDir string
	var workers int
	var mockOCR bool

	flag.StringVar(&inputDir, "input", "", "Directory of raw export records (overrides INGEST_INPUT_DIR)")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent workers (overrides INGEST_WORKERS)")
	flag.BoolVar(&mockOCR, "mock-ocr", false, "Use the mock text recognizer instead of the OCR service")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if inputDir != "" {
		cfg.Ingest.InputDir = inputDir
	}
	if workers > 0 {
		cfg.Ingest.Workers = workers
	}

	observability.InitLogger("medtimeline-ingest", cfg.Env)
	logger := *observability.GetLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var metrics *observability.Metrics
	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to set up OpenTelemetry")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Failed to shut down OpenTelemetry")
			}
		}()

		metrics, err = observability.InitMetrics()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize metrics")
		}
	}

	if cfg.Patient.FilePath == "" {
		logger.Fatal().Msg("PATIENT_FILE is required")
	}
	patient, err := entities.LoadPatient(cfg.Patient.FilePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load patient configuration")
	}

	tax, err := taxonomy.Load(cfg.Taxonomy.FilePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load taxonomy")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pgClient.Close()

	rdClient, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdClient.Close()

	searchClient, err := tsclient.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Typesense")
	}

	eventRepo := database.NewEventAdapter(pgClient)
	entityRepo := database.NewEntityAdapter(pgClient)
	cacheProvider := cache.NewRedisAdapter(rdClient)
	searchRepo := search.NewTypesenseAdapter(searchClient)

	if err := searchRepo.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize search schema")
	}

	var recognizer domainproviders.TextRecognizer
	if mockOCR {
		recognizer = recognition.NewMockProvider()
	} else {
		recognizer = ocr.NewHTTPClient(&cfg.OCR)
	}

	extractor := services.NewExtractionService(
		recognizer, cacheProvider, logger, metrics,
		cfg.Ingest.ExtractionTimeout, cfg.Ingest.CacheTTLSeconds)
	classifier := services.NewClassifierService(tax, cfg.Taxonomy.MinConfidence)
	resolver := services.NewEntityResolverService(entityRepo, eventRepo, logger, cfg.Resolver.FuzzyThreshold)
	builder := services.NewEventBuilderService(extractor, classifier, resolver, patient, logger)
	knowledge := services.NewKnowledgeService(eventRepo, searchRepo, logger)
	ingestion := services.NewIngestionService(builder, knowledge, logger, metrics, cfg.Ingest.Workers)

	records, err := loadRecords(cfg.Ingest.InputDir)
	if err != nil {
		logger.Fatal().Err(err).Str("input_dir", cfg.Ingest.InputDir).Msg("Failed to load raw records")
	}
	if len(records) == 0 {
		logger.Warn().Str("input_dir", cfg.Ingest.InputDir).Msg("No records to ingest")
		return
	}

	logger.Info().
		Int("records", len(records)).
		Int("workers", cfg.Ingest.Workers).
		Msg("Starting ingestion")

	start := time.Now()
	summary, err := ingestion.IngestBatch(ctx, records)
	if err != nil {
		logger.Error().Err(err).Msg("Ingestion aborted")
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Ingestion complete")

	for _, failure := range summary.Failures {
		logger.Warn().
			Str("source_id", failure.SourceID).
			Str("title", failure.Title).
			Str("reason", failure.Reason).
			Msg("Record failed")
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// loadRecords reads raw export records from every .json file in the input
// directory. A file may hold a single record or an array of records.
func loadRecords(dir string) ([]*entities.RawRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	records := []*entities.RawRecord{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var batch []*entities.RawRecord
		if err := json.Unmarshal(data, &batch); err != nil {
			record := &entities.RawRecord{}
			if err := json.Unmarshal(data, record); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			batch = []*entities.RawRecord{record}
		}

		for _, record := range batch {
			if record.SourceFile == "" {
				record.SourceFile = entry.Name()
			}
			records = append(records, record)
		}
	}

	return records, nil
}
