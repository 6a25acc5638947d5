package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Metrics holds the ingestion pipeline metrics
type Metrics struct {
	RecordsProcessed   metric.Int64Counter
	RecordsFailed      metric.Int64Counter
	ExtractionDuration metric.Float64Histogram
	ExtractionFailed   metric.Int64Counter
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
}

// Setup initializes OpenTelemetry trace and metric providers
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set up metric exporter
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, err
	}

	// Shutdown function
	shutdown := func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
		return meterProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes the ingestion pipeline metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/vialsmoore/medtimeline/backend")

	recordsProcessed, err := meter.Int64Counter(
		"ingest.records.processed",
		metric.WithDescription("Number of raw records ingested"),
	)
	if err != nil {
		return nil, err
	}

	recordsFailed, err := meter.Int64Counter(
		"ingest.records.failed",
		metric.WithDescription("Number of raw records that failed to build"),
	)
	if err != nil {
		return nil, err
	}

	extractionDuration, err := meter.Float64Histogram(
		"ingest.extraction.duration",
		metric.WithDescription("Attachment text extraction duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	extractionFailed, err := meter.Int64Counter(
		"ingest.extraction.failed",
		metric.WithDescription("Number of failed attachment extractions"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"ingest.extraction.cache.hits",
		metric.WithDescription("Number of extraction cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"ingest.extraction.cache.misses",
		metric.WithDescription("Number of extraction cache misses"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RecordsProcessed:   recordsProcessed,
		RecordsFailed:      recordsFailed,
		ExtractionDuration: extractionDuration,
		ExtractionFailed:   extractionFailed,
		CacheHitCount:      cacheHitCount,
		CacheMissCount:     cacheMissCount,
	}, nil
}
