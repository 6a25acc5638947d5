package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/providers"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/observability"
)

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
)

// ExtractionService turns attachment bytes into searchable text. Image and
// PDF attachments go through the external recognition service; docx and
// plain text are handled locally. Extracted text is cached by content
// fingerprint so re-ingesting a notebook does not re-run recognition.
type ExtractionService struct {
	recognizer providers.TextRecognizer
	cache      providers.CacheProvider
	logger     zerolog.Logger
	metrics    *observability.Metrics
	timeout    time.Duration
	cacheTTL   int
}

// NewExtractionService creates a new extraction service
func NewExtractionService(
	recognizer providers.TextRecognizer,
	cache providers.CacheProvider,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	timeout time.Duration,
	cacheTTLSeconds int,
) *ExtractionService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExtractionService{
		recognizer: recognizer,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
		timeout:    timeout,
		cacheTTL:   cacheTTLSeconds,
	}
}

// Extract produces the attachment record for one raw attachment. Extraction
// failure never returns an error: the attachment comes back with a failed
// status and a reason, and the surrounding event still ingests.
func (s *ExtractionService) Extract(ctx context.Context, raw entities.RawAttachment) entities.Attachment {
	start := time.Now()

	attachment := entities.Attachment{
		ID:          uuid.NewString(),
		FileName:    raw.FileName,
		MimeType:    raw.MimeType,
		Fingerprint: fingerprint(raw.Data),
		Status:      entities.ExtractionPending,
	}

	if cached, ok := s.cachedText(ctx, attachment.Fingerprint); ok {
		if s.metrics != nil {
			s.metrics.CacheHitCount.Add(ctx, 1)
		}
		attachment.Text = cached
		attachment.Status = entities.ExtractionOK
		return attachment
	}
	if s.metrics != nil {
		s.metrics.CacheMissCount.Add(ctx, 1)
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.extractText(extractCtx, raw)
	if s.metrics != nil {
		s.metrics.ExtractionDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.ExtractionFailed.Add(ctx, 1)
		}
		s.logger.Warn().
			Err(err).
			Str("file_name", raw.FileName).
			Str("mime_type", raw.MimeType).
			Msg("attachment extraction failed")
		attachment.Status = entities.ExtractionFailed
		attachment.FailureReason = err.Error()
		return attachment
	}

	attachment.Text = text
	attachment.Status = entities.ExtractionOK
	s.storeText(ctx, attachment.Fingerprint, text)
	return attachment
}

func (s *ExtractionService) extractText(ctx context.Context, raw entities.RawAttachment) (string, error) {
	switch {
	case strings.HasPrefix(raw.MimeType, "image/"):
		return s.recognizer.RecognizeImage(ctx, raw.Data, raw.MimeType)
	case raw.MimeType == mimePDF:
		return s.extractPDF(ctx, raw.Data)
	case raw.MimeType == mimeDocx:
		return extractDocxText(raw.Data)
	case strings.HasPrefix(raw.MimeType, "text/"):
		return string(raw.Data), nil
	default:
		return "", fmt.Errorf("unsupported attachment type %s", raw.MimeType)
	}
}

// extractPDF rasterizes the document and recognizes each page in order,
// joining page texts with explicit page markers
func (s *ExtractionService) extractPDF(ctx context.Context, pdf []byte) (string, error) {
	pages, err := s.recognizer.RasterizePDF(ctx, pdf)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize pdf: %w", err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdf rasterized to zero pages")
	}

	var b strings.Builder
	for i, page := range pages {
		text, err := s.recognizer.RecognizeImage(ctx, page, "image/png")
		if err != nil {
			return "", fmt.Errorf("failed to recognize pdf page %d: %w", i+1, err)
		}
		if i > 0 {
			b.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", i+1))
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func (s *ExtractionService) cachedText(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	data, err := s.cache.Get(ctx, cacheKey(key))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (s *ExtractionService) storeText(ctx context.Context, key, text string) {
	if s.cache == nil || text == "" {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(key), []byte(text), s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache extracted text")
	}
}

func cacheKey(fingerprint string) string {
	return "extraction:" + fingerprint
}

// fingerprint identifies attachment content independent of file name, so
// the same scan attached to two notes extracts once
func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
