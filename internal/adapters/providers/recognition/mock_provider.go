package recognition

import (
	"context"
	"fmt"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/providers"
)

// MockProvider is a TextRecognizer for development and tests. It returns
// canned text instead of calling the external recognition service.
type MockProvider struct {
	// Texts maps an optional label (file name or fingerprint) to canned
	// output; Fallback is returned when no entry matches
	Texts    map[string]string
	Fallback string
	// PagesPerPDF controls how many fake page images RasterizePDF yields
	PagesPerPDF int
	// Err, when set, is returned by every call
	Err error
}

// Ensure MockProvider implements the TextRecognizer provider interface
var _ providers.TextRecognizer = (*MockProvider)(nil)

// NewMockProvider creates a mock recognizer with a generic fallback text
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Fallback:    "mock recognized text",
		PagesPerPDF: 1,
	}
}

// RecognizeImage returns canned text for the image
func (p *MockProvider) RecognizeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	if text, ok := p.Texts[string(image)]; ok {
		return text, nil
	}
	return p.Fallback, nil
}

// RasterizePDF returns PagesPerPDF fake page images
func (p *MockProvider) RasterizePDF(ctx context.Context, pdf []byte) ([][]byte, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	pages := make([][]byte, 0, p.PagesPerPDF)
	for i := 0; i < p.PagesPerPDF; i++ {
		pages = append(pages, []byte(fmt.Sprintf("%s:page-%d", pdf, i+1)))
	}
	return pages, nil
}
