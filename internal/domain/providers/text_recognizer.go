package providers

import (
	"context"
)

// TextRecognizer defines the interface to the external OCR engine and PDF
// rasterizer. Both are consumed as black boxes; the pipeline only routes
// bytes in and text out.
type TextRecognizer interface {
	// RecognizeImage extracts text from a single image
	RecognizeImage(ctx context.Context, image []byte, mimeType string) (string, error)

	// RasterizePDF renders a PDF into one image per page, in page order
	RasterizePDF(ctx context.Context, pdf []byte) ([][]byte, error)
}
