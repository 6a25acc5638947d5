// Package ocr is the HTTP client for the external text-recognition
// service, which wraps the OCR engine and the PDF rasterizer. Both are
// black boxes to this backend: bytes go in, text or page images come out.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/providers"
	"github.com/vialsmoore/medtimeline/backend/pkg/config"
)

// HTTPClient talks to the recognition service over HTTP
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Ensure HTTPClient implements the TextRecognizer provider interface
var _ providers.TextRecognizer = (*HTTPClient)(nil)

type recognizeResponse struct {
	Text string `json:"text"`
}

type rasterizeResponse struct {
	Pages [][]byte `json:"pages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPClient creates a new recognition service client
func NewHTTPClient(cfg *config.OCRConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RecognizeImage extracts text from a single image
func (c *HTTPClient) RecognizeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	body, err := c.post(ctx, "/v1/recognize", image, mimeType)
	if err != nil {
		return "", err
	}

	var resp recognizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode recognize response: %w", err)
	}
	return resp.Text, nil
}

// RasterizePDF renders a PDF into one image per page, in page order
func (c *HTTPClient) RasterizePDF(ctx context.Context, pdf []byte) ([][]byte, error) {
	body, err := c.post(ctx, "/v1/rasterize", pdf, "application/pdf")
	if err != nil {
		return nil, err
	}

	var resp rasterizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode rasterize response: %w", err)
	}
	return resp.Pages, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognition service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recognition response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("recognition service returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("recognition service returned %d", resp.StatusCode)
	}

	return body, nil
}
