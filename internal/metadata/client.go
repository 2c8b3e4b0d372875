// Package metadata provides the client for the content analysis service and
// the deterministic fallback policy applied when analysis fails.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/narration-service/internal/core"
)

// API endpoints and paths.
const (
	apiAnalyze = "/v1/analyze"
	apiHealth  = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "metadata service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "metadata service returned non-OK status: %s"
)

// Static errors.
var (
	ErrTextEmpty    = errors.New("text cannot be empty")
	ErrNoParagraphs = errors.New("paragraphs cannot be empty")
)

// Client is an HTTP client for the standalone content analysis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// AnalyzeRequest defines the JSON payload for analysis requests. Exactly one
// of Text or Paragraphs is set; the service analyzes the whole text or each
// paragraph independently.
type AnalyzeRequest struct {
	Text       string   `json:"text,omitempty"`
	Paragraphs []string `json:"paragraphs,omitempty"`
}

// analyzeResponse mirrors the service's descriptor payload.
type analyzeResponse struct {
	Mood           string            `json:"mood"`
	Genre          string            `json:"genre"`
	Intensity      int               `json:"intensity"`
	Tempo          string            `json:"tempo"`
	ParagraphMoods []analyzeResponse `json:"paragraphMoods,omitempty"`
}

// errorResponse represents a structured error payload from the service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates an HTTP client for the analysis service. The baseURL
// should include protocol and port; the timeout applies to every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Analyze derives a descriptor for the whole text.
func (c *Client) Analyze(ctx context.Context, text string) (core.ContentMetadata, error) {
	if text == "" {
		return core.ContentMetadata{}, ErrTextEmpty
	}

	resp, err := c.postAnalyze(ctx, AnalyzeRequest{Text: text, Paragraphs: nil})
	if err != nil {
		return core.ContentMetadata{}, err
	}

	return toMetadata(*resp), nil
}

// AnalyzeParagraphs derives one descriptor per paragraph, in source order.
// The result length always equals len(paragraphs).
func (c *Client) AnalyzeParagraphs(
	ctx context.Context,
	paragraphs []string,
) ([]core.ContentMetadata, error) {
	if len(paragraphs) == 0 {
		return nil, ErrNoParagraphs
	}

	resp, err := c.postAnalyze(ctx, AnalyzeRequest{Text: "", Paragraphs: paragraphs})
	if err != nil {
		return nil, err
	}

	if len(resp.ParagraphMoods) != len(paragraphs) {
		return nil, fmt.Errorf("%w: got %d moods for %d paragraphs",
			core.ErrParagraphMoodCount, len(resp.ParagraphMoods), len(paragraphs))
	}

	descriptors := make([]core.ContentMetadata, 0, len(resp.ParagraphMoods))
	for _, mood := range resp.ParagraphMoods {
		descriptors = append(descriptors, toMetadata(mood))
	}

	return descriptors, nil
}

// HealthCheck verifies that the analysis service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func (c *Client) postAnalyze(
	ctx context.Context,
	req AnalyzeRequest,
) (*analyzeResponse, error) {
	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + apiAnalyze

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to metadata service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var payload analyzeResponse

	err = json.NewDecoder(resp.Body).Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}

	return &payload, nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service, falling back to the bare status when decoding fails.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status)
}

func toMetadata(resp analyzeResponse) core.ContentMetadata {
	return core.ContentMetadata{
		Mood:           core.Mood(resp.Mood),
		Genre:          resp.Genre,
		Intensity:      resp.Intensity,
		Tempo:          core.Tempo(resp.Tempo),
		ParagraphMoods: nil,
	}
}
