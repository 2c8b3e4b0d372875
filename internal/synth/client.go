// Package synth provides the HTTP client for the standalone speech synthesis
// service. Synthesis failure is fatal for the narration run that requested
// it; no partial-text audiobooks are ever produced.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/narration-service/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// Default values.
const (
	defaultLanguage = "en"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio, got %s"
	errFmtServiceErrorWithCode  = "speech service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "speech service returned non-OK status: %s"
)

// Static errors.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrVoiceEmpty         = errors.New("voice cannot be empty")
	ErrReceivedEmptyAudio = errors.New("received empty audio data")
)

// Client is an HTTP client for the speech synthesis service. It encapsulates
// the HTTP configuration and provides speech generation and health checks.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Request defines the JSON payload structure for synthesis requests.
type Request struct {
	// Text contains the input text to convert to speech.
	Text string `json:"text"`

	// Voice selects the narration voice (e.g. "alloy").
	Voice string `json:"voice"`

	// Language specifies the target language code. Defaults to "en".
	Language string `json:"language"`
}

// errorResponse represents a structured error payload from the service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates and configures an HTTP client for the synthesis service.
// The baseURL should include the protocol and port; the timeout applies to
// all requests made by this client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends a generation request and returns the encoded narration
// audio. The response is MPEG audio unless the service declares another audio
// content type, which is carried through on the artifact.
func (c *Client) Synthesize(
	ctx context.Context,
	text, voice string,
) (core.Artifact, error) {
	if text == "" {
		return core.Artifact{}, ErrTextEmpty
	}

	if voice == "" {
		return core.Artifact{}, ErrVoiceEmpty
	}

	requestBody, err := json.Marshal(Request{
		Text:     text,
		Voice:    voice,
		Language: defaultLanguage,
	})
	if err != nil {
		return core.Artifact{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + apiGenerateSpeech

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.Artifact{}, fmt.Errorf(
			"failed to send request to speech service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Artifact{}, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, "audio/") {
		return core.Artifact{}, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return core.Artifact{}, ErrReceivedEmptyAudio
	}

	return core.Artifact{Data: audioData, MIME: contentType}, nil
}

// HealthCheck verifies that the synthesis service is running. Health checks
// are performed before processing a run to fail fast when the service is
// unavailable.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
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
