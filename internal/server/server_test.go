// Package server_test tests the HTTP API.
package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/pipeline"
	"github.com/book-expert/narration-service/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSynthesisUnavailable = errors.New("synthesis service unavailable")

type mockService struct {
	runFn          func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	runParagraphFn func(ctx context.Context, req pipeline.ParagraphRequest) (pipeline.ParagraphResult, error)
}

func (m *mockService) Run(
	ctx context.Context,
	req pipeline.Request,
) (pipeline.Result, error) {
	return m.runFn(ctx, req)
}

func (m *mockService) RunParagraph(
	ctx context.Context,
	req pipeline.ParagraphRequest,
) (pipeline.ParagraphResult, error) {
	return m.runParagraphFn(ctx, req)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func newTestServer(t *testing.T, service pipeline.Service) *httptest.Server {
	t.Helper()

	testServer := httptest.NewServer(server.New(service, testLogger(t)).Handler())
	t.Cleanup(testServer.Close)

	return testServer
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	request, err := http.NewRequestWithContext(
		context.Background(), http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })

	return response
}

func TestHandleNarration_Success(t *testing.T) {
	t.Parallel()

	var captured pipeline.Request

	service := &mockService{
		runFn: func(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
			captured = req

			return pipeline.Result{
				URL: "https://storage.example.com/v0/b/narrations/o/a.wav?alt=media&token=t",
				Timings: []core.ParagraphTiming{
					{Start: 0, Duration: 1.5},
				},
				Diagnostics: pipeline.Diagnostics{
					FallbackMetadata:  nil,
					MissingBackground: nil,
				},
			}, nil
		},
		runParagraphFn: nil,
	}

	testServer := newTestServer(t, service)

	response := postJSON(t, testServer.URL+"/narration", server.NarrationRequest{
		Text:      "Some book text.",
		BookID:    "book-1",
		EpisodeID: "",
		Options:   core.NarrationOptions{Voice: "nova"},
	})

	require.Equal(t, http.StatusOK, response.StatusCode)

	var body server.NarrationResponse

	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	assert.Contains(t, body.URL, "alt=media")
	assert.Len(t, body.Timings, 1)
	assert.Nil(t, body.Details)

	assert.Equal(t, "book-1", captured.BookID)
	assert.Equal(t, "Some book text.", captured.Text)
	assert.Equal(t, "nova", captured.Options.Voice)
}

func TestHandleNarration_ValidationErrorIs400(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runFn: func(_ context.Context, _ pipeline.Request) (pipeline.Result, error) {
			return pipeline.Result{}, pipeline.ErrTextEmpty
		},
		runParagraphFn: nil,
	}

	testServer := newTestServer(t, service)

	response := postJSON(t, testServer.URL+"/narration", server.NarrationRequest{
		Text:      "",
		BookID:    "book-1",
		EpisodeID: "",
		Options:   core.NarrationOptions{},
	})

	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestHandleNarration_PipelineFailureIs500(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runFn: func(_ context.Context, _ pipeline.Request) (pipeline.Result, error) {
			return pipeline.Result{}, errSynthesisUnavailable
		},
		runParagraphFn: nil,
	}

	testServer := newTestServer(t, service)

	response := postJSON(t, testServer.URL+"/narration", server.NarrationRequest{
		Text:      "Some text.",
		BookID:    "book-1",
		EpisodeID: "",
		Options:   core.NarrationOptions{},
	})

	require.Equal(t, http.StatusInternalServerError, response.StatusCode)

	var body map[string]string

	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	assert.Contains(t, body["error"], "synthesis service unavailable")
}

func TestHandleNarration_MalformedBodyIs400(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runFn: func(_ context.Context, _ pipeline.Request) (pipeline.Result, error) {
			t.Error("pipeline must not run for malformed bodies")

			return pipeline.Result{}, nil
		},
		runParagraphFn: nil,
	}

	testServer := newTestServer(t, service)

	request, err := http.NewRequestWithContext(context.Background(),
		http.MethodPost, testServer.URL+"/narration",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)

	defer func() { _ = response.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestHandleParagraph_ReturnsMetadata(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runFn: nil,
		runParagraphFn: func(_ context.Context, req pipeline.ParagraphRequest) (pipeline.ParagraphResult, error) {
			assert.Equal(t, 2, req.ParagraphIndex)

			return pipeline.ParagraphResult{
				URL: "https://storage.example.com/p.wav",
				Metadata: core.ContentMetadata{
					Mood:           core.MoodHappy,
					Genre:          "adventure",
					Intensity:      5,
					Tempo:          core.TempoMedium,
					ParagraphMoods: nil,
				},
				UsedFallback: true,
			}, nil
		},
	}

	testServer := newTestServer(t, service)

	response := postJSON(t, testServer.URL+"/narration/paragraph",
		server.ParagraphNarrationRequest{
			Text:           "A paragraph.",
			BookID:         "book-1",
			ParagraphIndex: 2,
			Options:        core.NarrationOptions{},
		})

	require.Equal(t, http.StatusOK, response.StatusCode)

	var body server.ParagraphNarrationResponse

	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	assert.Equal(t, "https://storage.example.com/p.wav", body.URL)
	assert.Equal(t, "happy", body.Metadata.Mood)
	assert.Equal(t, 5, body.Metadata.Intensity)
	assert.True(t, body.UsedFallback)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	service := &mockService{runFn: nil, runParagraphFn: nil}
	testServer := newTestServer(t, service)

	request, err := http.NewRequestWithContext(context.Background(),
		http.MethodGet, testServer.URL+"/healthz", nil)
	require.NoError(t, err)

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)

	defer func() { _ = response.Body.Close() }()

	assert.Equal(t, http.StatusOK, response.StatusCode)
}
