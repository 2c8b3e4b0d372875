// Package metadata_test tests the analysis client and fallback policy.
package metadata_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func TestAnalyze_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, request *http.Request) {
			require.Equal(t, http.MethodPost, request.Method)
			require.Equal(t, "/v1/analyze", request.URL.Path)

			var req metadata.AnalyzeRequest

			err := json.NewDecoder(request.Body).Decode(&req)
			require.NoError(t, err)
			require.Equal(t, "A dark and stormy night.", req.Text)

			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(
				`{"mood":"suspense","genre":"thriller","intensity":9,"tempo":"fast"}`))
		}))
	defer server.Close()

	client := metadata.NewClient(server.URL, testTimeout)

	descriptor, err := client.Analyze(context.Background(), "A dark and stormy night.")
	require.NoError(t, err)

	assert.Equal(t, core.MoodSuspense, descriptor.Mood)
	assert.Equal(t, "thriller", descriptor.Genre)
	assert.Equal(t, 9, descriptor.Intensity)
	assert.Equal(t, core.TempoFast, descriptor.Tempo)
	require.NoError(t, descriptor.Validate(0))
}

func TestAnalyze_EmptyTextRejected(t *testing.T) {
	t.Parallel()

	client := metadata.NewClient("http://127.0.0.1:1", testTimeout)

	_, err := client.Analyze(context.Background(), "")
	require.ErrorIs(t, err, metadata.ErrTextEmpty)
}

func TestAnalyzeParagraphs_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(`{
				"mood":"mixed","genre":"fiction","intensity":5,"tempo":"medium",
				"paragraphMoods":[
					{"mood":"happy","genre":"adventure","intensity":4,"tempo":"medium"},
					{"mood":"sad","genre":"drama","intensity":7,"tempo":"slow"}
				]}`))
		}))
	defer server.Close()

	client := metadata.NewClient(server.URL, testTimeout)

	descriptors, err := client.AnalyzeParagraphs(
		context.Background(), []string{"Happy text", "Sad text"})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, core.MoodHappy, descriptors[0].Mood)
	assert.Equal(t, core.MoodSad, descriptors[1].Mood)
	assert.Equal(t, 7, descriptors[1].Intensity)
}

func TestAnalyzeParagraphs_CountMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(`{
				"mood":"mixed","genre":"fiction","intensity":5,"tempo":"medium",
				"paragraphMoods":[
					{"mood":"happy","genre":"adventure","intensity":4,"tempo":"medium"}
				]}`))
		}))
	defer server.Close()

	client := metadata.NewClient(server.URL, testTimeout)

	_, err := client.AnalyzeParagraphs(
		context.Background(), []string{"one", "two"})
	require.ErrorIs(t, err, core.ErrParagraphMoodCount)
}

func TestAnalyze_StructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusTooManyRequests)
			_, _ = writer.Write([]byte(`{"detail":"quota exceeded","error_code":"RATE_LIMIT"}`))
		}))
	defer server.Close()

	client := metadata.NewClient(server.URL, testTimeout)

	_, err := client.Analyze(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, err.Error(), "RATE_LIMIT")
}

func TestFallbackPolicy(t *testing.T) {
	t.Parallel()

	opening := metadata.FallbackFor(0)
	assert.Equal(t, core.MoodSuspense, opening.Mood)
	assert.Equal(t, "thriller", opening.Genre)
	assert.Equal(t, 8, opening.Intensity)

	rest := metadata.FallbackFor(1)
	assert.Equal(t, core.MoodHappy, rest.Mood)
	assert.Equal(t, "adventure", rest.Genre)
	assert.Equal(t, 5, rest.Intensity)

	assert.Equal(t, rest, metadata.FallbackFor(4))

	// The fallback is deterministic and always valid.
	require.NoError(t, opening.Validate(0))
	require.NoError(t, rest.Validate(0))
}
