// Package synth_test tests the speech synthesis client.
package synth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/narration-service/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func TestSynthesize_Success(t *testing.T) {
	t.Parallel()

	audioPayload := []byte("fake mpeg frames")

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, request *http.Request) {
			require.Equal(t, http.MethodPost, request.Method)
			require.Equal(t, "/v1/generate/speech", request.URL.Path)
			require.Equal(t, "application/json", request.Header.Get("Content-Type"))
			require.Equal(t, "audio/mpeg", request.Header.Get("Accept"))

			var req synth.Request

			err := json.NewDecoder(request.Body).Decode(&req)
			require.NoError(t, err)
			require.Equal(t, "Once upon a time.", req.Text)
			require.Equal(t, "alloy", req.Voice)
			require.Equal(t, "en", req.Language)

			writer.Header().Set("Content-Type", "audio/mpeg")
			_, _ = writer.Write(audioPayload)
		}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	artifact, err := client.Synthesize(context.Background(), "Once upon a time.", "alloy")
	require.NoError(t, err)

	assert.Equal(t, audioPayload, artifact.Data)
	assert.Equal(t, "audio/mpeg", artifact.MIME)
}

func TestSynthesize_InputValidation(t *testing.T) {
	t.Parallel()

	client := synth.NewClient("http://127.0.0.1:1", testTimeout)

	_, err := client.Synthesize(context.Background(), "", "alloy")
	require.ErrorIs(t, err, synth.ErrTextEmpty)

	_, err = client.Synthesize(context.Background(), "text", "")
	require.ErrorIs(t, err, synth.ErrVoiceEmpty)
}

func TestSynthesize_EmptyAudioRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "audio/mpeg")
		}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "text", "alloy")
	require.ErrorIs(t, err, synth.ErrReceivedEmptyAudio)
}

func TestSynthesize_UnexpectedContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "text/html")
			_, _ = writer.Write([]byte("<html>not audio</html>"))
		}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "text", "alloy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestSynthesize_StructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte(`{"detail":"engine overloaded","error_code":"BUSY"}`))
		}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)

	_, err := client.Synthesize(context.Background(), "text", "alloy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine overloaded")
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path == "/health" {
				writer.WriteHeader(http.StatusOK)

				return
			}

			writer.WriteHeader(http.StatusNotFound)
		}))
	defer server.Close()

	client := synth.NewClient(server.URL, testTimeout)
	require.NoError(t, client.HealthCheck(context.Background()))
}
