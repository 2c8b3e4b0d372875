// Package worker_test tests the NATS worker for the narration service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/pipeline"
	"github.com/book-expert/narration-service/internal/worker"
	"github.com/google/uuid"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockRun = errors.New("mock run error")

// mockService is a mock implementation of the pipeline service.
type mockService struct {
	runShouldFail bool
	receivedReq   pipeline.Request
	returnedURL   string
}

func (m *mockService) Run(
	_ context.Context,
	req pipeline.Request,
) (pipeline.Result, error) {
	if m.runShouldFail {
		return pipeline.Result{}, errMockRun
	}

	m.receivedReq = req

	return pipeline.Result{
		URL:     m.returnedURL,
		Timings: nil,
		Diagnostics: pipeline.Diagnostics{
			FallbackMetadata:  nil,
			MissingBackground: nil,
		},
	}, nil
}

func (m *mockService) RunParagraph(
	_ context.Context,
	_ pipeline.ParagraphRequest,
) (pipeline.ParagraphResult, error) {
	return pipeline.ParagraphResult{}, errMockRun
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		server.Shutdown()
		natsConnection.Close()
	}

	return natsConnection, cleanup
}

func setupTest(t *testing.T, service *mockService) (
	context.CancelFunc,
	chan error,
	*nats.Conn,
) {
	t.Helper()

	natsConnection, natsCleanup := createTestNatsClient(t)
	t.Cleanup(natsCleanup)

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	workerInstance := worker.NewNatsWorker(
		natsConnection, "narration.jobs", service, time.Minute, testLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	return cancel, errChan, natsConnection
}

func testHeader() events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     "",
		TenantID:   "",
	}
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runShouldFail: false,
		receivedReq:   pipeline.Request{},
		returnedURL:   "https://storage.example.com/v0/b/narrations/o/a.wav?alt=media&token=t",
	}

	cancel, errChan, natsConnection := setupTest(t, service)
	defer cancel()

	testEvent := &worker.NarrationRequestedEvent{
		Header:    testHeader(),
		BookID:    "book-1",
		EpisodeID: "",
		Text:      "Some book text to narrate.",
		Options:   core.DefaultNarrationOptions(),
	}
	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("narration.jobs", eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var replyEvent worker.NarrationReadyEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, "book-1", service.receivedReq.BookID)
	assert.Equal(t, "Some book text to narrate.", service.receivedReq.Text)

	assert.Equal(t, service.returnedURL, replyEvent.URL)
	assert.Equal(t, testEvent.Header.WorkflowID, replyEvent.Header.WorkflowID)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr, "worker.Run should not error on graceful shutdown")
}

func TestMessageHandler_RunFailureRepliesWithError(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runShouldFail: true,
		receivedReq:   pipeline.Request{},
		returnedURL:   "",
	}

	cancel, errChan, natsConnection := setupTest(t, service)
	defer cancel()

	testEvent := &worker.NarrationRequestedEvent{
		Header:    testHeader(),
		BookID:    "book-1",
		EpisodeID: "",
		Text:      "Some text.",
		Options:   core.DefaultNarrationOptions(),
	}
	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("narration.jobs", eventData, 5*time.Second)
	require.NoError(t, err)

	var replyEvent worker.NarrationFailedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, "book-1", replyEvent.BookID)
	assert.Contains(t, replyEvent.Error, "mock run error")

	cancel()
	<-errChan
}

func TestMessageHandler_MalformedEventIsDropped(t *testing.T) {
	t.Parallel()

	service := &mockService{
		runShouldFail: false,
		receivedReq:   pipeline.Request{},
		returnedURL:   "https://storage.example.com/a.wav",
	}

	cancel, errChan, natsConnection := setupTest(t, service)
	defer cancel()

	_, err := natsConnection.Request("narration.jobs", []byte("{not json"), time.Second)
	require.Error(t, err, "malformed events get no reply")

	assert.Empty(t, service.receivedReq.BookID)

	cancel()
	<-errChan
}
