// Package worker provides a NATS worker that processes narration jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/pipeline"
	"github.com/nats-io/nats.go"
)

const defaultHandleTimeout = 5 * time.Minute

// NatsWorker listens for narration jobs on a NATS subject and runs them
// through the pipeline.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	service        pipeline.Service
	handleTimeout  time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. handleTimeout bounds
// one job end to end; values of zero or below fall back to the default.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	service pipeline.Service,
	handleTimeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	if handleTimeout <= 0 {
		handleTimeout = defaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		service:        service,
		handleTimeout:  handleTimeout,
		log:            log,
	}
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.handleTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse narration event: %v", err)

		return
	}

	result, runErr := w.service.Run(ctx, pipeline.Request{
		BookID:           event.BookID,
		EpisodeID:        event.EpisodeID,
		Text:             event.Text,
		Options:          event.Options,
		OnState:          nil,
		OnUploadProgress: nil,
	})
	if runErr != nil {
		w.log.Error("Narration failed for workflow %s: %v",
			event.Header.WorkflowID, runErr)
		w.replyFailed(msg, event, runErr)

		return
	}

	reply := &NarrationReadyEvent{
		Header:    event.Header,
		BookID:    event.BookID,
		EpisodeID: event.EpisodeID,
		URL:       result.URL,
	}

	err = w.publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

func (w *NatsWorker) replyFailed(
	msg *nats.Msg,
	event *NarrationRequestedEvent,
	runErr error,
) {
	reply := &NarrationFailedEvent{
		Header: event.Header,
		BookID: event.BookID,
		Error:  runErr.Error(),
	}

	err := w.publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish failure reply for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

// publishReply marshals and responds on the message's reply subject.
func (w *NatsWorker) publishReply(msg *nats.Msg, reply any) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*NarrationRequestedEvent, error) {
	var event NarrationRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}
