package worker

import (
	"github.com/book-expert/events"
	"github.com/book-expert/narration-service/internal/core"
)

// NarrationRequestedEvent asks the service to produce a narration for a book
// or a single episode. Text is carried inline; book text sizes are bounded
// well below NATS message limits by the upstream splitter.
type NarrationRequestedEvent struct {
	Header    events.EventHeader    `json:"header"`
	BookID    string                `json:"book_id"`
	EpisodeID string                `json:"episode_id,omitempty"`
	Text      string                `json:"text"`
	Options   core.NarrationOptions `json:"options"`
}

// NarrationReadyEvent is the reply published when production succeeds.
type NarrationReadyEvent struct {
	Header    events.EventHeader `json:"header"`
	BookID    string             `json:"book_id"`
	EpisodeID string             `json:"episode_id,omitempty"`
	URL       string             `json:"url"`
}

// NarrationFailedEvent is the reply published when production fails.
type NarrationFailedEvent struct {
	Header events.EventHeader `json:"header"`
	BookID string             `json:"book_id"`
	Error  string             `json:"error"`
}
