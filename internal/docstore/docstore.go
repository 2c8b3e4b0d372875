// Package docstore persists book and episode documents, including the
// canonical narration URL written once per successful production run.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Static errors.
var (
	ErrBookIDEmpty    = errors.New("book id cannot be empty")
	ErrEpisodeIDEmpty = errors.New("episode id cannot be empty")
	ErrURLEmpty       = errors.New("narration URL cannot be empty")
)

// BookDocument is the persisted shape of a book's narration state. Fields
// outside narration concerns live in other services' documents.
type BookDocument struct {
	BookID               string            `json:"book_id"`
	NarrationURL         string            `json:"narration_url,omitempty"`
	EpisodeNarrationURLs map[string]string `json:"episode_narration_urls,omitempty"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// KVDocumentStore implements core.DocumentStore on a NATS JetStream
// key-value bucket, one entry per book.
type KVDocumentStore struct {
	kv nats.KeyValue
}

// New binds to the document bucket, creating it when absent.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*KVDocumentStore, error) {
	kv, err := jetstreamContext.KeyValue(bucketName)
	if err != nil {
		if !errors.Is(err, nats.ErrBucketNotFound) {
			return nil, fmt.Errorf(
				"failed to bind to document bucket '%s': %w", bucketName, err)
		}

		kv, err = jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucketName,
			Description: fmt.Sprintf("Documents for the %s bucket.", bucketName),
		})
		if err != nil {
			return nil, fmt.Errorf(
				"failed to create document bucket '%s': %w", bucketName, err)
		}
	}

	return &KVDocumentStore{kv: kv}, nil
}

// UpdateBookNarrationURL sets the whole-book narration URL.
func (s *KVDocumentStore) UpdateBookNarrationURL(
	_ context.Context,
	bookID, url string,
) error {
	if err := validateIDs(bookID, url); err != nil {
		return err
	}

	return s.update(bookID, func(doc *BookDocument) {
		doc.NarrationURL = url
	})
}

// UpdateEpisodeNarrationURL sets one episode's narration URL without
// touching the whole-book URL.
func (s *KVDocumentStore) UpdateEpisodeNarrationURL(
	_ context.Context,
	bookID, episodeID, url string,
) error {
	if err := validateIDs(bookID, url); err != nil {
		return err
	}

	if episodeID == "" {
		return ErrEpisodeIDEmpty
	}

	return s.update(bookID, func(doc *BookDocument) {
		if doc.EpisodeNarrationURLs == nil {
			doc.EpisodeNarrationURLs = make(map[string]string)
		}

		doc.EpisodeNarrationURLs[episodeID] = url
	})
}

// Get fetches a book document.
func (s *KVDocumentStore) Get(_ context.Context, bookID string) (BookDocument, error) {
	if bookID == "" {
		return BookDocument{}, ErrBookIDEmpty
	}

	entry, err := s.kv.Get(bookID)
	if err != nil {
		return BookDocument{}, fmt.Errorf(
			"failed to get document '%s': %w", bookID, err)
	}

	var doc BookDocument

	err = json.Unmarshal(entry.Value(), &doc)
	if err != nil {
		return BookDocument{}, fmt.Errorf(
			"failed to decode document '%s': %w", bookID, err)
	}

	return doc, nil
}

// update reads, mutates, and rewrites a document, creating it when absent.
func (s *KVDocumentStore) update(bookID string, mutate func(*BookDocument)) error {
	doc := BookDocument{
		BookID:               bookID,
		NarrationURL:         "",
		EpisodeNarrationURLs: nil,
		UpdatedAt:            time.Time{},
	}

	entry, err := s.kv.Get(bookID)
	if err == nil {
		decodeErr := json.Unmarshal(entry.Value(), &doc)
		if decodeErr != nil {
			return fmt.Errorf(
				"failed to decode document '%s': %w", bookID, decodeErr)
		}
	} else if !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to get document '%s': %w", bookID, err)
	}

	mutate(&doc)
	doc.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document '%s': %w", bookID, err)
	}

	_, err = s.kv.Put(bookID, payload)
	if err != nil {
		return fmt.Errorf("failed to put document '%s': %w", bookID, err)
	}

	return nil
}

func validateIDs(bookID, url string) error {
	if bookID == "" {
		return ErrBookIDEmpty
	}

	if url == "" {
		return ErrURLEmpty
	}

	return nil
}
