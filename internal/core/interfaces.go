// Package core defines the collaborator contracts and shared domain types for
// the narration service.
package core

import "context"

// ProgressFunc reports upload progress as a monotonic percentage in [0, 100].
type ProgressFunc func(percent int)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	// Upload saves an object under the given key. onProgress may be nil;
	// when set it receives monotonically increasing percentages.
	Upload(ctx context.Context, key string, data []byte, onProgress ProgressFunc) error
}

// URLIssuer resolves a native storage location into a browser-playable HTTPS
// download URL. Implementations own the mapping from bucket/object to the
// public gateway form.
type URLIssuer interface {
	IssueURL(ctx context.Context, bucket, object string) (string, error)
}

// MetadataExtractor derives mood/genre/intensity/tempo descriptors from text.
// Callers must substitute a deterministic fallback on error; extraction
// failure never aborts a narration run.
type MetadataExtractor interface {
	Analyze(ctx context.Context, text string) (ContentMetadata, error)
	AnalyzeParagraphs(ctx context.Context, paragraphs []string) ([]ContentMetadata, error)
}

// SpeechSynthesizer converts one text segment into encoded narration audio.
// Synthesis failure is fatal for the run that requested it.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Artifact, error)
}

// MusicSource selects and fetches background music for a metadata descriptor.
// Any error from a MusicSource is absorbed by the caller; narration proceeds
// without a background bed.
type MusicSource interface {
	TrackFor(ctx context.Context, metadata ContentMetadata) (MusicTrack, error)
	Fetch(ctx context.Context, track MusicTrack) ([]byte, error)
}

// DocumentStore persists the canonical narration URL on a book or episode
// document. Each successful run invokes exactly one of these methods once.
type DocumentStore interface {
	UpdateBookNarrationURL(ctx context.Context, bookID, url string) error
	UpdateEpisodeNarrationURL(ctx context.Context, bookID, episodeID, url string) error
}
