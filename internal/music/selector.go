package music

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/book-expert/narration-service/internal/core"
)

// SelectionMode controls how a track is chosen among catalog candidates.
type SelectionMode int

const (
	// BestMatch deterministically picks the highest-scoring track, first on
	// ties.
	BestMatch SelectionMode = iota
	// Randomized picks uniformly among the equally-best-scoring tracks, so a
	// recurring mood does not always reuse the same track.
	Randomized
)

// Track scoring weights.
const (
	scoreMoodMatch  = 2
	scoreGenreMatch = 1
)

// TrackLister lists catalog tracks for a mood. *Catalog implements it.
type TrackLister interface {
	TracksForMood(ctx context.Context, mood core.Mood) ([]core.MusicTrack, error)
	Fetch(ctx context.Context, track core.MusicTrack) ([]byte, error)
}

// Selector maps a metadata descriptor to one background music track. It
// implements core.MusicSource.
type Selector struct {
	catalog TrackLister
	mode    SelectionMode
	rng     *rand.Rand
}

// NewSelector creates a selector over the given catalog. The rng is only
// consulted in Randomized mode and may be nil otherwise.
func NewSelector(catalog TrackLister, mode SelectionMode, rng *rand.Rand) *Selector {
	return &Selector{
		catalog: catalog,
		mode:    mode,
		rng:     rng,
	}
}

// TrackFor selects one track matching the descriptor.
func (s *Selector) TrackFor(
	ctx context.Context,
	metadata core.ContentMetadata,
) (core.MusicTrack, error) {
	tracks, err := s.catalog.TracksForMood(ctx, metadata.Mood)
	if err != nil {
		return core.MusicTrack{}, fmt.Errorf(
			"failed to list tracks for mood %q: %w", metadata.Mood, err)
	}

	best := bestCandidates(tracks, metadata)

	if s.mode == Randomized && s.rng != nil && len(best) > 1 {
		return best[s.rng.Intn(len(best))], nil
	}

	return best[0], nil
}

// TracksForParagraphs selects one track per paragraph descriptor, in order.
func (s *Selector) TracksForParagraphs(
	ctx context.Context,
	descriptors []core.ContentMetadata,
) ([]core.MusicTrack, error) {
	tracks := make([]core.MusicTrack, 0, len(descriptors))

	for i, descriptor := range descriptors {
		track, err := s.TrackFor(ctx, descriptor)
		if err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i+1, err)
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

// Fetch downloads the encoded audio for a selected track.
func (s *Selector) Fetch(ctx context.Context, track core.MusicTrack) ([]byte, error) {
	return s.catalog.Fetch(ctx, track)
}

// bestCandidates returns all tracks sharing the maximum match score, in
// catalog order. The input is never empty.
func bestCandidates(
	tracks []core.MusicTrack,
	metadata core.ContentMetadata,
) []core.MusicTrack {
	bestScore := -1

	var best []core.MusicTrack

	for _, track := range tracks {
		score := scoreTrack(track, metadata)

		switch {
		case score > bestScore:
			bestScore = score
			best = []core.MusicTrack{track}
		case score == bestScore:
			best = append(best, track)
		}
	}

	return best
}

func scoreTrack(track core.MusicTrack, metadata core.ContentMetadata) int {
	score := 0

	if core.Mood(track.Mood) == metadata.Mood {
		score += scoreMoodMatch
	}

	if metadata.Genre != "" &&
		strings.Contains(strings.ToLower(track.Filename), strings.ToLower(metadata.Genre)) {
		score += scoreGenreMatch
	}

	return score
}
