package core

import (
	"errors"
	"fmt"
	"time"
)

// Mood classifies the emotional tone of a text or paragraph.
type Mood string

// Known mood values. The metadata service may return values outside this set;
// they are carried through as-is and only affect music selection scoring.
const (
	MoodHappy    Mood = "happy"
	MoodSuspense Mood = "suspense"
	MoodSad      Mood = "sad"
	MoodMixed    Mood = "mixed"
	MoodUnknown  Mood = "unknown"
)

// Tempo classifies the pacing of a text.
type Tempo string

// Known tempo values.
const (
	TempoSlow   Tempo = "slow"
	TempoMedium Tempo = "medium"
	TempoFast   Tempo = "fast"
)

// Intensity bounds for ContentMetadata.
const (
	MinIntensity = 1
	MaxIntensity = 10
)

// MIME types produced by the pipeline.
const (
	MIMEMPEG = "audio/mpeg"
	MIMEWAV  = "audio/wav"
)

var (
	// ErrIntensityRange indicates an intensity outside [1, 10].
	ErrIntensityRange = errors.New("intensity must be between 1 and 10")
	// ErrParagraphMoodCount indicates a paragraph mood list whose length does
	// not match the paragraph count it was derived from.
	ErrParagraphMoodCount = errors.New("paragraph mood count does not match paragraph count")
	// ErrVolumeRange indicates a background music volume outside (0, 1].
	ErrVolumeRange = errors.New("background music volume must be in (0, 1]")
	// ErrNegativeDuration indicates a negative fade or crossfade duration.
	ErrNegativeDuration = errors.New("durations must be non-negative")
	// ErrVoiceEmpty indicates that no narration voice was provided.
	ErrVoiceEmpty = errors.New("voice cannot be empty")
)

// ContentMetadata describes the emotional and structural character of a text.
// It is created once by the metadata extractor and read-only thereafter.
type ContentMetadata struct {
	Mood      Mood
	Genre     string
	Intensity int
	Tempo     Tempo

	// ParagraphMoods optionally carries one descriptor per paragraph, in
	// source order. When present its length must equal the paragraph count.
	ParagraphMoods []ContentMetadata
}

// Validate checks the intensity bound and, when paragraphCount is positive,
// the paragraph mood count invariant.
func (m ContentMetadata) Validate(paragraphCount int) error {
	if m.Intensity < MinIntensity || m.Intensity > MaxIntensity {
		return fmt.Errorf("%w: got %d", ErrIntensityRange, m.Intensity)
	}

	if paragraphCount > 0 && len(m.ParagraphMoods) > 0 &&
		len(m.ParagraphMoods) != paragraphCount {
		return fmt.Errorf("%w: got %d moods for %d paragraphs",
			ErrParagraphMoodCount, len(m.ParagraphMoods), paragraphCount)
	}

	return nil
}

// TextSegment is an ordered, 1-indexed slice of the source text. Segments are
// created once per production run and are immutable.
type TextSegment struct {
	Text              string
	Index             int
	EstimatedDuration time.Duration
}

// Artifact is an in-memory encoded audio buffer plus its MIME type. An
// artifact is owned exclusively by the stage that produced it until handed to
// the next stage.
type Artifact struct {
	Data []byte
	MIME string
}

// MusicTrack references one background music asset in the external catalog.
type MusicTrack struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Mood     string `json:"mood"`
	Filename string `json:"filename"`
}

// ParagraphTiming locates one segment within the final concatenated track.
// Offsets are monotonically non-decreasing and every duration is positive.
type ParagraphTiming struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// NarrationOptions carries the per-run knobs accepted by the narration API.
type NarrationOptions struct {
	Voice                 string  `json:"voice"`
	BackgroundMusicVolume float64 `json:"backgroundMusicVolume"`
	CrossfadeDuration     float64 `json:"crossfadeDuration"`
	FadeInDuration        float64 `json:"fadeInDuration"`
	FadeOutDuration       float64 `json:"fadeOutDuration"`
}

// Default option values, matching the platform's web client.
const (
	DefaultVoice            = "alloy"
	DefaultBackgroundVolume = 0.3
	DefaultCrossfadeSeconds = 2.0
	DefaultFadeInSeconds    = 1.0
	DefaultFadeOutSeconds   = 2.0
)

// DefaultNarrationOptions returns the options used when a request omits them.
func DefaultNarrationOptions() NarrationOptions {
	return NarrationOptions{
		Voice:                 DefaultVoice,
		BackgroundMusicVolume: DefaultBackgroundVolume,
		CrossfadeDuration:     DefaultCrossfadeSeconds,
		FadeInDuration:        DefaultFadeInSeconds,
		FadeOutDuration:       DefaultFadeOutSeconds,
	}
}

// Normalize fills zero-valued fields with defaults and validates the result.
func (o *NarrationOptions) Normalize() error {
	if o.Voice == "" {
		o.Voice = DefaultVoice
	}

	if o.BackgroundMusicVolume == 0 {
		o.BackgroundMusicVolume = DefaultBackgroundVolume
	}

	if o.CrossfadeDuration == 0 {
		o.CrossfadeDuration = DefaultCrossfadeSeconds
	}

	return o.Validate()
}

// Validate ensures that the TTSConfig-equivalent knobs contain valid and safe
// values before a run starts.
func (o NarrationOptions) Validate() error {
	if o.Voice == "" {
		return ErrVoiceEmpty
	}

	if o.BackgroundMusicVolume <= 0 || o.BackgroundMusicVolume > 1 {
		return fmt.Errorf("%w: got %f", ErrVolumeRange, o.BackgroundMusicVolume)
	}

	if o.CrossfadeDuration < 0 || o.FadeInDuration < 0 || o.FadeOutDuration < 0 {
		return ErrNegativeDuration
	}

	return nil
}
