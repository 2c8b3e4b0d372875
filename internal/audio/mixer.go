package audio

import (
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
)

// ErrMixVolumeRange indicates a background volume outside [0, 1].
var ErrMixVolumeRange = errors.New("background volume must be in [0, 1]")

// Mixer blends a narration artifact with a background music bed. A mixer is
// created per production run and discarded after use; it is not shared across
// concurrent runs.
type Mixer struct {
	log *logger.Logger
}

// NewMixer creates a mixer.
func NewMixer(log *logger.Logger) *Mixer {
	return &Mixer{log: log}
}

// Mix decodes narration and background, loops or truncates the background to
// cover the narration duration, attenuates it by volume, sums sample-wise
// with clamping, and re-encodes as 16-bit PCM WAV.
//
// Callers treat any error as "background mixing failed" and fall back to the
// unmodified narration artifact; a background problem never fails a run.
func (m *Mixer) Mix(
	narration core.Artifact,
	background []byte,
	volume float64,
) (core.Artifact, error) {
	if volume < 0 || volume > 1 {
		return core.Artifact{}, fmt.Errorf("%w: got %f", ErrMixVolumeRange, volume)
	}

	narrationClip, err := Decode(narration.Data)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("failed to decode narration: %w", err)
	}

	backgroundClip, err := Decode(background)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("failed to decode background: %w", err)
	}

	if backgroundClip.Frames() == 0 {
		return core.Artifact{}, ErrEmptyAudio
	}

	mixed := make([]int16, len(narrationClip.samples))
	backgroundSamples := backgroundClip.samples

	for i, sample := range narrationClip.samples {
		// The background loops over the full narration length; silence gaps
		// keep their bed, which matches the platform's observed behavior.
		bed := float64(backgroundSamples[i%len(backgroundSamples)]) * volume
		mixed[i] = clampSample(float64(sample) + bed)
	}

	encoded, err := EncodeWAV(NewClip(mixed, narrationClip.rate))
	if err != nil {
		return core.Artifact{}, fmt.Errorf("failed to encode mixed audio: %w", err)
	}

	m.log.Info("Mixed background bed at volume %.2f over %d frames",
		volume, narrationClip.Frames())

	return core.Artifact{Data: encoded, MIME: core.MIMEWAV}, nil
}
