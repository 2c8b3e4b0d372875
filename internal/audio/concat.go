package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
)

// ErrNoSegments indicates an empty concatenation input.
var ErrNoSegments = errors.New("concatenation requires at least one segment")

// ConcatOptions carries the envelope durations for one concatenation.
type ConcatOptions struct {
	// Crossfade is the overlap window between adjacent segments.
	Crossfade time.Duration
	// FadeIn ramps up the head of the first segment.
	FadeIn time.Duration
	// FadeOut ramps down the tail of the last segment.
	FadeOut time.Duration
}

// Concatenator stitches independently-mixed paragraph tracks into one
// continuous track with inter-segment crossfades. Output is re-encoded as
// uncompressed PCM to avoid late-stage lossy-codec artifacts.
type Concatenator struct {
	log *logger.Logger
}

// NewConcatenator creates a concatenator.
func NewConcatenator(log *logger.Logger) *Concatenator {
	return &Concatenator{log: log}
}

// Concatenate joins the segments in order. A single input is returned
// unchanged. The output duration is the sum of segment durations minus
// (n-1) crossfade windows; each boundary's window shrinks to the shorter
// neighbor when a segment is shorter than the configured crossfade.
func (c *Concatenator) Concatenate(
	segments []core.Artifact,
	opts ConcatOptions,
) (core.Artifact, []core.ParagraphTiming, error) {
	if len(segments) == 0 {
		return core.Artifact{}, nil, ErrNoSegments
	}

	if len(segments) == 1 {
		return segments[0], nil, nil
	}

	clips := make([]*Clip, 0, len(segments))

	for i, segment := range segments {
		clip, err := Decode(segment.Data)
		if err != nil {
			return core.Artifact{}, nil, fmt.Errorf(
				"failed to decode segment %d: %w", i+1, err)
		}

		clips = append(clips, clip)
	}

	starts, total := layoutFrames(clips, opts.Crossfade)
	timings := timingsFor(clips, starts)

	applyCrossfades(clips, opts.Crossfade)
	applyFadeIn(clips[0], framesFor(opts.FadeIn))
	applyFadeOut(clips[len(clips)-1], framesFor(opts.FadeOut))

	mixed := overlapAdd(clips, starts, total)

	encoded, err := EncodeWAV(NewClip(mixed, TargetSampleRate))
	if err != nil {
		return core.Artifact{}, nil, fmt.Errorf(
			"failed to encode concatenated audio: %w", err)
	}

	c.log.Info("Concatenated %d segments into %d frames", len(clips), total)

	return core.Artifact{Data: encoded, MIME: core.MIMEWAV}, timings, nil
}

// layoutFrames computes each segment's start frame: the previous segment's
// end minus the boundary crossfade, so adjacent segments overlap by exactly
// the crossfade window.
func layoutFrames(clips []*Clip, crossfade time.Duration) ([]int, int) {
	starts := make([]int, len(clips))

	for i := 1; i < len(clips); i++ {
		overlap := boundaryCrossfade(clips[i-1], clips[i], crossfade)
		starts[i] = starts[i-1] + clips[i-1].Frames() - overlap
	}

	last := len(clips) - 1
	total := starts[last] + clips[last].Frames()

	return starts, total
}

// boundaryCrossfade clamps the crossfade window to the shorter neighbor.
func boundaryCrossfade(prev, next *Clip, crossfade time.Duration) int {
	overlap := framesFor(crossfade)

	if overlap > prev.Frames() {
		overlap = prev.Frames()
	}

	if overlap > next.Frames() {
		overlap = next.Frames()
	}

	return overlap
}

// applyCrossfades applies a linear fade-in ramp at the start of every segment
// after the first and a linear fade-out ramp at the end of every segment
// before the last, each over the boundary's crossfade window.
func applyCrossfades(clips []*Clip, crossfade time.Duration) {
	for i := 1; i < len(clips); i++ {
		overlap := boundaryCrossfade(clips[i-1], clips[i], crossfade)
		applyFadeOut(clips[i-1], overlap)
		applyFadeIn(clips[i], overlap)
	}
}

// overlapAdd places each segment at its start offset and sums overlapping
// regions into a wide accumulator before clamping back to 16-bit range.
func overlapAdd(clips []*Clip, starts []int, totalFrames int) []int16 {
	accumulator := make([]int32, totalFrames*numChannels)

	for i, clip := range clips {
		base := starts[i] * numChannels
		for j, sample := range clip.samples {
			accumulator[base+j] += int32(sample)
		}
	}

	mixed := make([]int16, len(accumulator))
	for i, sample := range accumulator {
		mixed[i] = clampSample(float64(sample))
	}

	return mixed
}

func timingsFor(clips []*Clip, starts []int) []core.ParagraphTiming {
	timings := make([]core.ParagraphTiming, 0, len(clips))

	for i, clip := range clips {
		timings = append(timings, core.ParagraphTiming{
			Start:    float64(starts[i]) / TargetSampleRate,
			Duration: float64(clip.Frames()) / TargetSampleRate,
		})
	}

	return timings
}

func framesFor(d time.Duration) int {
	return int(d.Seconds() * TargetSampleRate)
}
