// Package audio implements the narration mixing engine: decoding compressed
// audio into sample buffers, gain envelopes, background-bed mixing,
// crossfaded concatenation, and PCM re-encoding.
//
// All processing happens on 16-bit signed interleaved stereo samples at a
// shared sample rate. Clips are owned by a single production run and are
// never shared across runs.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Sample format constants.
const (
	// TargetSampleRate is the shared rate every clip is resampled to before
	// mixing or concatenation.
	TargetSampleRate = 44100

	numChannels = 2
	bitDepth    = 16

	maxSample = 32767
	minSample = -32768
)

// Static errors.
var (
	ErrEmptyAudio          = errors.New("audio data cannot be empty")
	ErrUnknownFormat       = errors.New("unrecognized audio container")
	ErrUnsupportedChannels = errors.New("unsupported channel count")
)

// Clip is a decoded audio buffer: interleaved stereo int16 samples at a
// known sample rate.
type Clip struct {
	samples []int16
	rate    int
}

// NewClip wraps interleaved stereo samples at the given rate. The slice is
// owned by the clip afterwards.
func NewClip(samples []int16, rate int) *Clip {
	return &Clip{samples: samples, rate: rate}
}

// Frames returns the number of stereo frames in the clip.
func (c *Clip) Frames() int {
	return len(c.samples) / numChannels
}

// Rate returns the clip's sample rate.
func (c *Clip) Rate() int {
	return c.rate
}

// Samples exposes the underlying interleaved buffer.
func (c *Clip) Samples() []int16 {
	return c.samples
}

// Duration returns the clip's play time.
func (c *Clip) Duration() time.Duration {
	if c.rate == 0 {
		return 0
	}

	seconds := float64(c.Frames()) / float64(c.rate)

	return time.Duration(seconds * float64(time.Second))
}

// Decode sniffs the container format and decodes to a clip at
// TargetSampleRate. WAV and MPEG audio are supported.
func Decode(data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	var (
		clip *Clip
		err  error
	)

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		clip, err = decodeWAV(data)
	case bytes.HasPrefix(data, []byte("ID3")), isMPEGSync(data):
		clip, err = decodeMP3(data)
	default:
		return nil, ErrUnknownFormat
	}

	if err != nil {
		return nil, err
	}

	return clip.resampleTo(TargetSampleRate), nil
}

// EncodeWAV re-encodes a clip as a 16-bit PCM WAV container.
func EncodeWAV(clip *Clip) ([]byte, error) {
	writer := newBufferWriteSeeker()
	encoder := wav.NewEncoder(writer, clip.rate, bitDepth, numChannels, 1)

	data := make([]int, len(clip.samples))
	for i, sample := range clip.samples {
		data[i] = int(sample)
	}

	buffer := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: numChannels,
			SampleRate:  clip.rate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	err := encoder.Write(buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to write wav data: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to close wav encoder: %w", err)
	}

	return writer.Bytes(), nil
}

func decodeWAV(data []byte) (*Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav data: %w", err)
	}

	channels := buffer.Format.NumChannels
	if channels < 1 || channels > numChannels {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}

	sourceDepth := buffer.SourceBitDepth
	if sourceDepth == 0 {
		sourceDepth = int(decoder.BitDepth)
	}

	frames := len(buffer.Data) / channels
	samples := make([]int16, 0, frames*numChannels)

	for frame := range frames {
		for channel := range numChannels {
			sourceChannel := channel
			if sourceChannel >= channels {
				sourceChannel = channels - 1
			}

			raw := buffer.Data[frame*channels+sourceChannel]
			samples = append(samples, scaleTo16Bit(raw, sourceDepth))
		}
	}

	return NewClip(samples, buffer.Format.SampleRate), nil
}

func decodeMP3(data []byte) (*Clip, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mpeg data: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to read mpeg samples: %w", err)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}

	return NewClip(samples, decoder.SampleRate()), nil
}

// resampleTo converts the clip to the given rate via linear interpolation.
// The clip itself is returned when no conversion is needed.
func (c *Clip) resampleTo(rate int) *Clip {
	if c.rate == rate || c.rate == 0 || c.Frames() == 0 {
		return c
	}

	srcFrames := c.Frames()
	dstFrames := int(float64(srcFrames) * float64(rate) / float64(c.rate))

	if dstFrames == 0 {
		return NewClip(nil, rate)
	}

	ratio := float64(c.rate) / float64(rate)
	resampled := make([]int16, dstFrames*numChannels)

	for frame := range dstFrames {
		position := float64(frame) * ratio

		left := int(position)
		if left >= srcFrames-1 {
			left = srcFrames - 1
		}

		right := left
		if right < srcFrames-1 {
			right++
		}

		weight := position - float64(left)

		for channel := range numChannels {
			a := float64(c.samples[left*numChannels+channel])
			b := float64(c.samples[right*numChannels+channel])
			resampled[frame*numChannels+channel] = clampSample(a + (b-a)*weight)
		}
	}

	return NewClip(resampled, rate)
}

// scaleTo16Bit shifts a sample of arbitrary source depth into 16-bit range.
func scaleTo16Bit(sample, sourceDepth int) int16 {
	switch {
	case sourceDepth == bitDepth || sourceDepth == 0:
		return clampSample(float64(sample))
	case sourceDepth < bitDepth:
		return clampSample(float64(sample) * float64(int(1)<<(bitDepth-sourceDepth)))
	default:
		return clampSample(float64(sample) / float64(int(1)<<(sourceDepth-bitDepth)))
	}
}

// clampSample clips a value to the valid 16-bit signed range to avoid
// wraparound distortion.
func clampSample(value float64) int16 {
	if value > maxSample {
		return maxSample
	}

	if value < minSample {
		return minSample
	}

	return int16(value)
}

// isMPEGSync reports whether the data starts with an MPEG audio frame sync.
func isMPEGSync(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
