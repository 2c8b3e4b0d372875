// Package segment splits raw book text into an ordered sequence of paragraph
// segments using a prioritized cascade of delimiter strategies, and provides
// the text normalization applied before speech synthesis.
package segment

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/book-expert/narration-service/internal/core"
)

const (
	// MaxSegments bounds synthesis cost and latency; text beyond the cap is
	// dropped and callers needing the remainder must re-invoke on it.
	MaxSegments = 5

	// blankLineThreshold is the minimum text length before the blank-line
	// strategy is attempted.
	blankLineThreshold = 500

	// charsPerSecond is the narration duration heuristic. It estimates
	// timing before the real synthesized audio exists; replace with decoded
	// duration measurement by swapping EstimateDuration only.
	charsPerSecond = 20
)

// delimiter used by the platform's authoring tools to mark paragraph breaks.
const explicitDelimiter = "$"

var (
	blankLinePattern    = regexp.MustCompile(`\n\s*\n`)
	doublePeriodBreaks  = regexp.MustCompile(`\.\.(\s+)`)
	trailingDoubleStops = regexp.MustCompile(`\.\.$`)
)

// ErrEmptyText indicates that the input contained no narratable content.
var ErrEmptyText = errors.New("text cannot be empty")

// Strategy is one pure splitting rule in the cascade. The first strategy that
// yields more than one non-empty segment wins.
type Strategy struct {
	Name  string
	Split func(text string) []string
}

// Strategies returns the ordered fallback cascade.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "delimiter", Split: splitOnDelimiter},
		{Name: "blank-line", Split: splitOnBlankLines},
		{Name: "double-period", Split: splitOnDoublePeriods},
	}
}

// Segment splits text into at most MaxSegments ordered, 1-indexed segments.
// The result is never empty: when every strategy fails the whole text is
// returned as a single segment. Only empty input is an error.
func Segment(text string) ([]core.TextSegment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	parts := []string{strings.TrimSpace(text)}

	for _, strategy := range Strategies() {
		candidate := trimNonEmpty(strategy.Split(text))
		if len(candidate) > 1 {
			parts = candidate

			break
		}
	}

	if len(parts) > MaxSegments {
		parts = parts[:MaxSegments]
	}

	segments := make([]core.TextSegment, 0, len(parts))
	for i, part := range parts {
		segments = append(segments, core.TextSegment{
			Text:              part,
			Index:             i + 1,
			EstimatedDuration: EstimateDuration(part),
		})
	}

	return segments, nil
}

// EstimateDuration derives a narration duration from character count.
func EstimateDuration(text string) time.Duration {
	seconds := float64(len(text)) / charsPerSecond

	return time.Duration(seconds * float64(time.Second))
}

func splitOnDelimiter(text string) []string {
	return strings.Split(text, explicitDelimiter)
}

func splitOnBlankLines(text string) []string {
	if len(text) <= blankLineThreshold {
		return nil
	}

	return blankLinePattern.Split(text, -1)
}

// splitOnDoublePeriods rewrites double-period sentence stops followed by
// whitespace (or ending the text) into paragraph breaks, then re-splits on
// blank lines. Text without double periods falls through, so this strategy
// cannot bypass the blank-line length threshold.
func splitOnDoublePeriods(text string) []string {
	if !strings.Contains(text, "..") {
		return nil
	}

	rewritten := doublePeriodBreaks.ReplaceAllString(text, "..\n\n")
	rewritten = trailingDoubleStops.ReplaceAllString(rewritten, "..\n\n")

	return blankLinePattern.Split(rewritten, -1)
}

// trimNonEmpty trims every part and discards those that become empty, so they
// do not count toward the segment cap.
func trimNonEmpty(parts []string) []string {
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
