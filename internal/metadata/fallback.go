package metadata

import "github.com/book-expert/narration-service/internal/core"

// FallbackEntry is one row of the fallback policy table.
type FallbackEntry struct {
	Mood      core.Mood
	Genre     string
	Intensity int
	Tempo     core.Tempo
}

// FallbackPolicy is the deterministic substitute applied when the analysis
// service fails, so partial metadata failure never blocks narration
// production. The opening-paragraph/rest split is a placeholder default
// inherited from the platform's web client, not a tuned heuristic.
var FallbackPolicy = struct {
	Opening FallbackEntry
	Rest    FallbackEntry
}{
	Opening: FallbackEntry{
		Mood:      core.MoodSuspense,
		Genre:     "thriller",
		Intensity: 8,
		Tempo:     core.TempoMedium,
	},
	Rest: FallbackEntry{
		Mood:      core.MoodHappy,
		Genre:     "adventure",
		Intensity: 5,
		Tempo:     core.TempoMedium,
	},
}

// FallbackFor returns the fallback descriptor for the paragraph at the given
// zero-based index.
func FallbackFor(index int) core.ContentMetadata {
	entry := FallbackPolicy.Rest
	if index == 0 {
		entry = FallbackPolicy.Opening
	}

	return core.ContentMetadata{
		Mood:           entry.Mood,
		Genre:          entry.Genre,
		Intensity:      entry.Intensity,
		Tempo:          entry.Tempo,
		ParagraphMoods: nil,
	}
}
