// Package pipeline orchestrates the end-to-end narration production flow:
// segmentation, metadata extraction, speech synthesis, background mixing,
// concatenation, upload, URL normalization, and persistence.
//
// Every external collaborator call is wrapped individually. Metadata and
// background-music failures are absorbed with defined fallbacks; speech
// synthesis, upload, URL normalization, and persistence failures abort the
// run. No partial artifact is ever persisted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/audio"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/metadata"
	"github.com/book-expert/narration-service/internal/segment"
	"github.com/book-expert/narration-service/internal/urlnorm"
	"github.com/google/uuid"
)

// State identifies one stage of a production run. Transitions are linear;
// the error state is reachable from any stage.
type State string

// Pipeline states.
const (
	StateIdle               State = "idle"
	StateSegmenting         State = "segmenting"
	StateExtractingMetadata State = "extracting-metadata"
	StateSynthesizing       State = "synthesizing"
	StateMixingBackground   State = "mixing-background"
	StateConcatenating      State = "concatenating"
	StateUploading          State = "uploading"
	StateNormalizingURL     State = "normalizing-url"
	StatePersisting         State = "persisting"
	StateComplete           State = "complete"
	StateError              State = "error"
)

const defaultWorkers = 3

// Static errors.
var (
	ErrTextEmpty   = errors.New("text cannot be empty")
	ErrBookIDEmpty = errors.New("book id cannot be empty")
)

// Request describes one whole-book (or whole-episode) production run.
type Request struct {
	BookID    string
	EpisodeID string
	Text      string
	Options   core.NarrationOptions

	// OnState, when non-nil, observes stage transitions.
	OnState func(State)
	// OnUploadProgress, when non-nil, receives monotonic upload percentages.
	OnUploadProgress core.ProgressFunc
}

// ParagraphRequest describes a single-paragraph production run. Paragraph
// artifacts are preview material and are not persisted on the document.
type ParagraphRequest struct {
	BookID         string
	Text           string
	ParagraphIndex int
	Options        core.NarrationOptions

	OnUploadProgress core.ProgressFunc
}

// Diagnostics records which segments ran in degraded mode. Degraded runs
// surface no error; these details are available to callers that want them.
type Diagnostics struct {
	// FallbackMetadata lists 1-based segment indices that used the fallback
	// metadata policy.
	FallbackMetadata []int `json:"fallbackMetadata,omitempty"`
	// MissingBackground lists 1-based segment indices delivered without a
	// background bed.
	MissingBackground []int `json:"missingBackground,omitempty"`
}

// Result is the outcome of a successful run.
type Result struct {
	URL         string
	Timings     []core.ParagraphTiming
	Diagnostics Diagnostics
}

// ParagraphResult is the outcome of a successful single-paragraph run.
type ParagraphResult struct {
	URL          string
	Metadata     core.ContentMetadata
	UsedFallback bool
}

// Service is the narration production entry point exposed to transport
// layers.
type Service interface {
	Run(ctx context.Context, req Request) (Result, error)
	RunParagraph(ctx context.Context, req ParagraphRequest) (ParagraphResult, error)
}

// Pipeline composes the production stages. A pipeline is safe for concurrent
// runs: every run owns its own buffers and mixing state exclusively.
type Pipeline struct {
	extractor    core.MetadataExtractor
	synthesizer  core.SpeechSynthesizer
	music        core.MusicSource
	mixer        *audio.Mixer
	concatenator *audio.Concatenator
	store        core.ObjectStore
	bucket       string
	urls         *urlnorm.Normalizer
	documents    core.DocumentStore
	text         *segment.Normalizer
	log          *logger.Logger
	workers      int
}

// New creates a pipeline. workers bounds the parallel fan-out across
// paragraph synthesis and mixing; values below one fall back to the default.
func New(
	extractor core.MetadataExtractor,
	synthesizer core.SpeechSynthesizer,
	music core.MusicSource,
	store core.ObjectStore,
	bucket string,
	urls *urlnorm.Normalizer,
	documents core.DocumentStore,
	log *logger.Logger,
	workers int,
) *Pipeline {
	if workers < 1 {
		workers = defaultWorkers
	}

	return &Pipeline{
		extractor:    extractor,
		synthesizer:  synthesizer,
		music:        music,
		mixer:        audio.NewMixer(log),
		concatenator: audio.NewConcatenator(log),
		store:        store,
		bucket:       bucket,
		urls:         urls,
		documents:    documents,
		text:         segment.NewNormalizer(),
		log:          log,
		workers:      workers,
	}
}

// Run produces one narration artifact for the request's full text and
// persists its canonical URL exactly once.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	observer := newStateObserver(req.OnState)

	result, err := p.run(ctx, req, observer)
	if err != nil {
		observer.set(StateError)

		return Result{}, err
	}

	observer.set(StateComplete)

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, observer *stateObserver) (Result, error) {
	err := validateRequest(req.BookID, req.Text, &req.Options)
	if err != nil {
		return Result{}, err
	}

	observer.set(StateSegmenting)

	segments, err := segment.Segment(req.Text)
	if err != nil {
		return Result{}, fmt.Errorf("segmentation failed: %w", err)
	}

	observer.set(StateExtractingMetadata)

	descriptors, diagnostics := p.describeSegments(ctx, segments)

	observer.set(StateSynthesizing)

	narrations, err := p.synthesizeSegments(ctx, segments, req.Options.Voice)
	if err != nil {
		return Result{}, err
	}

	observer.set(StateMixingBackground)

	mixed := p.mixSegments(ctx, narrations, descriptors, req.Options, &diagnostics)

	observer.set(StateConcatenating)

	artifact, timings, err := p.concatenator.Concatenate(mixed, audio.ConcatOptions{
		Crossfade: secondsToDuration(req.Options.CrossfadeDuration),
		FadeIn:    secondsToDuration(req.Options.FadeInDuration),
		FadeOut:   secondsToDuration(req.Options.FadeOutDuration),
	})
	if err != nil {
		return Result{}, fmt.Errorf("concatenation failed: %w", err)
	}

	observer.set(StateUploading)

	key := objectKey(req.BookID, artifact.MIME)

	err = p.store.Upload(ctx, key, artifact.Data, req.OnUploadProgress)
	if err != nil {
		return Result{}, fmt.Errorf("upload failed: %w", err)
	}

	observer.set(StateNormalizingURL)

	canonical, err := p.urls.Normalize(ctx, urlnorm.Native(p.bucket, key), artifact.MIME)
	if err != nil {
		return Result{}, fmt.Errorf("URL normalization failed: %w", err)
	}

	observer.set(StatePersisting)

	err = p.persist(ctx, req, canonical)
	if err != nil {
		return Result{}, fmt.Errorf("failed to persist narration URL: %w", err)
	}

	return Result{
		URL:         canonical,
		Timings:     timings,
		Diagnostics: diagnostics,
	}, nil
}

// RunParagraph produces a narration artifact for a single paragraph and
// returns the metadata that drove its background selection.
func (p *Pipeline) RunParagraph(
	ctx context.Context,
	req ParagraphRequest,
) (ParagraphResult, error) {
	err := validateRequest(req.BookID, req.Text, &req.Options)
	if err != nil {
		return ParagraphResult{}, err
	}

	descriptor, usedFallback := p.describeOne(ctx, req.Text, req.ParagraphIndex)

	narration, err := p.synthesizer.Synthesize(
		ctx, p.text.Normalize(req.Text), req.Options.Voice)
	if err != nil {
		return ParagraphResult{}, fmt.Errorf("speech synthesis failed: %w", err)
	}

	var diagnostics Diagnostics

	mixed := p.mixOne(ctx, narration, descriptor, req.Options, 1, &diagnostics)

	key := objectKey(req.BookID, mixed.MIME)

	err = p.store.Upload(ctx, key, mixed.Data, req.OnUploadProgress)
	if err != nil {
		return ParagraphResult{}, fmt.Errorf("upload failed: %w", err)
	}

	canonical, err := p.urls.Normalize(ctx, urlnorm.Native(p.bucket, key), mixed.MIME)
	if err != nil {
		return ParagraphResult{}, fmt.Errorf("URL normalization failed: %w", err)
	}

	return ParagraphResult{
		URL:          canonical,
		Metadata:     descriptor,
		UsedFallback: usedFallback,
	}, nil
}

// describeSegments derives one descriptor per segment, substituting the
// fallback policy wherever extraction fails or returns an invalid value.
func (p *Pipeline) describeSegments(
	ctx context.Context,
	segments []core.TextSegment,
) ([]core.ContentMetadata, Diagnostics) {
	var diagnostics Diagnostics

	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}

	descriptors, err := p.extractor.AnalyzeParagraphs(ctx, texts)
	if err != nil {
		p.log.Warn("Metadata extraction failed, using fallback policy: %v", err)

		descriptors = make([]core.ContentMetadata, len(segments))
		for i := range descriptors {
			descriptors[i] = metadata.FallbackFor(i)
			diagnostics.FallbackMetadata = append(diagnostics.FallbackMetadata, i+1)
		}

		return descriptors, diagnostics
	}

	for i, descriptor := range descriptors {
		validationErr := descriptor.Validate(0)
		if validationErr != nil {
			p.log.Warn("Segment %d metadata invalid, using fallback: %v",
				i+1, validationErr)

			descriptors[i] = metadata.FallbackFor(i)
			diagnostics.FallbackMetadata = append(diagnostics.FallbackMetadata, i+1)
		}
	}

	return descriptors, diagnostics
}

// describeOne derives a descriptor for one paragraph, falling back by index.
func (p *Pipeline) describeOne(
	ctx context.Context,
	text string,
	index int,
) (core.ContentMetadata, bool) {
	descriptor, err := p.extractor.Analyze(ctx, text)
	if err == nil {
		err = descriptor.Validate(0)
	}

	if err != nil {
		p.log.Warn("Paragraph %d metadata extraction failed, using fallback: %v",
			index, err)

		return metadata.FallbackFor(index), true
	}

	return descriptor, false
}

// synthesizeSegments fans synthesis out across the worker pool. Any failure
// cancels the remaining work and aborts the run: partial narration is never
// delivered.
func (p *Pipeline) synthesizeSegments(
	ctx context.Context,
	segments []core.TextSegment,
	voice string,
) ([]core.Artifact, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	narrations := make([]core.Artifact, len(segments))

	var (
		mutex    sync.Mutex
		firstErr error
	)

	p.forEachSegment(len(segments), func(index int) {
		normalized := p.text.Normalize(segments[index].Text)

		artifact, err := p.synthesizer.Synthesize(runCtx, normalized, voice)
		if err != nil {
			mutex.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf(
					"speech synthesis failed for segment %d: %w",
					index+1, err)
			}
			mutex.Unlock()

			cancel()

			return
		}

		narrations[index] = artifact
	})

	if firstErr != nil {
		return nil, firstErr
	}

	return narrations, nil
}

// mixSegments fans background selection and mixing out across the worker
// pool. Failures fall back to the unmixed narration; source order is
// preserved by index addressing.
func (p *Pipeline) mixSegments(
	ctx context.Context,
	narrations []core.Artifact,
	descriptors []core.ContentMetadata,
	opts core.NarrationOptions,
	diagnostics *Diagnostics,
) []core.Artifact {
	mixed := make([]core.Artifact, len(narrations))
	missing := make([]bool, len(narrations))

	p.forEachSegment(len(narrations), func(index int) {
		var local Diagnostics

		mixed[index] = p.mixOne(
			ctx, narrations[index], descriptors[index], opts, index+1, &local)

		missing[index] = len(local.MissingBackground) > 0
	})

	for index, wasMissing := range missing {
		if wasMissing {
			diagnostics.MissingBackground = append(
				diagnostics.MissingBackground, index+1)
		}
	}

	return mixed
}

// mixOne blends one narration segment with its selected background track,
// returning the unmodified narration when any step of selection, fetching,
// or mixing fails.
func (p *Pipeline) mixOne(
	ctx context.Context,
	narration core.Artifact,
	descriptor core.ContentMetadata,
	opts core.NarrationOptions,
	displayIndex int,
	diagnostics *Diagnostics,
) core.Artifact {
	track, err := p.music.TrackFor(ctx, descriptor)
	if err != nil {
		p.log.Warn("Segment %d: background selection failed, narration only: %v",
			displayIndex, err)
		diagnostics.MissingBackground = append(
			diagnostics.MissingBackground, displayIndex)

		return narration
	}

	trackData, err := p.music.Fetch(ctx, track)
	if err != nil {
		p.log.Warn("Segment %d: background fetch failed, narration only: %v",
			displayIndex, err)
		diagnostics.MissingBackground = append(
			diagnostics.MissingBackground, displayIndex)

		return narration
	}

	mixed, err := p.mixer.Mix(narration, trackData, opts.BackgroundMusicVolume)
	if err != nil {
		p.log.Warn("Segment %d: background mixing failed, narration only: %v",
			displayIndex, err)
		diagnostics.MissingBackground = append(
			diagnostics.MissingBackground, displayIndex)

		return narration
	}

	return mixed
}

func (p *Pipeline) persist(ctx context.Context, req Request, canonical string) error {
	if req.EpisodeID != "" {
		return p.documents.UpdateEpisodeNarrationURL(
			ctx, req.BookID, req.EpisodeID, canonical)
	}

	return p.documents.UpdateBookNarrationURL(ctx, req.BookID, canonical)
}

// forEachSegment runs fn for every index through a bounded worker pool and
// waits for completion.
func (p *Pipeline) forEachSegment(count int, fn func(index int)) {
	var waitGroup sync.WaitGroup

	workerPool := make(chan struct{}, p.workers)

	for i := range count {
		waitGroup.Add(1)

		go func(index int) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			fn(index)
		}(i)
	}

	waitGroup.Wait()
}

func validateRequest(bookID, text string, opts *core.NarrationOptions) error {
	if bookID == "" {
		return ErrBookIDEmpty
	}

	if text == "" {
		return ErrTextEmpty
	}

	err := opts.Normalize()
	if err != nil {
		return fmt.Errorf("invalid narration options: %w", err)
	}

	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func objectKey(bookID, mime string) string {
	extension := ".mp3"
	if mime == core.MIMEWAV {
		extension = ".wav"
	}

	return fmt.Sprintf("narrations/%s/%s%s", bookID, uuid.NewString(), extension)
}

// stateObserver funnels stage transitions to an optional callback.
type stateObserver struct {
	onState func(State)
}

func newStateObserver(onState func(State)) *stateObserver {
	return &stateObserver{onState: onState}
}

func (o *stateObserver) set(state State) {
	if o.onState != nil {
		o.onState(state)
	}
}
