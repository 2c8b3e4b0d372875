package pipeline

import (
	"context"
	"sync"
)

// runHandle identifies one in-flight run so that only its own completion
// removes it from the registry.
type runHandle struct {
	cancel context.CancelFunc
}

// Runner serializes narration production per book: starting a new run for a
// book cancels any run already in flight for it, so a superseded request can
// never overwrite a newer narration URL. Runs for distinct books proceed
// independently.
type Runner struct {
	pipeline *Pipeline

	mutex  sync.Mutex
	active map[string]*runHandle
}

// NewRunner wraps a pipeline with the per-book cancellation registry.
func NewRunner(p *Pipeline) *Runner {
	return &Runner{
		pipeline: p,
		mutex:    sync.Mutex{},
		active:   make(map[string]*runHandle),
	}
}

// Run executes a production run, cancelling any previous in-flight run for
// the same book first.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := &runHandle{cancel: cancel}

	r.mutex.Lock()
	if previous, ok := r.active[req.BookID]; ok {
		previous.cancel()
	}

	r.active[req.BookID] = handle
	r.mutex.Unlock()

	defer func() {
		r.mutex.Lock()
		if r.active[req.BookID] == handle {
			delete(r.active, req.BookID)
		}
		r.mutex.Unlock()
	}()

	return r.pipeline.Run(runCtx, req)
}

// RunParagraph executes a single-paragraph run. Paragraph previews do not
// participate in the per-book supersession; narrating one paragraph must not
// cancel a whole-book run.
func (r *Runner) RunParagraph(
	ctx context.Context,
	req ParagraphRequest,
) (ParagraphResult, error) {
	return r.pipeline.RunParagraph(ctx, req)
}

// Cancel aborts any in-flight run for the given book. It is a no-op when
// nothing is running.
func (r *Runner) Cancel(bookID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if handle, ok := r.active[bookID]; ok {
		handle.cancel()
		delete(r.active, bookID)
	}
}
