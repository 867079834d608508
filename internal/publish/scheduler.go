package publish

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sourcegraph/conc/pool"
	"github.com/wikisync/wikisync/internal/fingerprint"
)

// DefaultWorkers is the pool size used when Options.Workers is not positive.
const DefaultWorkers = 4

// Outcome is the final state of one job.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
	OutcomePlanned Outcome = "planned"
)

// Source reads raw documents.
type Source interface {
	Read(name string) ([]byte, error)
}

// Renderer produces the payload for a document.
type Renderer interface {
	Render(filename string, content []byte) ([]byte, error)
}

// Store persists fingerprints and rendered payloads.
type Store interface {
	WriteContent(doc string, payload []byte) error
	ReadPrevious(doc string) (fingerprint.Fingerprint, bool, error)
	Write(doc string, fp fingerprint.Fingerprint) error
}

// PublishFunc sends one rendered payload to the wiki.
type PublishFunc func(ctx context.Context, doc string, payload []byte) error

// Result is the outcome of one job.
type Result struct {
	Document    string
	Outcome     Outcome
	Fingerprint fingerprint.Fingerprint
	Err         error
}

// Options configures a Scheduler.
type Options struct {
	// Workers bounds the number of jobs running at once.
	Workers int
	// DryRun computes decisions without publishing or writing state.
	DryRun bool
	Logger *log.Logger
}

// Scheduler runs publish jobs.
type Scheduler struct {
	source   Source
	renderer Renderer
	store    Store
	workers  int
	dryRun   bool
	logger   *log.Logger
}

// New creates a Scheduler. If opts.Logger is nil, a default logger writing
// to stderr is used.
func New(source Source, renderer Renderer, store Store, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[publish] ", log.LstdFlags)
	}
	return &Scheduler{
		source:   source,
		renderer: renderer,
		store:    store,
		workers:  opts.Workers,
		dryRun:   opts.DryRun,
		logger:   opts.Logger,
	}
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Process runs the job for one document. It never panics on a job error;
// failures are reported in the Result.
func (s *Scheduler) Process(ctx context.Context, doc string, fn PublishFunc) Result {
	res := Result{Document: doc}
	fail := func(err error) Result {
		res.Outcome = OutcomeFailed
		res.Err = &JobError{Document: doc, Err: err}
		s.logger.Printf("Failed: %s: %v", doc, err)
		return res
	}

	content, err := s.source.Read(doc)
	if err != nil {
		return fail(err)
	}

	payload, err := s.renderer.Render(doc, content)
	if err != nil {
		return fail(err)
	}

	if !s.dryRun {
		if err := s.store.WriteContent(doc, payload); err != nil {
			return fail(err)
		}
	}

	res.Fingerprint = fingerprint.Compute(payload)

	previous, ok, err := s.store.ReadPrevious(doc)
	if err != nil {
		return fail(err)
	}
	if ok && previous == res.Fingerprint {
		s.logger.Printf("Skipping (already synced): %s", doc)
		res.Outcome = OutcomeSkipped
		return res
	}

	if s.dryRun {
		s.logger.Printf("Would update: %s", doc)
		res.Outcome = OutcomePlanned
		return res
	}

	s.logger.Printf("Updating: %s", doc)
	if err := fn(ctx, doc, payload); err != nil {
		return fail(fmt.Errorf("publish failed: %w", err))
	}

	if err := s.store.Write(doc, res.Fingerprint); err != nil {
		return fail(err)
	}

	res.Outcome = OutcomeUpdated
	return res
}

// RunAll processes every document on the worker pool and waits for all of
// them. Results are in the order of docs. When any job failed the returned
// error is an *AggregateError.
func (s *Scheduler) RunAll(ctx context.Context, docs []string, fn PublishFunc) ([]Result, error) {
	results := make([]Result, len(docs))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, doc := range docs {
		p.Go(func() {
			results[i] = s.Process(ctx, doc, fn)
		})
	}
	p.Wait()

	var failed []*JobError
	for _, r := range results {
		if r.Outcome != OutcomeFailed {
			continue
		}
		je, ok := r.Err.(*JobError)
		if !ok {
			je = &JobError{Document: r.Document, Err: r.Err}
		}
		failed = append(failed, je)
	}
	if len(failed) > 0 {
		return results, newAggregateError(failed)
	}
	return results, nil
}

// Count returns how many results have the given outcome.
func Count(results []Result, outcome Outcome) int {
	n := 0
	for _, r := range results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Documents returns the documents whose result has the given outcome, in
// result order.
func Documents(results []Result, outcome Outcome) []string {
	var out []string
	for _, r := range results {
		if r.Outcome == outcome {
			out = append(out, r.Document)
		}
	}
	return out
}
