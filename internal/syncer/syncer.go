// Package syncer runs one complete synchronization of the local documents
// to the wiki.
//
// A run has four sequential phases:
//
//	(a) publish the root document onto the parent page itself, by id
//	(b) publish every other document as a child page, in parallel
//	(c) fetch the current children of the parent page
//	(d) delete children that have no local document
//
// Phase (b) always drains before its failures are reported, and phases (c)
// and (d) only run when (b) succeeded completely. Pruning is never based on
// a partially published state.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/wikisync/wikisync/internal/docs"
	"github.com/wikisync/wikisync/internal/fingerprint"
	"github.com/wikisync/wikisync/internal/gateway"
	"github.com/wikisync/wikisync/internal/logging"
	"github.com/wikisync/wikisync/internal/publish"
	"github.com/wikisync/wikisync/internal/reconcile"
	"github.com/wikisync/wikisync/internal/remote"
)

// Phase identifies a stage of a run.
type Phase string

const (
	PhaseRoot      Phase = "root"
	PhasePublish   Phase = "publish"
	PhaseFetch     Phase = "fetch"
	PhaseReconcile Phase = "reconcile"
)

// Deps are the collaborators of a Syncer.
type Deps struct {
	Source   *docs.Source
	Renderer publish.Renderer
	Store    *fingerprint.Store
	Gateway  gateway.Gateway
	// StateFS holds the page list dump. Defaults to the OS filesystem.
	StateFS afero.Fs
}

// Options configures a run.
type Options struct {
	ParentID     string
	Space        string
	RootDocument string
	RootTitle    string
	Workers      int
	PageSize     int
	DryRun       bool
	// Force forgets every fingerprint first so all documents republish.
	Force   bool
	Confirm reconcile.ConfirmFunc
	// OnPhase is called as each phase starts.
	OnPhase   func(Phase)
	LogOutput io.Writer
}

// Report summarizes a run. Document lists are sorted, except Deleted which
// keeps remote listing order. In a dry run Deleted holds the pages that
// would have been deleted.
type Report struct {
	Updated  []string
	Skipped  []string
	Planned  []string
	Failed   []string
	Deleted  []string
	DryRun   bool
	Duration time.Duration

	// RootMissing is set when the root document does not exist locally and
	// the parent page was left unchanged.
	RootMissing bool
}

// Syncer performs runs.
type Syncer struct {
	deps       Deps
	opts       Options
	logger     *log.Logger
	scheduler  *publish.Scheduler
	reader     *remote.Reader
	reconciler *reconcile.Reconciler
}

// New validates deps and opts and wires the engine components.
func New(deps Deps, opts Options) (*Syncer, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("document source is required")
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	case deps.Store == nil:
		return nil, errors.New("fingerprint store is required")
	case deps.Gateway == nil:
		return nil, errors.New("gateway is required")
	case opts.ParentID == "":
		return nil, errors.New("parent page id is required")
	}
	if deps.StateFS == nil {
		deps.StateFS = afero.NewOsFs()
	}
	if opts.RootDocument == "" {
		opts.RootDocument = reconcile.DefaultRootDocument
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	readerOpts := remote.ReaderOptions{
		PageSize: opts.PageSize,
		Logger:   logging.New(opts.LogOutput, logging.ComponentRemote),
	}
	if !opts.DryRun {
		readerOpts.DumpFS = deps.StateFS
		readerOpts.DumpPath = filepath.Join(deps.Store.Dir(), remote.DumpFileName)
	}

	return &Syncer{
		deps:   deps,
		opts:   opts,
		logger: logging.New(opts.LogOutput, logging.ComponentSync),
		scheduler: publish.New(deps.Source, deps.Renderer, deps.Store, publish.Options{
			Workers: opts.Workers,
			DryRun:  opts.DryRun,
			Logger:  logging.New(opts.LogOutput, logging.ComponentPublish),
		}),
		reader: remote.NewReader(deps.Gateway, readerOpts),
		reconciler: reconcile.New(deps.Gateway, reconcile.Options{
			RootDocument: opts.RootDocument,
			DryRun:       opts.DryRun,
			Confirm:      opts.Confirm,
			Logger:       logging.New(opts.LogOutput, logging.ComponentReconcile),
		}),
	}, nil
}

// Run performs one synchronization. The returned report is never nil and
// reflects the work done up to a failure.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{DryRun: s.opts.DryRun}
	defer func() {
		report.Duration = time.Since(start)
	}()

	local, err := s.deps.Source.List()
	if err != nil {
		return report, err
	}
	s.logger.Printf("Found %d documents in %s", len(local), s.deps.Source.Dir())

	if s.opts.Force && !s.opts.DryRun {
		for _, doc := range local {
			if err := s.deps.Store.Forget(doc); err != nil {
				return report, err
			}
		}
	}

	// (a)
	s.phase(PhaseRoot)
	rootFound, err := s.deps.Source.Exists(s.opts.RootDocument)
	if err != nil {
		return report, err
	}
	var children []string
	for _, doc := range local {
		if doc != s.opts.RootDocument {
			children = append(children, doc)
		}
	}
	if rootFound {
		res := s.scheduler.Process(ctx, s.opts.RootDocument, s.publishRoot)
		report.add(res)
		if res.Outcome == publish.OutcomeFailed {
			return report, fmt.Errorf("root document: %w", res.Err)
		}
	} else {
		report.RootMissing = true
		s.logger.Printf("WARNING: root document %s not found in %s, parent page left unchanged",
			s.opts.RootDocument, s.deps.Source.Dir())
	}

	// (b)
	s.phase(PhasePublish)
	results, err := s.scheduler.RunAll(ctx, children, s.publishChild)
	for _, res := range results {
		report.add(res)
	}
	if err != nil {
		report.finish()
		return report, err
	}

	// (c)
	s.phase(PhaseFetch)
	entries, err := s.reader.Children(ctx, s.opts.ParentID)
	if err != nil {
		report.finish()
		return report, err
	}

	// (d)
	s.phase(PhaseReconcile)
	deleted, err := s.reconciler.Prune(ctx, entries, local)
	for _, e := range deleted {
		report.Deleted = append(report.Deleted, e.Title)
	}
	report.finish()
	if err != nil {
		return report, err
	}

	s.logger.Printf("Sync complete: %d updated, %d skipped, %d deleted",
		len(report.Updated), len(report.Skipped), len(report.Deleted))
	return report, nil
}

func (s *Syncer) publishRoot(ctx context.Context, doc string, payload []byte) error {
	return s.deps.Gateway.UpdateByID(ctx, s.opts.ParentID, s.opts.RootTitle, payload)
}

func (s *Syncer) publishChild(ctx context.Context, doc string, payload []byte) error {
	_, err := s.deps.Gateway.CreateOrUpdateChild(ctx, s.opts.ParentID, s.opts.Space, doc, payload)
	return err
}

func (s *Syncer) phase(p Phase) {
	if s.opts.OnPhase != nil {
		s.opts.OnPhase(p)
	}
}

func (r *Report) add(res publish.Result) {
	switch res.Outcome {
	case publish.OutcomeUpdated:
		r.Updated = append(r.Updated, res.Document)
	case publish.OutcomeSkipped:
		r.Skipped = append(r.Skipped, res.Document)
	case publish.OutcomePlanned:
		r.Planned = append(r.Planned, res.Document)
	case publish.OutcomeFailed:
		r.Failed = append(r.Failed, res.Document)
	}
}

func (r *Report) finish() {
	for _, list := range [][]string{r.Updated, r.Skipped, r.Planned, r.Failed} {
		sort.Strings(list)
	}
}
