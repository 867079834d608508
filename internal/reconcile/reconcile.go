// Package reconcile removes remote child pages that no longer have a local
// document.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/wikisync/wikisync/internal/gateway"
	"github.com/wikisync/wikisync/internal/remote"
)

// DefaultRootDocument is the document published as the parent page itself.
const DefaultRootDocument = "README.md"

// ConfirmFunc is asked once with the full set of pages about to be deleted.
// Returning false skips pruning.
type ConfirmFunc func(orphans []remote.Entry) (bool, error)

// Options configures a Reconciler.
type Options struct {
	RootDocument string
	DryRun       bool
	Confirm      ConfirmFunc
	Logger       *log.Logger
}

// Reconciler deletes orphaned child pages.
type Reconciler struct {
	gw      gateway.Gateway
	root    string
	dryRun  bool
	confirm ConfirmFunc
	logger  *log.Logger
}

// New creates a Reconciler.
func New(gw gateway.Gateway, opts Options) *Reconciler {
	if opts.RootDocument == "" {
		opts.RootDocument = DefaultRootDocument
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Reconciler{
		gw:      gw,
		root:    opts.RootDocument,
		dryRun:  opts.DryRun,
		confirm: opts.Confirm,
		logger:  opts.Logger,
	}
}

// Orphans returns the entries whose title has no local document, plus any
// child carrying the root document's title, since the root document is the
// parent page and never one of its children. Remote order is preserved.
func Orphans(entries []remote.Entry, local []string, rootDocument string) []remote.Entry {
	have := make(map[string]struct{}, len(local))
	for _, name := range local {
		have[name] = struct{}{}
	}

	var out []remote.Entry
	for _, e := range entries {
		if _, ok := have[e.Title]; ok && e.Title != rootDocument {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Prune deletes the orphans among entries and returns the ones deleted (or,
// in a dry run, the ones that would be). The first failed delete aborts the
// pass. Deletion is never recursive.
func (r *Reconciler) Prune(ctx context.Context, entries []remote.Entry, local []string) ([]remote.Entry, error) {
	orphans := Orphans(entries, local, r.root)
	if len(orphans) == 0 {
		return nil, nil
	}

	if r.dryRun {
		for _, e := range orphans {
			r.logger.Printf("Would delete: %s", e.Title)
		}
		return orphans, nil
	}

	if r.confirm != nil {
		ok, err := r.confirm(orphans)
		if err != nil {
			return nil, fmt.Errorf("prune confirmation failed: %w", err)
		}
		if !ok {
			r.logger.Printf("Pruning of %d pages declined", len(orphans))
			return nil, nil
		}
	}

	var deleted []remote.Entry
	for _, e := range orphans {
		r.logger.Printf("Deleting: %s", e.Title)
		if err := r.gw.Delete(ctx, e.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete %q (%s): %w", e.Title, e.ID, err)
		}
		deleted = append(deleted, e)
	}
	return deleted, nil
}
