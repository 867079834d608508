// Package remote discovers the current child pages of the configured parent.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/wikisync/wikisync/internal/gateway"
)

const (
	// DefaultPageSize is the listing page size used by the wiki API.
	DefaultPageSize = 100

	// DumpFileName is the snapshot written to the state directory each run.
	DumpFileName = "page_list_dump.json"
)

// DefaultExpand is the field expansion requested with every listing page.
// Page bodies are not needed, and expanding them makes some servers lower
// the page size.
var DefaultExpand = []string{}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	PageSize int
	Expand   []string
	// DumpFS and DumpPath select where the fetched snapshot is written.
	// No dump is written when DumpFS is nil or DumpPath is empty.
	DumpFS   afero.Fs
	DumpPath string
	Logger   *log.Logger
}

// Reader fetches and normalizes remote listings.
type Reader struct {
	gw       gateway.Gateway
	pageSize int
	expand   []string
	dumpFS   afero.Fs
	dumpPath string
	logger   *log.Logger
}

// NewReader creates a Reader over gw.
func NewReader(gw gateway.Gateway, opts ReaderOptions) *Reader {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Expand == nil {
		opts.Expand = DefaultExpand
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Reader{
		gw:       gw,
		pageSize: opts.PageSize,
		expand:   opts.Expand,
		dumpFS:   opts.DumpFS,
		dumpPath: opts.DumpPath,
		logger:   opts.Logger,
	}
}

// Fetch pages through the children of parentID until an empty or short page
// and returns every well-formed entry, unfiltered. A page is short when it
// holds fewer entries than the limit the server applied. The snapshot is
// written to the dump file before returning.
func (r *Reader) Fetch(ctx context.Context, parentID string) ([]Entry, error) {
	var (
		entries []Entry
		dropped int
	)

	for start := 0; ; {
		page, err := r.gw.ListChildren(ctx, parentID, gateway.ListOptions{
			Start:  start,
			Limit:  r.pageSize,
			Expand: r.expand,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", parentID, err)
		}

		for _, raw := range page.Entries {
			e, err := Normalize(raw)
			if err != nil {
				dropped++
				r.logger.Printf("WARNING: ignoring listing record: %v", err)
				continue
			}
			entries = append(entries, e)
		}

		limit := r.pageSize
		if page.Limit > 0 && page.Limit < limit {
			limit = page.Limit
		}
		if len(page.Entries) == 0 || len(page.Entries) < limit {
			break
		}
		start += len(page.Entries)
	}

	r.logger.Printf("Fetched %d remote pages under %s (%d malformed)", len(entries), parentID, dropped)

	if err := r.dump(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Children fetches the listing and keeps only direct children of parentID.
func (r *Reader) Children(ctx context.Context, parentID string) ([]Entry, error) {
	entries, err := r.Fetch(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return FilterChildren(entries, parentID), nil
}

func (r *Reader) dump(entries []Entry) error {
	if r.dumpFS == nil || r.dumpPath == "" {
		return nil
	}
	if entries == nil {
		entries = []Entry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode page list: %w", err)
	}
	if err := r.dumpFS.MkdirAll(filepath.Dir(r.dumpPath), 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	if err := afero.WriteFile(r.dumpFS, r.dumpPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write page list dump: %w", err)
	}
	return nil
}
