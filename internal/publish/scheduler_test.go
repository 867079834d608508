package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/wikisync/wikisync/internal/docs"
	"github.com/wikisync/wikisync/internal/fingerprint"
	"github.com/wikisync/wikisync/internal/logging"
	"github.com/wikisync/wikisync/internal/render"
)

// fixture wires a scheduler over an in-memory filesystem.
type fixture struct {
	fs    afero.Fs
	store *fingerprint.Store
	sched *Scheduler
	log   *syncBuffer
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFixture(t *testing.T, files map[string]string, opts Options) *fixture {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, filepath.Join("/docs", name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	r, err := render.New("header", "<!-- {{.Filename}} -->\n")
	if err != nil {
		t.Fatal(err)
	}

	out := &syncBuffer{}
	opts.Logger = log.New(out, "", 0)
	store := fingerprint.NewStore(fsys, "/state")

	return &fixture{
		fs:    fsys,
		store: store,
		sched: New(docs.NewSource(fsys, "/docs", ""), r, store, opts),
		log:   out,
	}
}

// recorder is a PublishFunc that records every published document.
type recorder struct {
	mu   sync.Mutex
	docs []string
	fail map[string]error
}

func (r *recorder) publish(ctx context.Context, doc string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return r.fail[doc]
}

func TestProcessUpdatesThenSkips(t *testing.T) {
	f := newFixture(t, map[string]string{"A.md": "alpha"}, Options{})
	rec := &recorder{}

	res := f.sched.Process(context.Background(), "A.md", rec.publish)
	if res.Outcome != OutcomeUpdated || res.Err != nil {
		t.Fatalf("first run: %+v", res)
	}

	res = f.sched.Process(context.Background(), "A.md", rec.publish)
	if res.Outcome != OutcomeSkipped {
		t.Fatalf("second run: expected skipped, got %+v", res)
	}

	if diff := cmp.Diff([]string{"A.md"}, rec.docs); diff != "" {
		t.Errorf("publish calls (-want +got):\n%s", diff)
	}
	logs := f.log.String()
	if !strings.Contains(logs, "Updating: A.md") || !strings.Contains(logs, "Skipping (already synced): A.md") {
		t.Errorf("unexpected log output:\n%s", logs)
	}

	payload, err := afero.ReadFile(f.fs, "/state/A.md.confluence")
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "<!-- A.md -->\nalpha" {
		t.Errorf("unexpected rendered content %q", payload)
	}
	fp, ok, _ := f.store.ReadPrevious("A.md")
	if !ok || fp != fingerprint.Compute(payload) {
		t.Errorf("fingerprint %q does not match payload", fp)
	}
}

func TestProcessRepublishesChangedDocument(t *testing.T) {
	f := newFixture(t, map[string]string{"A.md": "v1"}, Options{})
	rec := &recorder{}

	f.sched.Process(context.Background(), "A.md", rec.publish)
	if err := afero.WriteFile(f.fs, "/docs/A.md", []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	res := f.sched.Process(context.Background(), "A.md", rec.publish)

	if res.Outcome != OutcomeUpdated {
		t.Fatalf("expected updated after edit, got %s", res.Outcome)
	}
	if len(rec.docs) != 2 {
		t.Errorf("expected 2 publishes, got %d", len(rec.docs))
	}
}

func TestProcessFailureKeepsFingerprint(t *testing.T) {
	f := newFixture(t, map[string]string{"A.md": "alpha"}, Options{})
	boom := errors.New("boom")
	rec := &recorder{fail: map[string]error{"A.md": boom}}

	res := f.sched.Process(context.Background(), "A.md", rec.publish)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("expected boom in chain, got %v", res.Err)
	}
	var je *JobError
	if !errors.As(res.Err, &je) || je.Document != "A.md" {
		t.Errorf("expected JobError for A.md, got %v", res.Err)
	}
	if _, ok, _ := f.store.ReadPrevious("A.md"); ok {
		t.Error("fingerprint must not be written after a failed publish")
	}
}

func TestProcessMissingDocument(t *testing.T) {
	f := newFixture(t, nil, Options{})
	rec := &recorder{}

	res := f.sched.Process(context.Background(), "gone.md", rec.publish)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if len(rec.docs) != 0 {
		t.Error("publish must not be called for unreadable document")
	}
}

func TestRunAllDrainsThenFails(t *testing.T) {
	files := make(map[string]string)
	var names []string
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("doc%02d.md", i)
		files[name] = "content " + name
		names = append(names, name)
	}
	f := newFixture(t, files, Options{Workers: 3})
	rec := &recorder{fail: map[string]error{"doc04.md": errors.New("remote rejected")}}

	results, err := f.sched.RunAll(context.Background(), names, rec.publish)

	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateError, got %v", err)
	}
	if diff := cmp.Diff([]string{"doc04.md"}, agg.Documents()); diff != "" {
		t.Errorf("failed documents (-want +got):\n%s", diff)
	}
	if len(rec.docs) != 10 {
		t.Errorf("expected all 10 jobs to run, got %d", len(rec.docs))
	}

	persisted := 0
	for _, name := range names {
		if _, ok, _ := f.store.ReadPrevious(name); ok {
			persisted++
		}
	}
	if persisted != 9 {
		t.Errorf("expected 9 fingerprints, got %d", persisted)
	}

	for i, r := range results {
		if r.Document != names[i] {
			t.Errorf("result %d is %s, want %s", i, r.Document, names[i])
		}
	}
	if got := Count(results, OutcomeUpdated); got != 9 {
		t.Errorf("expected 9 updated, got %d", got)
	}
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	files := make(map[string]string)
	var names []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("%d.md", i)
		files[name] = name
		names = append(names, name)
	}
	f := newFixture(t, files, Options{Workers: 2})

	var inFlight, peak int32
	slow := func(ctx context.Context, doc string, payload []byte) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	if _, err := f.sched.RunAll(context.Background(), names, slow); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent publishes, saw %d", peak)
	}
}

func TestRunAllDryRun(t *testing.T) {
	f := newFixture(t, map[string]string{"A.md": "a", "B.md": "b"}, Options{DryRun: true})
	rec := &recorder{}

	results, err := f.sched.RunAll(context.Background(), []string{"A.md", "B.md"}, rec.publish)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if len(rec.docs) != 0 {
		t.Errorf("dry run published %v", rec.docs)
	}
	if diff := cmp.Diff([]string{"A.md", "B.md"}, Documents(results, OutcomePlanned)); diff != "" {
		t.Errorf("planned documents (-want +got):\n%s", diff)
	}
	if exists, _ := afero.DirExists(f.fs, "/state"); exists {
		t.Error("dry run must not write state")
	}
	if !strings.Contains(f.log.String(), "Would update: A.md") {
		t.Errorf("missing dry run log:\n%s", f.log.String())
	}
}

func TestAggregateErrorSortedAndUnwraps(t *testing.T) {
	target := errors.New("target")
	agg := newAggregateError([]*JobError{
		{Document: "z.md", Err: errors.New("late")},
		{Document: "a.md", Err: target},
	})

	if diff := cmp.Diff([]string{"a.md", "z.md"}, agg.Documents()); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if !errors.Is(agg, target) {
		t.Error("errors.Is must see through AggregateError")
	}
	want := "2 documents failed to sync: a.md: target; z.md: late"
	if agg.Error() != want {
		t.Errorf("Error() = %q, want %q", agg.Error(), want)
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(nil, nil, nil, Options{Workers: 0, Logger: logging.Discard()})
	if s.Workers() != DefaultWorkers {
		t.Errorf("expected %d workers, got %d", DefaultWorkers, s.Workers())
	}
}
