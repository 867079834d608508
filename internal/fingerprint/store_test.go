package fingerprint

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

func TestCompute(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Compute(nil); got != empty {
		t.Errorf("Compute(nil) = %s", got)
	}
	if Compute([]byte("a")) == Compute([]byte("b")) {
		t.Error("different payloads must differ")
	}
	if Compute([]byte("a")) != Compute([]byte("a")) {
		t.Error("same payload must match")
	}
}

func TestReadPreviousAbsent(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/state")

	fp, ok, err := s.ReadPrevious("A.md")
	if err != nil {
		t.Fatalf("ReadPrevious failed: %v", err)
	}
	if ok || fp != "" {
		t.Errorf("expected no record, got %q, %v", fp, ok)
	}
}

func TestWriteAndReadBack(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/state")
	fp := Compute([]byte("payload"))

	if err := s.Write("A.md", fp); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, ok, err := s.ReadPrevious("A.md")
	if err != nil || !ok {
		t.Fatalf("ReadPrevious = %q, %v, %v", got, ok, err)
	}
	if got != fp {
		t.Errorf("expected %s, got %s", fp, got)
	}

	// Persisted format is the bare hex digest.
	raw, err := afero.ReadFile(fsys, "/state/A.md.lastSynced")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != string(fp) {
		t.Errorf("unexpected file content %q", raw)
	}

	// No temp files left behind.
	entries, _ := afero.ReadDir(fsys, "/state")
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestReadPreviousTrimsWhitespace(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/state/A.md.lastSynced", []byte("abc123\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, ok, err := NewStore(fsys, "/state").ReadPrevious("A.md")
	if err != nil || !ok || got != "abc123" {
		t.Errorf("ReadPrevious = %q, %v, %v", got, ok, err)
	}
}

func TestWriteContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/state")

	if err := s.WriteContent("A.md", []byte("rendered")); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}
	raw, err := afero.ReadFile(fsys, filepath.Join("/state", "A.md"+ContentSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "rendered" {
		t.Errorf("unexpected content %q", raw)
	}

	// Content alone is not a sync record.
	if _, ok, _ := s.ReadPrevious("A.md"); ok {
		t.Error("content file must not count as a fingerprint")
	}
}

func TestForget(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/state")

	if err := s.Forget("never.md"); err != nil {
		t.Errorf("Forget of missing record failed: %v", err)
	}

	if err := s.Write("A.md", Compute([]byte("x"))); err != nil {
		t.Fatal(err)
	}
	if err := s.Forget("A.md"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if _, ok, _ := s.ReadPrevious("A.md"); ok {
		t.Error("record still present after Forget")
	}
}

func TestConcurrentWritesDifferentDocuments(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/state")
	docs := []string{"a.md", "b.md", "c.md", "d.md", "e.md", "f.md"}

	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc string) {
			defer wg.Done()
			if err := s.Write(doc, Compute([]byte(doc))); err != nil {
				t.Errorf("Write(%s) failed: %v", doc, err)
			}
		}(doc)
	}
	wg.Wait()

	for _, doc := range docs {
		fp, ok, err := s.ReadPrevious(doc)
		if err != nil || !ok || fp != Compute([]byte(doc)) {
			t.Errorf("%s: got %q, %v, %v", doc, fp, ok, err)
		}
	}
}
