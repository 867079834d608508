package render

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
)

func TestRenderHeaderMode(t *testing.T) {
	r, err := New("header.tmpl", "<!-- synced from {{.Filename}} ({{upper .Name}}) -->\n")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.Wraps() {
		t.Fatal("header template must not wrap")
	}

	content := []byte("# A\n\n{{ not a template }}\r\n")
	got, err := r.Render("a.md", content)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := "<!-- synced from a.md (A) -->\n" + string(content)
	if string(got) != want {
		t.Errorf("Render mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRenderWrapperMode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"field", "<h1>{{trimExt .Filename}}</h1>{{.Content}}", "<h1>A</h1>body"},
		{"inside if", "{{if .Content}}[{{.Content}}]{{else}}empty{{end}}", "[body]"},
		{"inside with", "{{with .Content}}<{{.}}>{{end}}", "<body>"},
		{"piped", "{{.Content | lower}}", "body"},
		{"defined template", `{{define "page"}}{{.Content}}!{{end}}{{template "page" .}}`, "body!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("wrap.tmpl", tt.text)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if !r.Wraps() {
				t.Fatal("expected wrapper mode")
			}
			got, err := r.Render("A.md", []byte("body"))
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	r, err := New("h", "{{.Name}}\n")
	if err != nil {
		t.Fatal(err)
	}
	first, _ := r.Render("X.md", []byte("same"))
	second, _ := r.Render("X.md", []byte("same"))
	if string(first) != string(second) {
		t.Errorf("renders differ: %q vs %q", first, second)
	}
}

func TestTemplateErrors(t *testing.T) {
	_, err := New("bad.tmpl", "{{.Filename")
	var te *TemplateError
	if !errors.As(err, &te) {
		t.Fatalf("expected TemplateError on parse, got %v", err)
	}
	if te.Path != "bad.tmpl" {
		t.Errorf("expected path bad.tmpl, got %q", te.Path)
	}

	r, err := New("exec.tmpl", "{{index .Filename 99}}")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := r.Render("a.md", nil); !errors.As(err, &te) {
		t.Fatalf("expected TemplateError on execute, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/cfg/header.tmpl", []byte("H:{{.Filename}}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(fsys, "/cfg/header.tmpl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, err := r.Render("B.md", []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "H:B.md\nb" {
		t.Errorf("unexpected payload %q", got)
	}

	_, err = Load(fsys, "/cfg/missing.tmpl")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
