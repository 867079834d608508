// Package render turns a local document into the payload that is published.
//
// A page template is a Go text/template. When the template refers to
// .Content it wraps the document and its output is the whole payload.
// Otherwise the template is a header: its output is followed by the raw
// document bytes, unchanged.
package render

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/spf13/afero"
)

// TemplateError reports a page template that could not be parsed or executed.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Data is what a page template sees.
type Data struct {
	// Filename is the document file name, e.g. "A.md".
	Filename string
	// Name is Filename without its extension.
	Name string
	// Content is the raw document.
	Content string
}

var funcs = template.FuncMap{
	"trimExt": trimExt,
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
}

// Renderer renders documents through one parsed page template.
type Renderer struct {
	name    string
	tmpl    *template.Template
	wrapper bool
}

// Load reads and parses the template file at path.
func Load(fs afero.Fs, path string) (*Renderer, error) {
	text, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page template: %w", err)
	}
	return New(path, string(text))
}

// New parses an in-memory template. name is used in error messages.
func New(name, text string) (*Renderer, error) {
	tmpl, err := template.New(filepath.Base(name)).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &TemplateError{Path: name, Err: err}
	}
	return &Renderer{
		name:    name,
		tmpl:    tmpl,
		wrapper: usesContent(tmpl),
	}, nil
}

// Wraps reports whether the template embeds the document itself.
func (r *Renderer) Wraps() bool {
	return r.wrapper
}

// Render produces the payload for one document. The result depends only on
// the template and the arguments.
func (r *Renderer) Render(filename string, content []byte) ([]byte, error) {
	data := Data{
		Filename: filename,
		Name:     trimExt(filename),
		Content:  string(content),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, &TemplateError{Path: r.name, Err: fmt.Errorf("rendering %s: %w", filename, err)}
	}
	if !r.wrapper {
		buf.Write(content)
	}
	return buf.Bytes(), nil
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// usesContent walks every tree of the template looking for a .Content field.
func usesContent(tmpl *template.Template) bool {
	for _, t := range tmpl.Templates() {
		if t.Tree != nil && walk(t.Tree.Root) {
			return true
		}
	}
	return false
}

func walk(node parse.Node) bool {
	switch n := node.(type) {
	case nil:
		return false
	case *parse.ListNode:
		if n == nil {
			return false
		}
		for _, c := range n.Nodes {
			if walk(c) {
				return true
			}
		}
	case *parse.ActionNode:
		return walk(n.Pipe)
	case *parse.PipeNode:
		if n == nil {
			return false
		}
		for _, c := range n.Cmds {
			if walk(c) {
				return true
			}
		}
	case *parse.CommandNode:
		for _, a := range n.Args {
			if walk(a) {
				return true
			}
		}
	case *parse.FieldNode:
		return len(n.Ident) > 0 && n.Ident[0] == "Content"
	case *parse.ChainNode:
		if len(n.Field) > 0 && n.Field[0] == "Content" {
			return true
		}
		return walk(n.Node)
	case *parse.IfNode:
		return walk(n.Pipe) || walk(n.List) || walk(n.ElseList)
	case *parse.RangeNode:
		return walk(n.Pipe) || walk(n.List) || walk(n.ElseList)
	case *parse.WithNode:
		return walk(n.Pipe) || walk(n.List) || walk(n.ElseList)
	case *parse.TemplateNode:
		return walk(n.Pipe)
	}
	return false
}
