// Package cli implements the gateway interface by invoking an external
// wiki command-line tool once per operation.
//
// The tool is configured as an argv prefix (for example
// ["confluence"] or ["docker", "run", "--rm", "-i", "wiki-tool"]) and must
// understand these subcommands:
//
//	page upsert   --parent ID --space KEY --title T   (content on stdin, prints the page as JSON)
//	page update   --id ID --title T                   (content on stdin)
//	page children --id ID --start N --limit N [--expand F,...]
//	page delete   --id ID
//
// When a connection name is configured, "--connection NAME" is inserted
// right after the argv prefix. The children listing may be printed as a JSON
// array, as an object with a "results" array, or as one JSON object per line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wikisync/wikisync/internal/gateway"
)

func init() {
	gateway.Register(gateway.TypeCLI, func(s gateway.Settings) (gateway.Gateway, error) {
		return New(s)
	})
}

// Runner executes one command and returns its stdout.
// gateway.ExecContext is the production runner.
type Runner func(ctx context.Context, timeout time.Duration, workDir string, stdin []byte, name string, args ...string) ([]byte, error)

// Tool implements gateway.Gateway by running an external command.
type Tool struct {
	command    []string
	connection string
	workDir    string
	timeout    time.Duration
	run        Runner
}

// New creates a Tool from settings. Command is required.
func New(s gateway.Settings) (*Tool, error) {
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return nil, errors.New("cli command is required")
	}
	return &Tool{
		command:    append([]string(nil), s.Command...),
		connection: s.Connection,
		workDir:    s.WorkDir,
		timeout:    s.Timeout,
		run:        gateway.ExecContext,
	}, nil
}

// WithRunner replaces the command runner. Used by tests.
func (t *Tool) WithRunner(r Runner) *Tool {
	t.run = r
	return t
}

// Name returns gateway.TypeCLI
func (t *Tool) Name() gateway.Type {
	return gateway.TypeCLI
}

// CreateOrUpdateChild runs "page upsert" and returns the printed page id.
func (t *Tool) CreateOrUpdateChild(ctx context.Context, parentID, space, title string, payload []byte) (string, error) {
	out, err := t.exec(ctx, gateway.OpCreateOrUpdate, title, payload,
		"page", "upsert", "--parent", parentID, "--space", space, "--title", title)
	if err != nil {
		return "", err
	}

	id := firstString(gjson.ParseBytes(out), "id", "attributes.id", "Id")
	if id == "" {
		return "", gateway.NewRemoteError(gateway.OpCreateOrUpdate, title, 0,
			fmt.Errorf("%w: upsert printed no page id", gateway.ErrBadResponse))
	}
	return id, nil
}

// UpdateByID runs "page update".
func (t *Tool) UpdateByID(ctx context.Context, pageID, title string, payload []byte) error {
	_, err := t.exec(ctx, gateway.OpUpdateByID, pageID, payload,
		"page", "update", "--id", pageID, "--title", title)
	return err
}

// ListChildren runs "page children" and splits its output into records.
func (t *Tool) ListChildren(ctx context.Context, parentID string, opts gateway.ListOptions) (gateway.Page, error) {
	args := []string{"page", "children", "--id", parentID,
		"--start", strconv.Itoa(opts.Start), "--limit", strconv.Itoa(opts.Limit)}
	if len(opts.Expand) > 0 {
		args = append(args, "--expand", strings.Join(opts.Expand, ","))
	}

	out, err := t.exec(ctx, gateway.OpListChildren, parentID, nil, args...)
	if err != nil {
		return gateway.Page{}, err
	}

	page, err := splitRecords(out)
	if err != nil {
		return gateway.Page{}, gateway.NewRemoteError(gateway.OpListChildren, parentID, 0, err)
	}
	return page, nil
}

// Delete runs "page delete".
func (t *Tool) Delete(ctx context.Context, pageID string) error {
	_, err := t.exec(ctx, gateway.OpDelete, pageID, nil, "page", "delete", "--id", pageID)
	return err
}

func (t *Tool) exec(ctx context.Context, op, target string, stdin []byte, args ...string) ([]byte, error) {
	argv := append([]string(nil), t.command[1:]...)
	if t.connection != "" {
		argv = append(argv, "--connection", t.connection)
	}
	argv = append(argv, args...)

	out, err := t.run(ctx, t.timeout, t.workDir, stdin, t.command[0], argv...)
	if err == nil {
		return out, nil
	}

	status := 0
	cause := fmt.Errorf("%w: %v", gateway.ErrCommandFailed, err)
	var exitErr *gateway.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.Code
		stderr := strings.ToLower(exitErr.Stderr)
		switch {
		case strings.Contains(stderr, "not found"):
			cause = fmt.Errorf("%w: %w: %v", gateway.ErrCommandFailed, gateway.ErrNotFound, err)
		case strings.Contains(stderr, "unauthorized"), strings.Contains(stderr, "permission"):
			cause = fmt.Errorf("%w: %w: %v", gateway.ErrCommandFailed, gateway.ErrUnauthorized, err)
		}
	}
	return nil, gateway.NewRemoteError(op, target, status, cause)
}

// splitRecords accepts a JSON array, an object with a "results" array, or
// newline-delimited JSON objects. Only the object form can report the
// applied limit.
func splitRecords(out []byte) (gateway.Page, error) {
	var page gateway.Page
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return page, nil
	}

	doc := gjson.Parse(trimmed)
	var list gjson.Result
	switch {
	case doc.IsArray():
		list = doc
	case doc.IsObject() && doc.Get("results").IsArray():
		list = doc.Get("results")
		page.Limit = int(doc.Get("limit").Int())
	default:
		for _, line := range gateway.ParseLines([]byte(trimmed)) {
			if !gjson.Valid(line) {
				return gateway.Page{}, fmt.Errorf("%w: invalid JSON record %q", gateway.ErrBadResponse, line)
			}
			page.Entries = append(page.Entries, gateway.RawEntry(line))
		}
		return page, nil
	}

	if !gjson.Valid(trimmed) {
		return gateway.Page{}, fmt.Errorf("%w: invalid JSON listing", gateway.ErrBadResponse)
	}
	for _, v := range list.Array() {
		page.Entries = append(page.Entries, gateway.RawEntry(v.Raw))
	}
	return page, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
