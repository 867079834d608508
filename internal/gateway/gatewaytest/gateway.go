// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/wikisync/wikisync/internal/gateway"
)

// TypeMemory is the backend type reported by the fake.
const TypeMemory gateway.Type = "memory"

// Shape selects how listing records are encoded.
type Shape int

const (
	// ShapeFlat encodes records as {"id", "title", "parentId"}
	ShapeFlat Shape = iota
	// ShapeAttributes nests the fields under "attributes"
	ShapeAttributes
)

// Page is one stored wiki page.
type Page struct {
	ID       string
	ParentID string
	Space    string
	Title    string
	Body     []byte
	Version  int
}

// Call records one gateway invocation.
type Call struct {
	Op     string
	Target string
}

// Gateway is a concurrency-safe in-memory wiki.
type Gateway struct {
	mu     sync.Mutex
	pages  map[string]*Page
	nextID int
	calls  []Call

	// Fail maps a title or page id to the error returned for any write to it.
	Fail map[string]error

	// ListFail, when set, is returned by ListChildren.
	ListFail error

	// Shape selects the record encoding of ListChildren.
	Shape Shape

	// Extra records are appended to every listing, after the real children.
	Extra []gateway.RawEntry

	// MaxLimit, when positive, caps the page size like a server that
	// lowers the requested limit. The applied limit is reported.
	MaxLimit int
}

// New returns an empty fake wiki.
func New() *Gateway {
	return &Gateway{
		pages:  make(map[string]*Page),
		nextID: 1000,
		Fail:   make(map[string]error),
	}
}

// AddPage stores a page directly without recording a call and returns its id.
func (g *Gateway) AddPage(parentID, title string, body []byte) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.create(parentID, "", title, body)
}

func (g *Gateway) create(parentID, space, title string, body []byte) string {
	g.nextID++
	id := strconv.Itoa(g.nextID)
	g.pages[id] = &Page{ID: id, ParentID: parentID, Space: space, Title: title, Body: body, Version: 1}
	return id
}

func (g *Gateway) record(op, target string) {
	g.calls = append(g.calls, Call{Op: op, Target: target})
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() gateway.Type {
	return TypeMemory
}

// CreateOrUpdateChild implements gateway.Gateway.
func (g *Gateway) CreateOrUpdateChild(ctx context.Context, parentID, space, title string, payload []byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record(gateway.OpCreateOrUpdate, title)
	if err := g.Fail[title]; err != nil {
		return "", gateway.NewRemoteError(gateway.OpCreateOrUpdate, title, 0, err)
	}

	for _, p := range g.pages {
		if p.Title == title && (p.Space == space || p.Space == "") {
			p.ParentID = parentID
			p.Space = space
			p.Body = append([]byte(nil), payload...)
			p.Version++
			return p.ID, nil
		}
	}
	return g.create(parentID, space, title, append([]byte(nil), payload...)), nil
}

// UpdateByID implements gateway.Gateway.
func (g *Gateway) UpdateByID(ctx context.Context, pageID, title string, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record(gateway.OpUpdateByID, pageID)
	if err := g.Fail[pageID]; err != nil {
		return gateway.NewRemoteError(gateway.OpUpdateByID, pageID, 0, err)
	}

	p, ok := g.pages[pageID]
	if !ok {
		return gateway.NewRemoteError(gateway.OpUpdateByID, pageID, 404, gateway.ErrNotFound)
	}
	p.Title = title
	p.Body = append([]byte(nil), payload...)
	p.Version++
	return nil
}

// ListChildren implements gateway.Gateway.
func (g *Gateway) ListChildren(ctx context.Context, parentID string, opts gateway.ListOptions) (gateway.Page, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record(gateway.OpListChildren, fmt.Sprintf("%s@%d", parentID, opts.Start))
	if g.ListFail != nil {
		return gateway.Page{}, gateway.NewRemoteError(gateway.OpListChildren, parentID, 0, g.ListFail)
	}

	limit := opts.Limit
	if g.MaxLimit > 0 && (limit <= 0 || limit > g.MaxLimit) {
		limit = g.MaxLimit
	}

	var children []*Page
	for _, p := range g.pages {
		if p.ParentID == parentID {
			children = append(children, p)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		a, _ := strconv.Atoi(children[i].ID)
		b, _ := strconv.Atoi(children[j].ID)
		return a < b
	})

	all := make([]gateway.RawEntry, 0, len(children)+len(g.Extra))
	for _, p := range children {
		all = append(all, g.encode(p))
	}
	all = append(all, g.Extra...)

	page := gateway.Page{Limit: limit}
	if opts.Start >= len(all) {
		return page, nil
	}
	end := len(all)
	if limit > 0 && opts.Start+limit < end {
		end = opts.Start + limit
	}
	page.Entries = all[opts.Start:end]
	return page, nil
}

func (g *Gateway) encode(p *Page) gateway.RawEntry {
	id, _ := strconv.Atoi(p.ID)
	fields := map[string]any{"id": id, "title": p.Title, "parentId": p.ParentID}
	var v any = fields
	if g.Shape == ShapeAttributes {
		v = map[string]any{"type": "page", "attributes": fields}
	}
	data, _ := json.Marshal(v)
	return data
}

// Delete implements gateway.Gateway.
func (g *Gateway) Delete(ctx context.Context, pageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record(gateway.OpDelete, pageID)
	if err := g.Fail[pageID]; err != nil {
		return gateway.NewRemoteError(gateway.OpDelete, pageID, 0, err)
	}
	if _, ok := g.pages[pageID]; !ok {
		return gateway.NewRemoteError(gateway.OpDelete, pageID, 404, gateway.ErrNotFound)
	}
	delete(g.pages, pageID)
	return nil
}

// Calls returns the recorded calls for op, or every call when op is empty.
func (g *Gateway) Calls(op string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Call
	for _, c := range g.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// Page returns a copy of the page with the given id.
func (g *Gateway) Page(id string) (Page, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pages[id]
	if !ok {
		return Page{}, false
	}
	return *p, true
}

// Titles returns the sorted titles of the direct children of parentID.
func (g *Gateway) Titles(parentID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var titles []string
	for _, p := range g.pages {
		if p.ParentID == parentID {
			titles = append(titles, p.Title)
		}
	}
	sort.Strings(titles)
	return titles
}

var _ gateway.Gateway = (*Gateway)(nil)
