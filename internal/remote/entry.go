package remote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wikisync/wikisync/internal/gateway"
)

// ErrMalformedEntry is returned by Normalize for records without an id or
// title.
var ErrMalformedEntry = errors.New("malformed page entry")

// Entry is one remote page, with ids in canonical form.
type Entry struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
	Title    string `json:"title"`
}

var (
	idPaths     = []string{"id", "Id", "ID", "attributes.id", "attributes.Id"}
	titlePaths  = []string{"title", "Title", "attributes.title", "attributes.Title"}
	parentPaths = []string{
		"parentId", "parent_id", "Parent id",
		"attributes.parentId", "attributes.parent_id", "attributes.Parent id",
		"parent.id",
	}
)

// Normalize converts one raw listing record into an Entry. Records may be
// flat or nest their fields under "attributes"; the parent may be given
// directly or as an ancestor list whose last element is the parent.
func Normalize(raw gateway.RawEntry) (Entry, error) {
	if !gjson.ValidBytes(raw) {
		return Entry{}, fmt.Errorf("%w: invalid JSON", ErrMalformedEntry)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Entry{}, fmt.Errorf("%w: not an object", ErrMalformedEntry)
	}

	e := Entry{
		ID:       CanonicalID(lookup(doc, idPaths)),
		Title:    lookup(doc, titlePaths),
		ParentID: CanonicalID(lookup(doc, parentPaths)),
	}
	if e.ParentID == "" {
		e.ParentID = CanonicalID(lastAncestor(doc))
	}

	if e.ID == "" {
		return Entry{}, fmt.Errorf("%w: missing id", ErrMalformedEntry)
	}
	if e.Title == "" {
		return Entry{}, fmt.Errorf("%w: page %s has no title", ErrMalformedEntry, e.ID)
	}
	return e, nil
}

func lookup(doc gjson.Result, paths []string) string {
	for _, p := range paths {
		v := doc.Get(p)
		if v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func lastAncestor(doc gjson.Result) string {
	for _, p := range []string{"ancestors", "attributes.ancestors"} {
		list := doc.Get(p)
		if !list.IsArray() {
			continue
		}
		items := list.Array()
		if len(items) == 0 {
			continue
		}
		last := items[len(items)-1]
		if last.IsObject() {
			return last.Get("id").String()
		}
		return last.String()
	}
	return ""
}

// CanonicalID returns the comparable form of a page id. Whitespace is
// trimmed and an all-digit id loses its leading zeros, so "00123", "123"
// and the JSON number 123 all compare equal.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !allDigits(id) {
		return id
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FilterChildren keeps the entries whose parent is parentID, excluding the
// parent page itself. Order is preserved.
func FilterChildren(entries []Entry, parentID string) []Entry {
	parent := CanonicalID(parentID)
	var out []Entry
	for _, e := range entries {
		if e.ID == parent {
			continue
		}
		if CanonicalID(e.ParentID) != parent {
			continue
		}
		out = append(out, e)
	}
	return out
}
