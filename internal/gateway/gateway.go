// Package gateway provides a unified interface for remote wiki operations.
//
// This package abstracts the differences between the ways wikisync can talk
// to a wiki: directly over the Confluence REST API, or through an external
// command-line tool invoked as a subprocess. The design follows a strategy
// pattern with a registry of backends and a factory that selects one at
// startup.
//
// # Architecture
//
// The Gateway interface defines the four operations the sync engine needs:
//   - Create or update a child page by title under a parent
//   - Update a page by id (used for the root document)
//   - List the children of a page, one offset-based page at a time
//   - Delete a single page (never recursive)
//
// # Usage
//
//	gw, err := gateway.NewFactory(gateway.WithOperationLog(logger)).Create(gateway.Settings{
//	    Type:  gateway.TypeREST,
//	    URL:   "https://wiki.example.com",
//	    Token: token,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Implementations
//
//   - internal/gateway/rest: Confluence REST API over HTTP
//   - internal/gateway/cli: external command invoked per operation
//   - internal/gateway/gatewaytest: in-memory fake for tests
package gateway

import (
	"context"
	"time"
)

// Type represents the gateway backend type
type Type string

const (
	// TypeREST talks to the Confluence REST API directly
	TypeREST Type = "rest"

	// TypeCLI shells out to an external command-line tool
	TypeCLI Type = "cli"
)

// String returns the string representation of the gateway type
func (t Type) String() string {
	return string(t)
}

// Gateway defines the remote operations used by the sync engine.
//
// Implementations do not retry. Every failure is returned as a *RemoteError
// naming the operation and its target so the caller can attribute it to a
// single document.
type Gateway interface {
	// Name returns the backend type
	Name() Type

	// CreateOrUpdateChild updates the page titled title under parentID in
	// place, or creates it when no such page exists. Returns the page id.
	CreateOrUpdateChild(ctx context.Context, parentID, space, title string, payload []byte) (string, error)

	// UpdateByID replaces the content and title of an existing page.
	UpdateByID(ctx context.Context, pageID, title string, payload []byte) error

	// ListChildren returns one page of the children listing of parentID.
	// An empty page signals the end of the listing.
	ListChildren(ctx context.Context, parentID string, opts ListOptions) (Page, error)

	// Delete removes a single page. Descendants of the page are left alone.
	Delete(ctx context.Context, pageID string) error
}

// RawEntry is one child record exactly as the backend returned it, encoded
// as JSON. Backends disagree on the record shape; internal/remote normalizes
// them.
type RawEntry []byte

// Page is one listing page.
type Page struct {
	Entries []RawEntry

	// Limit is the page size the server applied, which may be lower than
	// the requested one. Zero means the server did not report it.
	Limit int
}

// ListOptions configures a ListChildren call
type ListOptions struct {
	// Start is the zero-based offset of the first record to return
	Start int

	// Limit is the maximum number of records to return
	Limit int

	// Expand lists extra fields the backend should include
	Expand []string
}

// Settings carries everything a backend constructor may need. Each backend
// reads only the fields relevant to it.
type Settings struct {
	// Type selects the backend
	Type Type

	// URL is the wiki base URL (rest)
	URL string

	// Token is the bearer token (rest)
	Token string

	// Command is the argv prefix of the external tool (cli)
	Command []string

	// Connection names a connection profile of the external tool (cli)
	Connection string

	// WorkDir is the working directory for the external tool (cli)
	WorkDir string

	// Timeout bounds each remote operation. Zero means no timeout.
	Timeout time.Duration
}

// DefaultTimeout is used when Settings.Timeout is not set by the factory
// caller.
const DefaultTimeout = 60 * time.Second
