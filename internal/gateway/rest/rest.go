// Package rest implements the gateway interface on top of the Confluence
// REST API.
//
// Pages are addressed with the content endpoints:
//
//	GET    /rest/api/content?spaceKey=&title=     lookup by title
//	POST   /rest/api/content                      create
//	PUT    /rest/api/content/{id}                 update (version + 1)
//	GET    /rest/api/content/{id}/child/page      list children
//	DELETE /rest/api/content/{id}                 delete (not recursive)
//
// Authentication uses a personal access token sent as a bearer token.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/wikisync/wikisync/internal/gateway"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

func init() {
	gateway.Register(gateway.TypeREST, func(s gateway.Settings) (gateway.Gateway, error) {
		return New(s)
	})
}

// Client implements gateway.Gateway for the Confluence REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a REST client from settings. URL is required.
func New(s gateway.Settings) (*Client, error) {
	if s.URL == "" {
		return nil, errors.New("confluence url is required")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid confluence url %q: %w", s.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid confluence url %q: scheme must be http or https", s.URL)
	}

	return &Client{
		baseURL: strings.TrimRight(s.URL, "/"),
		token:   s.Token,
		http:    &http.Client{Timeout: s.Timeout},
	}, nil
}

// Name returns gateway.TypeREST
func (c *Client) Name() gateway.Type {
	return gateway.TypeREST
}

// storage is the request body shape of a page write.
type storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type pageRef struct {
	ID string `json:"id"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type version struct {
	Number int `json:"number"`
}

type pageBody struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Space     *spaceRef `json:"space,omitempty"`
	Ancestors []pageRef `json:"ancestors,omitempty"`
	Body      struct {
		Storage storage `json:"storage"`
	} `json:"body"`
	Version *version `json:"version,omitempty"`
}

func newPageBody(title string, payload []byte) *pageBody {
	b := &pageBody{Type: "page", Title: title}
	b.Body.Storage = storage{Value: string(payload), Representation: "storage"}
	return b
}

// CreateOrUpdateChild looks the page up by space and title, updating it in
// place (and moving it under parentID) when found, creating it otherwise.
func (c *Client) CreateOrUpdateChild(ctx context.Context, parentID, space, title string, payload []byte) (string, error) {
	id, current, found, err := c.findByTitle(ctx, space, title)
	if err != nil {
		return "", err
	}

	body := newPageBody(title, payload)
	body.Space = &spaceRef{Key: space}
	body.Ancestors = []pageRef{{ID: parentID}}

	if found {
		body.ID = id
		body.Version = &version{Number: current + 1}
		if _, err := c.do(ctx, gateway.OpCreateOrUpdate, title, http.MethodPut, "/rest/api/content/"+url.PathEscape(id), nil, body); err != nil {
			return "", err
		}
		return id, nil
	}

	data, err := c.do(ctx, gateway.OpCreateOrUpdate, title, http.MethodPost, "/rest/api/content", nil, body)
	if err != nil {
		return "", err
	}
	newID := gjson.GetBytes(data, "id").String()
	if newID == "" {
		return "", gateway.NewRemoteError(gateway.OpCreateOrUpdate, title, 0,
			fmt.Errorf("%w: create response has no id", gateway.ErrBadResponse))
	}
	return newID, nil
}

// UpdateByID replaces the title and content of page pageID.
func (c *Client) UpdateByID(ctx context.Context, pageID, title string, payload []byte) error {
	data, err := c.do(ctx, gateway.OpUpdateByID, pageID, http.MethodGet,
		"/rest/api/content/"+url.PathEscape(pageID), url.Values{"expand": {"version"}}, nil)
	if err != nil {
		return err
	}

	body := newPageBody(title, payload)
	body.ID = pageID
	body.Version = &version{Number: int(gjson.GetBytes(data, "version.number").Int()) + 1}

	_, err = c.do(ctx, gateway.OpUpdateByID, pageID, http.MethodPut, "/rest/api/content/"+url.PathEscape(pageID), nil, body)
	return err
}

// ListChildren returns one page of the child listing along with the limit
// the server applied. Each record is annotated with a parentId taken from
// its ancestors, or the queried parent when the server did not include them.
func (c *Client) ListChildren(ctx context.Context, parentID string, opts gateway.ListOptions) (gateway.Page, error) {
	query := url.Values{
		"start": {strconv.Itoa(opts.Start)},
		"limit": {strconv.Itoa(opts.Limit)},
	}
	expand := append([]string(nil), opts.Expand...)
	if !slices.Contains(expand, "ancestors") {
		expand = append(expand, "ancestors")
	}
	query.Set("expand", strings.Join(expand, ","))

	data, err := c.do(ctx, gateway.OpListChildren, parentID, http.MethodGet,
		"/rest/api/content/"+url.PathEscape(parentID)+"/child/page", query, nil)
	if err != nil {
		return gateway.Page{}, err
	}

	results := gjson.GetBytes(data, "results")
	if !results.IsArray() {
		return gateway.Page{}, gateway.NewRemoteError(gateway.OpListChildren, parentID, 0,
			fmt.Errorf("%w: listing has no results array", gateway.ErrBadResponse))
	}

	page := gateway.Page{Limit: int(gjson.GetBytes(data, "limit").Int())}
	var annotateErr error
	results.ForEach(func(_, v gjson.Result) bool {
		raw := []byte(v.Raw)
		if !v.Get("parentId").Exists() {
			parent := parentID
			if ancestors := v.Get("ancestors").Array(); len(ancestors) > 0 {
				parent = ancestors[len(ancestors)-1].Get("id").String()
			}
			raw, annotateErr = sjson.SetBytes(raw, "parentId", parent)
			if annotateErr != nil {
				return false
			}
		}
		page.Entries = append(page.Entries, raw)
		return true
	})
	if annotateErr != nil {
		return gateway.Page{}, gateway.NewRemoteError(gateway.OpListChildren, parentID, 0,
			fmt.Errorf("%w: %v", gateway.ErrBadResponse, annotateErr))
	}
	return page, nil
}

// Delete removes page pageID without touching its children.
func (c *Client) Delete(ctx context.Context, pageID string) error {
	_, err := c.do(ctx, gateway.OpDelete, pageID, http.MethodDelete, "/rest/api/content/"+url.PathEscape(pageID), nil, nil)
	return err
}

func (c *Client) findByTitle(ctx context.Context, space, title string) (id string, current int, found bool, err error) {
	query := url.Values{
		"spaceKey": {space},
		"title":    {title},
		"type":     {"page"},
		"expand":   {"version"},
	}
	data, err := c.do(ctx, gateway.OpCreateOrUpdate, title, http.MethodGet, "/rest/api/content", query, nil)
	if err != nil {
		return "", 0, false, err
	}

	first := gjson.GetBytes(data, "results.0")
	if !first.Exists() {
		return "", 0, false, nil
	}
	return first.Get("id").String(), int(first.Get("version.number").Int()), true, nil
}

// do performs one API request and returns the response body of a 2xx
// answer. Any other outcome becomes a *gateway.RemoteError.
func (c *Client) do(ctx context.Context, op, target, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, gateway.NewRemoteError(op, target, 0, fmt.Errorf("failed to encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, gateway.NewRemoteError(op, target, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, gateway.NewRemoteError(op, target, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, gateway.NewRemoteError(op, target, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, gateway.NewRemoteError(op, target, resp.StatusCode, statusError(resp.StatusCode, data))
	}
	return data, nil
}

// statusError maps an HTTP status to a gateway sentinel, keeping the
// server's message.
func statusError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", gateway.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", gateway.ErrUnauthorized, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", gateway.ErrConflict, msg)
	default:
		return fmt.Errorf("%w: %s", gateway.ErrBadResponse, msg)
	}
}
