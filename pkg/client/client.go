// Package client talks to a zephyrwiki node over its ?path= HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ryandielhenn/zephyrwiki/pkg/node"
	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

// APIError is a response whose envelope reported failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type Client struct {
	base   string
	wikiID string
	http   *http.Client
}

// New returns a client for the node at base, addressing wikiID (empty for
// the node's default wiki).
func New(base, wikiID string, timeout time.Duration) *Client {
	return &Client{base: base, wikiID: wikiID, http: &http.Client{Timeout: timeout}}
}

// WithWiki returns a copy addressing another wiki on the same node.
func (c *Client) WithWiki(wikiID string) *Client {
	cp := *c
	cp.wikiID = wikiID
	return &cp
}

func (c *Client) endpoint(op string, params url.Values) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("path", op)
	if c.wikiID != "" {
		q.Set("wikiId", c.wikiID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// do sends one request and decodes the envelope's data into out when non-nil.
func (c *Client) do(ctx context.Context, method, op string, params url.Values, body, out any) error {
	target, err := c.endpoint(op, params)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	var env node.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decoding response (status %d): %w", op, resp.StatusCode, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decoding data: %w", op, err)
		}
	}
	return nil
}

func (c *Client) Pages(ctx context.Context) ([]wiki.Page, error) {
	var out []wiki.Page
	if err := c.do(ctx, http.MethodGet, "pages", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Page(ctx context.Context, id string) (*wiki.Page, error) {
	var out wiki.Page
	if err := c.do(ctx, http.MethodGet, "page", url.Values{"id": {id}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PageByTitle(ctx context.Context, title string) (*wiki.Page, error) {
	var out wiki.Page
	if err := c.do(ctx, http.MethodGet, "page_by_title", url.Values{"title": {title}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*wiki.Stats, error) {
	var out wiki.Stats
	if err := c.do(ctx, http.MethodGet, "stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePage(ctx context.Context, req node.CreateRequest) (*wiki.Page, error) {
	var out wiki.Page
	if err := c.do(ctx, http.MethodPost, "create", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePage(ctx context.Context, req node.UpdateRequest) (*wiki.Page, error) {
	var out wiki.Page
	if err := c.do(ctx, http.MethodPost, "update", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "delete", nil, node.DeleteRequest{ID: id}, nil)
}

func (c *Client) Peers(ctx context.Context) ([]wiki.Peer, error) {
	var out []wiki.Peer
	if err := c.do(ctx, http.MethodGet, "peers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddPeer(ctx context.Context, peerURL, name string) (*wiki.Peer, error) {
	var out wiki.Peer
	if err := c.do(ctx, http.MethodPost, "add_peer", nil, node.PeerRequest{URL: peerURL, Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemovePeer(ctx context.Context, peerURL string) error {
	return c.do(ctx, http.MethodPost, "remove_peer", nil, node.PeerRequest{URL: peerURL}, nil)
}

func (c *Client) ExternalIndex(ctx context.Context) ([]wiki.ExternalWiki, error) {
	var out []wiki.ExternalWiki
	if err := c.do(ctx, http.MethodGet, "external_index", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddExternalWiki(ctx context.Context, req node.ExternalWikiRequest) error {
	return c.do(ctx, http.MethodPost, "add_external_wiki", nil, req, nil)
}

func (c *Client) RemoveExternalWiki(ctx context.Context, accessURL string) error {
	return c.do(ctx, http.MethodPost, "remove_external_wiki", nil, node.ExternalWikiRequest{AccessURL: accessURL}, nil)
}

func (c *Client) Mode(ctx context.Context) (wiki.Mode, error) {
	var out node.ModeResponse
	err := c.do(ctx, http.MethodGet, "mode", nil, nil, &out)
	return out.Mode, err
}

func (c *Client) SetMode(ctx context.Context, mode string) (wiki.Mode, error) {
	var out node.ModeResponse
	err := c.do(ctx, http.MethodPost, "set_mode", nil, node.ModeRequest{Mode: mode}, &out)
	return out.Mode, err
}
