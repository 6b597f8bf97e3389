package gossip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Transport delivers one encoded message to one target URL.
type Transport interface {
	Send(ctx context.Context, target string, body []byte) error
}

// HTTPTransport POSTs JSON. Any non-2xx status is an error.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Send(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", target, resp.StatusCode)
	}
	return nil
}

// GossipURL addresses the gossip endpoint of the peer at base for wikiID.
func GossipURL(base, wikiID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?path=gossip&wikiId=" + url.QueryEscape(wikiID)
	}
	q := u.Query()
	q.Set("path", "gossip")
	q.Set("wikiId", wikiID)
	u.RawQuery = q.Encode()
	return u.String()
}
