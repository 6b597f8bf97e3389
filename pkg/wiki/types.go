// Package wiki holds the repositories and service that make up one wiki node:
// locally authored pages, replicas cached from peers, the peer registry, the
// external wiki directory, and the per-wiki mode gate.
//
// Every call takes a Scope naming the wiki it operates on. A single node can
// host several wikis, each with its own tables and mode.
package wiki

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultWikiID is used when a request names no wiki.
const DefaultWikiID = "default"

// UnknownOrigin marks a replica whose sender could not name itself.
const UnknownOrigin = "unknown-node"

// Scope identifies the wiki a repository call operates on.
type Scope struct {
	WikiID string
}

// NewScope returns the scope for wikiID, falling back to DefaultWikiID.
func NewScope(wikiID string) Scope {
	wikiID = strings.TrimSpace(wikiID)
	if wikiID == "" {
		wikiID = DefaultWikiID
	}
	return Scope{WikiID: wikiID}
}

type Mode string

const (
	ModeInternet  Mode = "internet"
	ModeWorkspace Mode = "workspace"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInternet, ModeWorkspace:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidMode, s)
	}
}

// Page is a wiki page. Origin is empty for pages authored on this node; a
// page with an origin is a replica owned by that node.
type Page struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	PolicyID  string    `json:"policyId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Origin    string    `json:"origin,omitempty"`
	Author    string    `json:"author,omitempty"`
}

// IsReplica reports whether p was received from another node.
func (p Page) IsReplica() bool { return p.Origin != "" }

type Peer struct {
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"isActive"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// ExternalWiki is an independently operated wiki listed for cross-wiki links.
type ExternalWiki struct {
	WikiID       string    `json:"wikiId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AccessURL    string    `json:"accessUrl"`
	RegisteredAt time.Time `json:"registeredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Tags         string    `json:"tags"`
}

// ErrFeatureUnavailable is returned by peer, gossip and external wiki
// operations while a wiki is in workspace mode.
var ErrFeatureUnavailable = errors.New("feature unavailable in workspace mode")

var ErrInvalidMode = errors.New("invalid mode")

// ValidationError reports a missing required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string { return e.Field + " required" }

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field}
	}
	return nil
}

// normalizeTags drops blanks and repeats, keeping first occurrences in order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
