package gossip

import (
	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

const (
	// UnknownNode is the origin stamped when a node cannot name itself.
	UnknownNode = wiki.UnknownOrigin
	// AnonymousAuthor is stamped on pages that carry no author.
	AnonymousAuthor = "Anonymous"
)

// Message is the body POSTed to a peer's gossip endpoint.
type Message struct {
	Page wiki.Page `json:"page"`
}

// Stamp fills in provenance. Only the first hop sets it: a page that already
// has an origin or author keeps them.
func Stamp(p wiki.Page, self string) wiki.Page {
	if p.Origin == "" {
		p.Origin = self
	}
	if p.Author == "" {
		p.Author = AnonymousAuthor
	}
	return p
}
