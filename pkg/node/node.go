package node

import (
	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

// maxBodyBytes caps request bodies, gossip included.
const maxBodyBytes = 4 << 20

type Options struct {
	ID      string
	SelfURL string
	Backend string
	// StoredRows reports rows held across every wiki and table, for
	// backends that can count them cheaply. Shown on /info when set.
	StoredRows func() int
}

// Node serves one wiki service over HTTP.
type Node struct {
	svc  *wiki.Service
	log  *zap.Logger
	opts Options
}

func NewNode(svc *wiki.Service, log *zap.Logger, opts Options) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{svc: svc, log: log.Named("node"), opts: opts}
}

func (n *Node) ID() string {
	return n.opts.ID
}

func (n *Node) SelfURL() string {
	return n.opts.SelfURL
}
