package gossip

import (
	"context"

	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

// PeerSource lists the nodes a wiki gossips to. *wiki.PeerRegistry
// implements it.
type PeerSource interface {
	GetPeers(ctx context.Context, sc wiki.Scope) ([]wiki.Peer, error)
}
