package wiki

import (
	"context"
	"fmt"
	"time"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

// PeerRegistry is the static list of nodes that receive gossip. Entries are
// never health-checked or evicted.
type PeerRegistry struct {
	b   store.Backend
	now func() time.Time
}

func NewPeerRegistry(b store.Backend) *PeerRegistry {
	return &PeerRegistry{b: b, now: time.Now}
}

func (r *PeerRegistry) table(sc Scope) store.Table {
	return r.b.Table(sc.WikiID, tablePeers)
}

func (r *PeerRegistry) GetPeers(ctx context.Context, sc Scope) ([]Peer, error) {
	recs, err := r.table(sc).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading peers: %w", err)
	}
	peers := make([]Peer, 0, len(recs))
	for _, rec := range recs {
		peers = append(peers, peerFromRow(rec.Row))
	}
	return peers, nil
}

// AddPeer registers url. A url that is already registered returns the
// existing entry unchanged.
func (r *PeerRegistry) AddPeer(ctx context.Context, sc Scope, url, name string) (*Peer, error) {
	t := r.table(sc)
	rec, err := store.Find(ctx, t, store.ColumnEquals("url", url))
	if err != nil {
		return nil, fmt.Errorf("reading peers: %w", err)
	}
	if rec != nil {
		p := peerFromRow(rec.Row)
		return &p, nil
	}

	p := &Peer{URL: url, Name: name, IsActive: true, LastSyncedAt: r.now().UTC()}
	if _, err := t.Append(ctx, peerRow(p)); err != nil {
		return nil, fmt.Errorf("adding peer %s: %w", url, err)
	}
	return p, nil
}

func (r *PeerRegistry) RemovePeer(ctx context.Context, sc Scope, url string) (bool, error) {
	t := r.table(sc)
	rec, err := store.Find(ctx, t, store.ColumnEquals("url", url))
	if err != nil {
		return false, fmt.Errorf("reading peers: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if err := t.Delete(ctx, rec.Key); err != nil {
		return false, fmt.Errorf("removing peer %s: %w", url, err)
	}
	return true, nil
}
