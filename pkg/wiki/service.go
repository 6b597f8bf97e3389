package wiki

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

// Broadcaster replicates a committed local page to peers. Implementations
// must not fail the caller: delivery problems are theirs to log.
type Broadcaster interface {
	Broadcast(ctx context.Context, sc Scope, page Page)
}

type Options struct {
	// DefaultMode applies to wikis that never had a mode set.
	DefaultMode Mode
	// Partition overrides the policy to content table mapping.
	Partition PartitionResolver
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Service is the entry point for every wiki operation. Writes commit through
// the repositories first; replication runs after the commit and cannot undo it.
type Service struct {
	Pages    *PageRepository
	Cache    *CacheRepository
	Peers    *PeerRegistry
	External *ExternalDirectory
	Modes    *ModeGate

	bc  Broadcaster
	log *zap.Logger
}

// NewService wires repositories over b. bc may be nil, which disables
// replication.
func NewService(b store.Backend, bc Broadcaster, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		Pages:    NewPageRepository(b, opts.Partition),
		Cache:    NewCacheRepository(b),
		Peers:    NewPeerRegistry(b),
		External: NewExternalDirectory(b),
		Modes:    NewModeGate(b, opts.DefaultMode),
		bc:       bc,
		log:      log,
	}
	if opts.Now != nil {
		s.Pages.now = opts.Now
		s.Peers.now = opts.Now
		s.External.now = opts.Now
	}
	return s
}

func (s *Service) CreatePage(ctx context.Context, sc Scope, in NewPage) (*Page, error) {
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if err := required("content", in.Content); err != nil {
		return nil, err
	}
	p, err := s.Pages.CreatePage(ctx, sc, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("page created", zap.String("wiki", sc.WikiID), zap.String("id", p.ID), zap.String("policy", p.PolicyID))
	s.replicate(ctx, sc, *p)
	return p, nil
}

// UpdatePage returns nil, nil when id is unknown.
func (s *Service) UpdatePage(ctx context.Context, sc Scope, id, title, content string, tags []string) (*Page, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	if err := required("title", title); err != nil {
		return nil, err
	}
	if err := required("content", content); err != nil {
		return nil, err
	}
	p, err := s.Pages.UpdatePage(ctx, sc, id, title, content, tags)
	if err != nil || p == nil {
		return p, err
	}
	s.log.Info("page updated", zap.String("wiki", sc.WikiID), zap.String("id", p.ID))
	s.replicate(ctx, sc, *p)
	return p, nil
}

// DeletePage is local only; deletions are not gossiped.
func (s *Service) DeletePage(ctx context.Context, sc Scope, id string) (bool, error) {
	if err := required("id", id); err != nil {
		return false, err
	}
	ok, err := s.Pages.DeletePage(ctx, sc, id)
	if err == nil && ok {
		s.log.Info("page deleted", zap.String("wiki", sc.WikiID), zap.String("id", id))
	}
	return ok, err
}

func (s *Service) replicate(ctx context.Context, sc Scope, p Page) {
	if s.bc == nil {
		return
	}
	mode, err := s.Modes.GetMode(ctx, sc)
	if err != nil {
		s.log.Warn("skipping broadcast: mode unreadable", zap.String("wiki", sc.WikiID), zap.Error(err))
		return
	}
	if mode != ModeInternet {
		return
	}
	s.bc.Broadcast(ctx, sc, p)
}

// ListPages returns local pages followed by cached replicas.
func (s *Service) ListPages(ctx context.Context, sc Scope) ([]Page, error) {
	local, err := s.Pages.GetAllPages(ctx, sc)
	if err != nil {
		return nil, err
	}
	cached, err := s.Cache.GetAllCachedPages(ctx, sc)
	if err != nil {
		return nil, err
	}
	return append(local, cached...), nil
}

// GetPage looks in local pages first, then in the cache. nil means not found.
func (s *Service) GetPage(ctx context.Context, sc Scope, id string) (*Page, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	p, err := s.Pages.GetPageByID(ctx, sc, id)
	if err != nil || p != nil {
		return p, err
	}
	cached, err := s.Cache.GetAllCachedPages(ctx, sc)
	if err != nil {
		return nil, err
	}
	for i := range cached {
		if cached[i].ID == id {
			return &cached[i], nil
		}
	}
	return nil, nil
}

// GetPageByTitle returns the first page whose title matches exactly,
// preferring local pages over replicas.
func (s *Service) GetPageByTitle(ctx context.Context, sc Scope, title string) (*Page, error) {
	if err := required("title", title); err != nil {
		return nil, err
	}
	pages, err := s.ListPages(ctx, sc)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		if pages[i].Title == title {
			return &pages[i], nil
		}
	}
	return nil, nil
}

// ReceiveGossip stores a page pushed by a peer.
func (s *Service) ReceiveGossip(ctx context.Context, sc Scope, p *Page) error {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return err
	}
	if p == nil {
		return &ValidationError{Field: "page"}
	}
	if err := required("page.id", p.ID); err != nil {
		return err
	}
	page := *p
	if page.Origin == "" {
		page.Origin = UnknownOrigin
	}
	if _, err := s.Cache.UpsertCachedPage(ctx, sc, page); err != nil {
		return err
	}
	s.log.Debug("gossip stored", zap.String("wiki", sc.WikiID), zap.String("id", page.ID), zap.String("origin", page.Origin))
	return nil
}

func (s *Service) ListPeers(ctx context.Context, sc Scope) ([]Peer, error) {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return nil, err
	}
	return s.Peers.GetPeers(ctx, sc)
}

func (s *Service) AddPeer(ctx context.Context, sc Scope, url, name string) (*Peer, error) {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return nil, err
	}
	if err := required("url", url); err != nil {
		return nil, err
	}
	return s.Peers.AddPeer(ctx, sc, url, name)
}

func (s *Service) RemovePeer(ctx context.Context, sc Scope, url string) (bool, error) {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return false, err
	}
	if err := required("url", url); err != nil {
		return false, err
	}
	return s.Peers.RemovePeer(ctx, sc, url)
}

func (s *Service) ExternalIndex(ctx context.Context, sc Scope) ([]ExternalWiki, error) {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return nil, err
	}
	return s.External.GetExternalIndex(ctx, sc)
}

func (s *Service) AddExternalWiki(ctx context.Context, sc Scope, w ExternalWiki) (bool, error) {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return false, err
	}
	for _, f := range []struct{ name, v string }{
		{"wikiId", w.WikiID},
		{"title", w.Title},
		{"accessUrl", w.AccessURL},
	} {
		if err := required(f.name, f.v); err != nil {
			return false, err
		}
	}
	return s.External.AddExternalWiki(ctx, sc, w)
}

func (s *Service) RemoveExternalWiki(ctx context.Context, sc Scope, accessURL string) (bool, error) {
	if err := s.Modes.Require(ctx, sc); err != nil {
		return false, err
	}
	if err := required("accessUrl", accessURL); err != nil {
		return false, err
	}
	return s.External.RemoveExternalWiki(ctx, sc, accessURL)
}

func (s *Service) Mode(ctx context.Context, sc Scope) (Mode, error) {
	return s.Modes.GetMode(ctx, sc)
}

func (s *Service) SetMode(ctx context.Context, sc Scope, raw string) (Mode, error) {
	if err := required("mode", raw); err != nil {
		return "", err
	}
	m, err := ParseMode(raw)
	if err != nil {
		return "", err
	}
	if err := s.Modes.SetMode(ctx, sc, m); err != nil {
		return "", err
	}
	s.log.Info("mode changed", zap.String("wiki", sc.WikiID), zap.String("mode", string(m)))
	return m, nil
}
