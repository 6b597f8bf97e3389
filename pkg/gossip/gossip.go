package gossip

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/internal/telemetry"
	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

const DefaultTimeout = 5 * time.Second

type Config struct {
	// SelfURL is this node's externally reachable base URL. When empty the
	// first request URL seen during a broadcast is latched for the life of
	// the process.
	SelfURL string
	// Timeout bounds one whole broadcast batch.
	Timeout time.Duration
}

// Result summarizes one broadcast batch.
type Result struct {
	Peers     int
	Delivered int
	Failed    int
}

type Broadcaster struct {
	peers     PeerSource
	transport Transport
	log       *zap.Logger
	selfURL   string
	timeout   time.Duration

	mu       sync.Mutex
	observed string
}

func NewBroadcaster(peers PeerSource, t Transport, log *zap.Logger, cfg Config) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Broadcaster{
		peers:     peers,
		transport: t,
		log:       log.Named("gossip"),
		selfURL:   cfg.SelfURL,
		timeout:   cfg.Timeout,
	}
}

// Broadcast implements wiki.Broadcaster. It never fails the caller.
func (b *Broadcaster) Broadcast(ctx context.Context, sc wiki.Scope, page wiki.Page) {
	res := b.Deliver(ctx, sc, page)
	if res.Peers > 0 {
		b.log.Info("broadcast settled",
			zap.String("wiki", sc.WikiID),
			zap.String("page", page.ID),
			zap.Int("peers", res.Peers),
			zap.Int("delivered", res.Delivered),
			zap.Int("failed", res.Failed))
	}
}

// Deliver sends page to every registered peer concurrently and waits for the
// batch. Errors are logged and counted in the Result, never returned.
func (b *Broadcaster) Deliver(ctx context.Context, sc wiki.Scope, page wiki.Page) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("broadcast aborted", zap.String("wiki", sc.WikiID), zap.Any("panic", r))
		}
	}()

	peers, err := b.peers.GetPeers(ctx, sc)
	if err != nil {
		b.log.Warn("reading peers", zap.String("wiki", sc.WikiID), zap.Error(err))
		return res
	}
	peers = b.withoutSelf(peers)
	if len(peers) == 0 {
		return res
	}
	res.Peers = len(peers)

	stamped := Stamp(page, b.self(ctx))
	body, err := json.Marshal(Message{Page: stamped})
	if err != nil {
		b.log.Error("encoding gossip", zap.String("page", page.ID), zap.Error(err))
		res.Failed = len(peers)
		return res
	}

	// The write is committed; a client hanging up must not cut the fan-out short.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	start := time.Now()
	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, p := range peers {
		wg.Add(1)
		go func(p wiki.Peer) {
			defer wg.Done()
			if b.send(ctx, sc, p, body) {
				delivered.Add(1)
			}
		}(p)
	}
	wg.Wait()
	telemetry.ObserveBroadcast(time.Since(start))

	res.Delivered = int(delivered.Load())
	res.Failed = res.Peers - res.Delivered
	return res
}

func (b *Broadcaster) send(ctx context.Context, sc wiki.Scope, p wiki.Peer, body []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("gossip send panicked", zap.String("peer", p.URL), zap.Any("panic", r))
			telemetry.RecordGossipSend(fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	target := GossipURL(p.URL, sc.WikiID)
	err := b.transport.Send(ctx, target, body)
	telemetry.RecordGossipSend(err)
	if err != nil {
		b.log.Warn("peer unreachable", zap.String("peer", p.URL), zap.Error(err))
		return false
	}
	return true
}

// self is the origin stamped on outgoing pages. Without a configured URL the
// first request base URL wins and sticks, so every write from this node
// carries the same origin no matter which Host header reached it.
func (b *Broadcaster) self(ctx context.Context) string {
	if b.selfURL != "" {
		return b.selfURL
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.observed == "" {
		if u := RequestBaseURL(ctx); u != "" {
			b.observed = u
			b.log.Info("origin latched from request", zap.String("origin", u))
		}
	}
	if b.observed != "" {
		return b.observed
	}
	return UnknownNode
}

// withoutSelf drops peers registered under this node's own configured URL.
func (b *Broadcaster) withoutSelf(peers []wiki.Peer) []wiki.Peer {
	if b.selfURL == "" {
		return peers
	}
	self := strings.TrimSuffix(b.selfURL, "/")
	out := peers[:0:0]
	for _, p := range peers {
		if strings.TrimSuffix(p.URL, "/") == self {
			continue
		}
		out = append(out, p)
	}
	return out
}

type baseURLKey struct{}

// WithRequestBaseURL records the base URL the current request was addressed
// to, for use as origin when no self URL is configured.
func WithRequestBaseURL(ctx context.Context, u string) context.Context {
	return context.WithValue(ctx, baseURLKey{}, u)
}

func RequestBaseURL(ctx context.Context) string {
	u, _ := ctx.Value(baseURLKey{}).(string)
	return u
}
