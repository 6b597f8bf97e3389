// Package discovery announces wiki nodes in etcd and turns the announcements
// into peer registrations.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

const nodesPrefix = "/zephyrwiki-nodes/"

func NodeKey(id string) string {
	return nodesPrefix + id
}

// RegisterNode publishes id -> url under a lease kept alive until ctx ends.
func RegisterNode(ctx context.Context, cli *clientv3.Client, id, url string, ttl int64) (clientv3.LeaseID, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, fmt.Errorf("granting lease: %w", err)
	}
	if _, err := cli.Put(ctx, NodeKey(id), url, clientv3.WithLease(lease.ID)); err != nil {
		return 0, fmt.Errorf("registering %s: %w", id, err)
	}

	ch, err := cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		return 0, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
	}()
	return lease.ID, nil
}

// LeaseRevoker ends a lease. *clientv3.Client satisfies it.
type LeaseRevoker interface {
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
}

// Deregister revokes the registration lease so the node key disappears at
// once instead of after its TTL.
func Deregister(ctx context.Context, cli LeaseRevoker, lease clientv3.LeaseID) error {
	if lease == 0 {
		return nil
	}
	if _, err := cli.Revoke(ctx, lease); err != nil {
		return fmt.Errorf("revoking lease %x: %w", int64(lease), err)
	}
	return nil
}

// ListNodes returns every registered node id with its URL.
func ListNodes(ctx context.Context, cli *clientv3.Client) (map[string]string, error) {
	resp, err := cli.Get(ctx, nodesPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	nodes := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		nodes[strings.TrimPrefix(string(kv.Key), nodesPrefix)] = string(kv.Value)
	}
	return nodes, nil
}

// WatchNodes calls fn with the current node set, then again after every change,
// until ctx ends.
func WatchNodes(ctx context.Context, cli *clientv3.Client, log *zap.Logger, fn func(map[string]string)) {
	if nodes, err := ListNodes(ctx, cli); err == nil {
		fn(nodes)
	} else {
		log.Warn("initial node list", zap.Error(err))
	}

	wch := cli.Watch(ctx, nodesPrefix, clientv3.WithPrefix())
	go func() {
		for range wch {
			nodes, err := ListNodes(ctx, cli)
			if err != nil {
				log.Warn("refreshing node list", zap.Error(err))
				continue
			}
			fn(nodes)
		}
	}()
}

// PeerAdder registers peers. *wiki.Service satisfies it.
type PeerAdder interface {
	AddPeer(ctx context.Context, sc wiki.Scope, url, name string) (*wiki.Peer, error)
}

// Reconcile registers every discovered node except selfID as a peer of the
// wiki. Registration is idempotent and nothing is ever removed. A wiki in
// workspace mode is left alone.
func Reconcile(ctx context.Context, reg PeerAdder, sc wiki.Scope, selfID string, nodes map[string]string) (int, error) {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		if id != selfID && nodes[id] != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	n := 0
	for _, id := range ids {
		if _, err := reg.AddPeer(ctx, sc, nodes[id], id); err != nil {
			if errors.Is(err, wiki.ErrFeatureUnavailable) {
				return n, nil
			}
			return n, fmt.Errorf("adding peer %s: %w", id, err)
		}
		n++
	}
	return n, nil
}
