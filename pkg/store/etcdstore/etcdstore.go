// Package etcdstore implements store.Backend on etcd.
//
// Rows are JSON values under /zephyrwiki/<node>/<wiki>/<table>/<key>, so nodes
// sharing one etcd cluster never see each other's tables. Keys start with
// a zero-padded append timestamp so a sorted prefix range returns rows in
// append order.
package etcdstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

const rootPrefix = "/zephyrwiki/"

type Store struct {
	cli    *clientv3.Client
	nodeID string
	owned  bool
}

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// Open dials endpoints and keeps nodeID's tables. The returned Store closes
// the client on Close.
func Open(endpoints []string, nodeID string) (*Store, error) {
	if strings.TrimSpace(nodeID) == "" {
		return nil, errors.New("etcd store needs a node id")
	}
	cli, err := NewClient(endpoints)
	if err != nil {
		return nil, fmt.Errorf("creating etcd client: %w", err)
	}
	return &Store{cli: cli, nodeID: nodeID, owned: true}, nil
}

// Wrap uses an existing client for nodeID's tables. Close leaves the client open.
func Wrap(cli *clientv3.Client, nodeID string) *Store {
	return &Store{cli: cli, nodeID: nodeID}
}

func (s *Store) Close() error {
	if s.owned {
		return s.cli.Close()
	}
	return nil
}

func (s *Store) Table(wikiID, name string) store.Table {
	return &table{cli: s.cli, prefix: SheetPrefix(s.nodeID, wikiID, name)}
}

// NodePrefix is the key prefix holding every table of one node.
func NodePrefix(nodeID string) string {
	return rootPrefix + url.PathEscape(nodeID) + "/"
}

// SheetPrefix is the key prefix holding every row of one sheet.
func SheetPrefix(nodeID, wikiID, name string) string {
	return NodePrefix(nodeID) + url.PathEscape(wikiID) + "/" + url.PathEscape(name) + "/"
}

// newRowKey orders by append time; the uuid suffix separates rows appended
// within the same nanosecond.
func newRowKey(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString()[:8])
}

type table struct {
	cli    *clientv3.Client
	prefix string
}

func (t *table) Append(ctx context.Context, row store.Row) (string, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encoding row: %w", err)
	}
	key := newRowKey(time.Now())
	if _, err := t.cli.Put(ctx, t.prefix+key, string(data)); err != nil {
		return "", fmt.Errorf("appending %s: %w", t.prefix, err)
	}
	return key, nil
}

func (t *table) Scan(ctx context.Context) ([]store.Record, error) {
	resp, err := t.cli.Get(ctx, t.prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.prefix, err)
	}
	out := make([]store.Record, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var row store.Row
		if err := json.Unmarshal(kv.Value, &row); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kv.Key, err)
		}
		out = append(out, store.Record{
			Key: strings.TrimPrefix(string(kv.Key), t.prefix),
			Row: row,
		})
	}
	return out, nil
}

func (t *table) Update(ctx context.Context, key string, row store.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	k := t.prefix + key
	resp, err := t.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(k), ">", 0)).
		Then(clientv3.OpPut(k, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("updating %s: %w", k, err)
	}
	if !resp.Succeeded {
		return store.ErrRowNotFound
	}
	return nil
}

func (t *table) Delete(ctx context.Context, key string) error {
	resp, err := t.cli.Delete(ctx, t.prefix+key)
	if err != nil {
		return fmt.Errorf("deleting %s%s: %w", t.prefix, key, err)
	}
	if resp.Deleted == 0 {
		return store.ErrRowNotFound
	}
	return nil
}
