package discovery

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap/zaptest"

	"github.com/ryandielhenn/zephyrwiki/pkg/store/etcdstore"
	"github.com/ryandielhenn/zephyrwiki/pkg/store/memstore"
	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

func TestReconcileSkipsSelf(t *testing.T) {
	ctx := context.Background()
	svc := wiki.NewService(memstore.New(), nil, zaptest.NewLogger(t), wiki.Options{})
	sc := wiki.NewScope("")

	nodes := map[string]string{
		"n1": "http://n1:8080",
		"n2": "http://n2:8080",
		"n3": "",
	}
	n, err := Reconcile(ctx, svc, sc, "n1", nodes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Seeing the same node again does not duplicate it.
	_, err = Reconcile(ctx, svc, sc, "n1", nodes)
	require.NoError(t, err)

	peers, err := svc.ListPeers(ctx, sc)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "http://n2:8080", peers[0].URL)
	assert.Equal(t, "n2", peers[0].Name)
}

func TestReconcileLeavesWorkspaceAlone(t *testing.T) {
	ctx := context.Background()
	svc := wiki.NewService(memstore.New(), nil, zaptest.NewLogger(t), wiki.Options{})
	sc := wiki.NewScope("")
	_, err := svc.SetMode(ctx, sc, "workspace")
	require.NoError(t, err)

	n, err := Reconcile(ctx, svc, sc, "n1", map[string]string{"n2": "http://n2:8080"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

type fakeRevoker struct {
	revoked []clientv3.LeaseID
	err     error
}

func (f *fakeRevoker) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.revoked = append(f.revoked, id)
	return &clientv3.LeaseRevokeResponse{}, f.err
}

func TestDeregisterRevokesLease(t *testing.T) {
	ctx := context.Background()
	r := &fakeRevoker{}
	require.NoError(t, Deregister(ctx, r, 42))
	assert.Equal(t, []clientv3.LeaseID{42}, r.revoked)

	require.NoError(t, Deregister(ctx, r, 0))
	assert.Len(t, r.revoked, 1)

	r.err = errors.New("lease not found")
	assert.ErrorContains(t, Deregister(ctx, r, 7), "lease not found")
}

func TestNodeKeyOutsideStorePrefix(t *testing.T) {
	assert.False(t, strings.HasPrefix(NodeKey("n1"), "/zephyrwiki/"))
}

func TestRegisterAndWatch(t *testing.T) {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS not set")
	}
	cli, err := etcdstore.NewClient(strings.Split(endpoints, ","))
	require.NoError(t, err)
	defer cli.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan map[string]string, 8)
	WatchNodes(ctx, cli, zaptest.NewLogger(t), func(m map[string]string) { seen <- m })
	<-seen

	lease, err := RegisterNode(ctx, cli, "discovery-test", "http://t:8080", 30)
	require.NoError(t, err)
	defer cli.Delete(context.Background(), NodeKey("discovery-test"))

	waitFor := func(want bool) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case m := <-seen:
				if _, ok := m["discovery-test"]; ok == want {
					return
				}
			case <-deadline:
				t.Fatalf("registered=%v not observed", want)
			}
		}
	}
	waitFor(true)

	// Revoking drops the key well before the 30s TTL.
	require.NoError(t, Deregister(ctx, cli, lease))
	waitFor(false)
}
