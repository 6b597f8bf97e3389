package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	c, err := fromLookup(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, wiki.ModeInternet, c.DefaultMode)
}

func TestEnvOverrides(t *testing.T) {
	c, err := fromLookup(lookupFrom(map[string]string{
		"SELF_ID":        "n2",
		"SELF_ADDR":      "http://wiki-b:8080",
		"LISTEN_ADDR":    ":9090",
		"STORE_BACKEND":  "ETCD",
		"ETCD_ENDPOINTS": "http://e1:2379, ,http://e2:2379",
		"GOSSIP_TIMEOUT": "750ms",
		"DEFAULT_MODE":   "workspace",
		"LOG_LEVEL":      "debug",
	}))
	require.NoError(t, err)
	assert.Equal(t, "n2", c.SelfID)
	assert.Equal(t, "http://wiki-b:8080", c.SelfAddr)
	assert.Equal(t, ":9090", c.ListenAddr)
	assert.Equal(t, BackendEtcd, c.StoreBackend)
	assert.Equal(t, []string{"http://e1:2379", "http://e2:2379"}, c.EtcdEndpoints)
	assert.Equal(t, 750*time.Millisecond, c.GossipTimeout)
	assert.Equal(t, wiki.ModeWorkspace, c.DefaultMode)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestBlankValuesKeepDefaults(t *testing.T) {
	c, err := fromLookup(lookupFrom(map[string]string{"LISTEN_ADDR": "  "}))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.ListenAddr)
}

func TestInvalidValues(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"timeout": {"GOSSIP_TIMEOUT": "soon"},
		"mode":    {"DEFAULT_MODE": "offline"},
		"backend": {"STORE_BACKEND": "redis"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := fromLookup(lookupFrom(env))
			assert.Error(t, err)
		})
	}
}
