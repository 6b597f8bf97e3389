// Package config reads node settings from the environment. Command-line
// flags override what it returns.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendEtcd   = "etcd"
)

type Config struct {
	SelfID        string
	SelfAddr      string // public base URL stamped as gossip origin
	ListenAddr    string
	StoreBackend  string
	SQLitePath    string
	EtcdEndpoints []string
	GossipTimeout time.Duration
	DefaultMode   wiki.Mode
	LogLevel      string
	Dev           bool
}

func Default() Config {
	return Config{
		SelfID:        "node1",
		ListenAddr:    ":8080",
		StoreBackend:  BackendSQLite,
		SQLitePath:    "zephyrwiki.db",
		EtcdEndpoints: []string{"http://etcd:2379"},
		GossipTimeout: 5 * time.Second,
		DefaultMode:   wiki.ModeInternet,
		LogLevel:      "info",
	}
}

// FromEnv starts from Default and applies every variable that is set.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("SELF_ID"); ok {
		c.SelfID = v
	}
	if v, ok := get("SELF_ADDR"); ok {
		c.SelfAddr = v
	}
	if v, ok := get("LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := get("STORE_BACKEND"); ok {
		c.StoreBackend = strings.ToLower(v)
	}
	if v, ok := get("SQLITE_PATH"); ok {
		c.SQLitePath = v
	}
	if v, ok := get("ETCD_ENDPOINTS"); ok {
		c.EtcdEndpoints = SplitList(v)
	}
	if v, ok := get("GOSSIP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("GOSSIP_TIMEOUT: %w", err)
		}
		c.GossipTimeout = d
	}
	if v, ok := get("DEFAULT_MODE"); ok {
		m, err := wiki.ParseMode(v)
		if err != nil {
			return c, fmt.Errorf("DEFAULT_MODE: %w", err)
		}
		c.DefaultMode = m
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_DEV"); ok {
		c.Dev = v == "1" || strings.EqualFold(v, "true")
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite backend needs a path")
		}
	case BackendEtcd:
		if len(c.EtcdEndpoints) == 0 {
			return fmt.Errorf("etcd backend needs endpoints")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.GossipTimeout <= 0 {
		return fmt.Errorf("gossip timeout must be positive, got %s", c.GossipTimeout)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
