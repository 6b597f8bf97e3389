package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/discovery"
	"github.com/ryandielhenn/zephyrwiki/internal/config"
	"github.com/ryandielhenn/zephyrwiki/internal/logging"
	"github.com/ryandielhenn/zephyrwiki/internal/telemetry"
	"github.com/ryandielhenn/zephyrwiki/pkg/gossip"
	"github.com/ryandielhenn/zephyrwiki/pkg/node"
	"github.com/ryandielhenn/zephyrwiki/pkg/store"
	"github.com/ryandielhenn/zephyrwiki/pkg/store/etcdstore"
	"github.com/ryandielhenn/zephyrwiki/pkg/store/memstore"
	"github.com/ryandielhenn/zephyrwiki/pkg/store/sqlitestore"
	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

var (
	serveListen    string
	serveSelf      string
	serveID        string
	serveBackend   string
	serveSQLite    string
	serveEtcd      string
	serveMode      string
	serveLogLevel  string
	serveGossipTTL time.Duration
	serveDiscover  bool
	serveDev       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a wiki node",
	Long: `Run a wiki node. Settings come from SELF_ID, SELF_ADDR, LISTEN_ADDR,
STORE_BACKEND, SQLITE_PATH, ETCD_ENDPOINTS, GOSSIP_TIMEOUT, DEFAULT_MODE and
LOG_LEVEL; flags override them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if err := applyServeFlags(cmd, &cfg); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", "", "listen address")
	f.StringVar(&serveSelf, "self-url", "", "public base URL stamped as gossip origin")
	f.StringVar(&serveID, "id", "", "node id")
	f.StringVar(&serveBackend, "store", "", "record store: memory, sqlite or etcd")
	f.StringVar(&serveSQLite, "sqlite-path", "", "sqlite database file")
	f.StringVar(&serveEtcd, "etcd", "", "comma separated etcd endpoints")
	f.StringVar(&serveMode, "default-mode", "", "mode of wikis that never set one")
	f.StringVar(&serveLogLevel, "log-level", "", "zap log level")
	f.DurationVar(&serveGossipTTL, "gossip-timeout", 0, "bound on one broadcast batch")
	f.BoolVar(&serveDiscover, "discover", false, "announce this node in etcd and peer with the others")
	f.BoolVar(&serveDev, "dev", false, "human readable logs")
	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	set := cmd.Flags().Changed
	if set("listen") {
		cfg.ListenAddr = serveListen
	}
	if set("self-url") {
		cfg.SelfAddr = serveSelf
	}
	if set("id") {
		cfg.SelfID = serveID
	}
	if set("store") {
		cfg.StoreBackend = serveBackend
	}
	if set("sqlite-path") {
		cfg.SQLitePath = serveSQLite
	}
	if set("etcd") {
		cfg.EtcdEndpoints = config.SplitList(serveEtcd)
	}
	if set("default-mode") {
		m, err := wiki.ParseMode(serveMode)
		if err != nil {
			return err
		}
		cfg.DefaultMode = m
	}
	if set("log-level") {
		cfg.LogLevel = serveLogLevel
	}
	if set("gossip-timeout") {
		cfg.GossipTimeout = serveGossipTTL
	}
	if set("dev") {
		cfg.Dev = serveDev
	}
	return cfg.Validate()
}

func openBackend(cfg config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.SQLitePath)
	case config.BackendEtcd:
		return etcdstore.Open(cfg.EtcdEndpoints, cfg.SelfID)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()
	telemetry.SetBuildInfo(version, gitSHA)

	selfURL := node.NormalizeBaseURL(cfg.SelfAddr, "8080")
	log.Info("booting",
		zap.String("id", cfg.SelfID),
		zap.String("self", selfURL),
		zap.String("store", cfg.StoreBackend),
		zap.String("default_mode", string(cfg.DefaultMode)))

	backend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.StoreBackend, err)
	}
	defer backend.Close()

	bc := gossip.NewBroadcaster(wiki.NewPeerRegistry(backend), gossip.NewHTTPTransport(cfg.GossipTimeout), log,
		gossip.Config{SelfURL: selfURL, Timeout: cfg.GossipTimeout})
	svc := wiki.NewService(backend, bc, log, wiki.Options{DefaultMode: cfg.DefaultMode})

	if serveDiscover {
		if err := startDiscovery(ctx, cfg, selfURL, svc, log); err != nil {
			return err
		}
	}

	opts := node.Options{ID: cfg.SelfID, SelfURL: selfURL, Backend: cfg.StoreBackend}
	if mem, ok := backend.(*memstore.Store); ok {
		opts.StoredRows = mem.Len
	}
	n := node.NewNode(svc, log, opts)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           n.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GossipTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startDiscovery registers this node in etcd and peers the default wiki with
// every node that shows up.
func startDiscovery(ctx context.Context, cfg config.Config, selfURL string, svc *wiki.Service, log *zap.Logger) error {
	if selfURL == "" {
		return errors.New("--discover needs a self URL")
	}
	cli, err := etcdstore.NewClient(cfg.EtcdEndpoints)
	if err != nil {
		return fmt.Errorf("creating etcd client: %w", err)
	}

	lease, err := discovery.RegisterNode(ctx, cli, cfg.SelfID, selfURL, 10)
	if err != nil {
		cli.Close()
		return err
	}
	log.Info("registered in etcd", zap.String("id", cfg.SelfID))
	go func() {
		<-ctx.Done()
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := discovery.Deregister(rctx, cli, lease); err != nil {
			log.Warn("revoking discovery lease", zap.Error(err))
		}
		cancel()
		cli.Close()
	}()

	sc := wiki.NewScope("")
	discovery.WatchNodes(ctx, cli, log, func(nodes map[string]string) {
		added, err := discovery.Reconcile(ctx, svc, sc, cfg.SelfID, nodes)
		if err != nil {
			log.Warn("reconciling peers", zap.Error(err))
			return
		}
		log.Debug("nodes reconciled", zap.Int("nodes", len(nodes)), zap.Int("peers", added))
	})
	return nil
}
