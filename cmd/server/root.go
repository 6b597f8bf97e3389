package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryandielhenn/zephyrwiki/pkg/client"
)

// Set with -ldflags "-X main.version=... -X main.gitSHA=...".
var (
	version = "dev"
	gitSHA  = "unknown"
)

var (
	nodeURL string
	wikiID  string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "zephyrwiki",
	Short:        "Multi-node wiki with gossip replication",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&wikiID, "wiki", "", "wiki id (default wiki when empty)")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "http://localhost:8080", "node base URL for admin commands")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout for admin commands")
	rootCmd.Version = version + " (" + gitSHA + ")"
}

func apiClient() *client.Client {
	return client.New(nodeURL, wikiID, timeout)
}
