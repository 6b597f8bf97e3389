package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var peerName string

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Manage the peers a wiki gossips to",
}

var peerAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a peer node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := apiClient().AddPeer(cmd.Context(), args[0], peerName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "peer %s (%s) registered\n", p.URL, p.Name)
		return nil
	},
}

var peerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered peers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		peers, err := apiClient().Peers(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "URL\tNAME\tACTIVE\tLAST SYNCED")
		for _, p := range peers {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.URL, p.Name, p.IsActive, p.LastSyncedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

var peerRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Unregister a peer node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().RemovePeer(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "peer %s removed\n", args[0])
		return nil
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show or change a wiki's mode",
}

var modeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := apiClient().Mode(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), m)
		return nil
	},
}

var modeSetCmd = &cobra.Command{
	Use:       "set <internet|workspace>",
	Short:     "Switch between internet and workspace mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"internet", "workspace"},
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := apiClient().SetMode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mode set to %s\n", m)
		return nil
	},
}

func init() {
	peerAddCmd.Flags().StringVar(&peerName, "name", "", "display name for the peer")
	peerCmd.AddCommand(peerAddCmd, peerListCmd, peerRemoveCmd)
	modeCmd.AddCommand(modeGetCmd, modeSetCmd)
	rootCmd.AddCommand(peerCmd, modeCmd)
}
