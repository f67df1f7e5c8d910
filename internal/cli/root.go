// Package cli implements the rttune command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rttune",
		Short:         "rttune: real-time thread scheduling rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("rttune {{.Version}}\n")

	cmd.PersistentFlags().String("server", getenvDefault("RTTUNE_SERVER", "http://127.0.0.1:7300"), "rttune server base URL")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRuleCmd())
	cmd.AddCommand(newThreadCmd())
	cmd.AddCommand(newMemlockCmd())
	cmd.AddCommand(newEventsCmd())

	return cmd
}

func serverAddr(cmd *cobra.Command) string {
	addr, _ := cmd.Root().PersistentFlags().GetString("server")
	if addr == "" {
		addr = "http://127.0.0.1:7300"
	}
	return addr
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
