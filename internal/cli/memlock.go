package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rttune/rttune/internal/client"
)

func newMemlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memlock",
		Short: "Control process memory locking",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "lock",
		Short: "Lock current and future memory into RAM",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.New(serverAddr(cmd)).MemLock(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "locked")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unlock",
		Short: "Unlock process memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.New(serverAddr(cmd)).MemUnlock(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show memory lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			locked, err := client.New(serverAddr(cmd)).MemLockStatus(cmd.Context())
			if err != nil {
				return err
			}
			if locked {
				fmt.Fprintln(cmd.OutOrStdout(), "locked")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
			}
			return nil
		},
	})

	return cmd
}
