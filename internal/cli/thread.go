package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rttune/rttune/internal/client"
	"github.com/rttune/rttune/pkg/types"
)

func newThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect and modify managed threads",
	}

	cmd.AddCommand(newThreadShowCmd())
	cmd.AddCommand(newThreadModifyCmd())
	return cmd
}

func newThreadShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show [THREAD]",
		Short: "Show managed threads (all, or one by name/tid)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr(cmd))

			if len(args) == 1 {
				info, err := c.GetThread(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd, info)
				}
				printThreadTable(cmd, []types.ThreadInfo{info})
				return nil
			}

			infos, err := c.ListThreads(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, infos)
			}
			printThreadTable(cmd, infos)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newThreadModifyCmd() *cobra.Command {
	var policy, priority, cpus string

	cmd := &cobra.Command{
		Use:   "modify THREAD",
		Short: "Apply a one-shot scheduling change to a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr(cmd))
			info, err := c.ModifyThread(cmd.Context(), args[0], types.ThreadModifyRequest{
				Policy:   policy,
				Priority: priority,
				CPUs:     cpus,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "*", "Scheduling policy (OTHER|FIFO|RR|BATCH|IDLE, * leaves unchanged)")
	cmd.Flags().StringVar(&priority, "priority", "*", "Priority 0-99, +N/-N relative, * leaves unchanged")
	cmd.Flags().StringVar(&cpus, "cpus", "*", "CPU list, e.g. 0,2-3 (* leaves unchanged)")
	return cmd
}

func printThreadTable(cmd *cobra.Command, infos []types.ThreadInfo) {
	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No managed threads")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TID\tNAME\tPOLICY\tOSIPRI\tNATIVE\tRT\tCPUS\tSTATE")
	for _, t := range infos {
		rt := ""
		if t.RealTime {
			rt = "yes"
		}
		state := "OK"
		if t.Suspended {
			state = "SUSPEND"
		}
		cpus := t.CPUSet
		if cpus == "" {
			cpus = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			t.TID, t.Name, t.Policy, t.OSIPriority, t.NativePriority, rt, cpus, state)
	}
	tw.Flush()
}
