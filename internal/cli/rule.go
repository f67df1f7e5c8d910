package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rttune/rttune/internal/client"
	"github.com/rttune/rttune/pkg/types"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage thread scheduling rules",
	}

	cmd.AddCommand(newRuleAddCmd())
	cmd.AddCommand(newRuleDeleteCmd())
	cmd.AddCommand(newRuleShowCmd())
	return cmd
}

func newRuleAddCmd() *cobra.Command {
	var policy, priority, cpus string

	cmd := &cobra.Command{
		Use:   "add NAME PATTERN",
		Short: "Add or replace a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr(cmd))
			err := c.AddRule(cmd.Context(), types.RuleAddRequest{
				Name:     args[0],
				Pattern:  args[1],
				Policy:   policy,
				Priority: priority,
				CPUs:     cpus,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "*", "Scheduling policy (OTHER|FIFO|RR|BATCH|IDLE, * leaves unchanged)")
	cmd.Flags().StringVar(&priority, "priority", "*", "Priority 0-99, +N/-N relative, * leaves unchanged")
	cmd.Flags().StringVar(&cpus, "cpus", "*", "CPU list, e.g. 0,2-3 (* leaves unchanged)")
	return cmd
}

func newRuleDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr(cmd))
			if err := c.DeleteRule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}

func newRuleShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr(cmd))
			rulesList, err := c.ListRules(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, rulesList)
			}
			printRuleTable(cmd, rulesList)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printRuleTable(cmd *cobra.Command, rulesList []types.Rule) {
	w := cmd.OutOrStdout()
	if len(rulesList) == 0 {
		fmt.Fprintln(w, "No rules")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPOLICY\tPRIORITY\tCPUS\tPATTERN")
	for _, r := range rulesList {
		policy := "*"
		if r.Policy != nil {
			policy = string(*r.Policy)
		}
		priority := "*"
		if r.Priority != nil {
			if r.Priority.Relative && r.Priority.Value >= 0 {
				priority = fmt.Sprintf("+%d", r.Priority.Value)
			} else {
				priority = fmt.Sprintf("%d", r.Priority.Value)
			}
		}
		cpus := r.CPUs
		if cpus == "" {
			cpus = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, policy, priority, cpus, r.Pattern)
	}
	tw.Flush()
}
