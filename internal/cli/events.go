package cli

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rttune/rttune/internal/client"
	"github.com/rttune/rttune/internal/store/sqlite"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Watch/query audit events",
	}

	cmd.AddCommand(newEventsTailCmd())
	cmd.AddCommand(newEventsQueryCmd())
	return cmd
}

func newEventsTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail live events (SSE)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr(cmd))
			body, err := c.StreamEvents(cmd.Context())
			if err != nil {
				return err
			}
			defer body.Close()

			sc := bufio.NewScanner(body)
			for sc.Scan() {
				line := sc.Text()
				if strings.HasPrefix(line, "data: ") {
					fmt.Fprintln(cmd.OutOrStdout(), strings.TrimPrefix(line, "data: "))
				}
			}
			return sc.Err()
		},
	}
	return cmd
}

func newEventsQueryCmd() *cobra.Command {
	var (
		thread   string
		rule     string
		typesCSV string
		since    string
		until    string
		limit    int
		offset   int
		order    string

		directDB bool
		dbPath   string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query events (API by default; --direct-db for offline)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if directDB {
				if dbPath == "" {
					dbPath = getenvDefault("RTTUNE_DB_PATH", "./data/events.db")
				}
				st, err := sqlite.Open(dbPath)
				if err != nil {
					return err
				}
				defer st.Close()

				q, err := buildEventQuery(thread, rule, typesCSV, since, until, limit, offset, order)
				if err != nil {
					return err
				}
				evs, err := st.QueryEvents(cmd.Context(), q)
				if err != nil {
					return err
				}
				return printJSON(cmd, evs)
			}

			params := url.Values{}
			if thread != "" {
				params.Set("thread", thread)
			}
			if rule != "" {
				params.Set("rule", rule)
			}
			if typesCSV != "" {
				params.Set("type", typesCSV)
			}
			if since != "" {
				params.Set("since", since)
			}
			if until != "" {
				params.Set("until", until)
			}
			if limit != 0 {
				params.Set("limit", fmt.Sprintf("%d", limit))
			}
			if offset != 0 {
				params.Set("offset", fmt.Sprintf("%d", offset))
			}
			if order != "" {
				params.Set("order", order)
			}

			evs, err := client.New(serverAddr(cmd)).SearchEvents(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(cmd, evs)
		},
	}

	cmd.Flags().StringVar(&thread, "thread", "", "Filter by thread name")
	cmd.Flags().StringVar(&rule, "rule", "", "Filter by rule name")
	cmd.Flags().StringVar(&typesCSV, "type", "", "Comma-separated event types")
	cmd.Flags().StringVar(&since, "since", "", "Start time (RFC3339) or duration (e.g. 1h)")
	cmd.Flags().StringVar(&until, "until", "", "End time (RFC3339) or duration (e.g. 5m)")
	cmd.Flags().IntVar(&limit, "limit", 200, "Result limit")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	cmd.Flags().StringVar(&order, "order", "desc", "Sort order: asc|desc")

	cmd.Flags().BoolVar(&directDB, "direct-db", false, "Query local SQLite directly (offline)")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite DB path (used with --direct-db)")

	return cmd
}
