package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/usage"
)

var usageFlags struct {
	provider string
	since    string
	output   string
}

var usageExportFlags struct {
	format string
	file   string
	limit  int
}

var usagePruneFlags struct {
	days int
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show per-provider totals from the usage ledger",
	Long: `Show request, failure, retry and token totals per provider from the
usage ledger. Requires the sqlite usage backend.

--since accepts a duration (36h, 7d) or a date (2026-03-01).

Examples:
  switchboard usage
  switchboard usage --provider google --since 7d
  switchboard usage export --format csv --output usage.csv
  switchboard usage prune --days 30`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

var usageExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export usage records as CSV or JSON",
	Args:  cobra.NoArgs,
	RunE:  runUsageExport,
}

var usagePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete usage records older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runUsagePrune,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageExportCmd)
	usageCmd.AddCommand(usagePruneCmd)

	pf := usageCmd.PersistentFlags()
	pf.StringVar(&usageFlags.provider, "provider", "", "only this provider")
	pf.StringVar(&usageFlags.since, "since", "", "only records newer than this")
	usageCmd.Flags().StringVarP(&usageFlags.output, "output", "o", "text", "output format (text, json, csv)")

	ef := usageExportCmd.Flags()
	ef.StringVar(&usageExportFlags.format, "format", "csv", "export format (csv, json)")
	ef.StringVarP(&usageExportFlags.file, "output", "o", "", "write to file instead of stdout")
	ef.IntVar(&usageExportFlags.limit, "limit", 0, "export at most this many records, newest first")

	usagePruneCmd.Flags().IntVar(&usagePruneFlags.days, "days", 0, "retention in days (default: usage.retention_days)")
}

// openLedger opens the configured usage store for reading.
func openLedger(cmd *cobra.Command) (usage.Store, int, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	if cfg.Usage.Backend != "sqlite" {
		return nil, 0, cli.NewConfigError("usage.backend",
			fmt.Sprintf("backend %q keeps no history; use sqlite", cfg.Usage.Backend))
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, 0, cli.NewConfigError("telemetry.logging", err.Error())
	}
	store, err := openUsageStore(cfg, logger)
	if err != nil {
		return nil, 0, err
	}
	return store, cfg.Usage.RetentionDays, nil
}

func usageQuery(now time.Time) (*usage.Query, error) {
	q := &usage.Query{Provider: usageFlags.provider}
	if usageFlags.since != "" {
		since, err := parseSince(usageFlags.since, now)
		if err != nil {
			return nil, err
		}
		q.Since = since
	}
	return q, nil
}

// parseSince accepts a Go duration, a day count such as "7d", or a
// YYYY-MM-DD date.
func parseSince(s string, now time.Time) (time.Time, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil && n >= 0 {
			return now.AddDate(0, 0, -n), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: expected a duration (36h, 7d) or a date (2026-03-01)", s)
}

func runUsage(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(usageFlags.output)
	if err != nil {
		return err
	}
	q, err := usageQuery(time.Now())
	if err != nil {
		return err
	}

	store, _, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.Totals(cmd.Context(), q)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), totalsTable(totals))
}

func runUsageExport(cmd *cobra.Command, args []string) error {
	write := usage.WriteCSV
	switch strings.ToLower(usageExportFlags.format) {
	case "csv":
	case "json":
		write = usage.WriteJSON
	default:
		return fmt.Errorf("unknown export format %q (must be csv or json)", usageExportFlags.format)
	}

	q, err := usageQuery(time.Now())
	if err != nil {
		return err
	}
	q.Limit = usageExportFlags.limit

	store, _, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if usageExportFlags.file != "" {
		f, err := os.Create(usageExportFlags.file)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", usageExportFlags.file, err)
		}
		defer f.Close()
		w = f
	}

	if err := write(w, records); err != nil {
		return fmt.Errorf("failed to export usage: %w", err)
	}
	if usageExportFlags.file != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", len(records), usageExportFlags.file)
	}
	return nil
}

func runUsagePrune(cmd *cobra.Command, args []string) error {
	store, days, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if cmd.Flags().Changed("days") {
		days = usagePruneFlags.days
	}
	if days <= 0 {
		return cli.NewConfigError("usage.retention_days", "retention is disabled; pass --days")
	}

	deleted, err := usage.NewPruner(store, days, nil).Prune(context.WithoutCancel(cmd.Context()))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records older than %d days\n", deleted, days)
	return nil
}

type totalsTable []usage.Totals

func (t totalsTable) Header() []string {
	return []string{"PROVIDER", "REQUESTS", "FAILURES", "RETRIES", "PROMPT", "COMPLETION", "TOTAL", "ESTIMATED"}
}

func (t totalsTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.Provider,
			strconv.FormatInt(r.Requests, 10),
			strconv.FormatInt(r.Failures, 10),
			strconv.FormatInt(r.Retries, 10),
			strconv.FormatInt(r.PromptTokens, 10),
			strconv.FormatInt(r.CompletionTokens, 10),
			strconv.FormatInt(r.TotalTokens, 10),
			strconv.FormatInt(r.EstimatedRequests, 10),
		})
	}
	return rows
}

func (t totalsTable) Data() any {
	if t == nil {
		return []usage.Totals{}
	}
	return []usage.Totals(t)
}
