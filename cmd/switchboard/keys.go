package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/keypool"
)

var keysFlags struct {
	output string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show configured providers and their API key pools",
	Long: `Show every configured provider with its key pool. Keys are masked.

Examples:
  switchboard keys
  switchboard keys --output json`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runKeys(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(keysFlags.output)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	registry := keypool.NewRegistry(nil)
	for _, name := range cfg.ProviderNames() {
		registry.Add(name, cfg.Providers[name].Keys)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), poolTable(registry, cfg))
}

// keyRow is one provider in the keys listing.
type keyRow struct {
	keypool.Status
	Type          string `json:"type"`
	DefaultModel  string `json:"default_model"`
	ResetSchedule string `json:"reset_schedule,omitempty"`
}

type keyTable []keyRow

func poolTable(registry *keypool.Registry, cfg *config.Config) keyTable {
	statuses := registry.Statuses()
	rows := make(keyTable, 0, len(statuses))
	for _, s := range statuses {
		pc := cfg.Providers[s.Provider]
		rows = append(rows, keyRow{
			Status:        s,
			Type:          pc.Type,
			DefaultModel:  pc.DefaultModel,
			ResetSchedule: pc.KeyResetSchedule,
		})
	}
	return rows
}

func (t keyTable) Header() []string {
	return []string{"PROVIDER", "TYPE", "MODEL", "KEYS", "CURRENT", "AVAILABLE", "EXHAUSTED", "MASKED"}
}

func (t keyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		current := "-"
		if r.KeyCount > 0 {
			current = strconv.Itoa(r.CurrentKey)
		}
		exhausted := make([]string, len(r.Exhausted))
		for i, n := range r.Exhausted {
			exhausted[i] = strconv.Itoa(n)
		}
		rows = append(rows, []string{
			r.Provider,
			r.Type,
			r.DefaultModel,
			strconv.Itoa(r.KeyCount),
			current,
			strconv.Itoa(r.Available),
			orDash(strings.Join(exhausted, ",")),
			orDash(strings.Join(r.Masked, ",")),
		})
	}
	return rows
}

func (t keyTable) Data() any {
	return []keyRow(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
