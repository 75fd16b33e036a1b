package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/telemetry/tracing"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration the same way every other command does (file,
then SWITCHBOARD_* overrides, then defaults) and report every invalid
field. On success a summary of the effective configuration is printed.

Examples:
  switchboard validate
  switchboard validate --config /etc/switchboard/config.toml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path == "" {
		path = "environment"
	}
	fmt.Fprintf(out, "✓ Configuration is valid (%s)\n\n", path)

	d := cfg.Dispatch
	fmt.Fprintf(out, "Dispatch: %d retries per key, %s retry delay, %s request timeout\n",
		d.MaxRetries, d.RetryDelay, d.RequestTimeout)

	fmt.Fprintln(out, "Providers:")
	for _, name := range cfg.ProviderNames() {
		pc := cfg.Providers[name]
		line := fmt.Sprintf("  %-12s %-7s %d keys, model %s", name, pc.Type, len(pc.Keys), pc.DefaultModel)
		if pc.BaseURL != "" {
			line += ", " + pc.BaseURL
		}
		if pc.KeyResetSchedule != "" {
			line += ", keys reset " + pc.KeyResetSchedule
		}
		fmt.Fprintln(out, line)
	}

	u := cfg.Usage
	switch u.Backend {
	case "sqlite":
		retention := "kept forever"
		if u.RetentionDays > 0 {
			retention = fmt.Sprintf("kept %d days, pruned %s", u.RetentionDays, u.PruneSchedule)
		}
		fmt.Fprintf(out, "Usage: sqlite (%s driver) at %s, %s\n", u.Driver, u.SQLitePath, retention)
	default:
		fmt.Fprintf(out, "Usage: %s\n", u.Backend)
	}

	m := cfg.Telemetry.Metrics
	if m.Enabled {
		fmt.Fprintf(out, "Metrics: http://%s%s (chat only)\n", m.ListenAddress, m.Path)
	} else {
		fmt.Fprintln(out, "Metrics: disabled")
	}

	tr := cfg.Telemetry.Tracing
	if tr.Enabled {
		sampler := tr.Sampler
		if sampler == tracing.SamplerRatio {
			sampler = fmt.Sprintf("%s %.2f", sampler, tr.SampleRatio)
		}
		fmt.Fprintf(out, "Tracing: OTLP to %s (%s sampling)\n", tr.Endpoint, sampler)
	} else {
		fmt.Fprintln(out, "Tracing: disabled")
	}

	var missing []string
	for _, name := range cfg.ProviderNames() {
		if len(cfg.Providers[name].Keys) == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(out, "\nWarning: no API keys for %s\n", strings.Join(missing, ", "))
	}
	return nil
}
