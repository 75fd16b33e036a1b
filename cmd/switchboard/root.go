package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	logLevel string
)

// defaultConfigFiles are tried in order when --config is not given.
var defaultConfigFiles = []string{"switchboard.yaml", "switchboard.yml", "switchboard.toml"}

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard - provider-agnostic AI request dispatch",
	Long: `Switchboard sends prompts to OpenRouter, Gemini or any OpenAI-compatible
endpoint through one interface.

Each provider has an ordered pool of API keys. Invalid keys and keys out of
credit are rotated out, rate limits rotate to the next key or cool down,
and transient failures are retried a bounded number of times.

Configuration is read from --config, from switchboard.yaml (or .yml, .toml)
in the working directory, or from SWITCHBOARD_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (yaml or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warnings only")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// resolveConfigPath returns the explicit --config path, the first default
// file present in the working directory, or "" to configure from the
// environment alone.
func resolveConfigPath() (string, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return "", cli.NewConfigError("--config", err.Error())
		}
		return cfgFile, nil
	}

	for _, name := range defaultConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", cli.NewConfigError(name, err.Error())
		}
	}
	return "", nil
}
