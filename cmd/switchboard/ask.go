package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/pipeline"
)

var askFlags struct {
	provider    string
	model       string
	system      string
	stream      bool
	thinking    bool
	images      []string
	files       []string
	temperature float64
	maxTokens   int
	json        bool
	stats       bool
}

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one prompt and print the answer",
	Long: `Send one prompt to a provider and print the answer.

The prompt is taken from the arguments, or from standard input when no
arguments are given. Images and files can be attached; text files are
inlined, other files are sent as binary parts where the provider accepts them.

Examples:
  # Ask the default provider
  switchboard ask "What is the capital of Australia?"

  # Stream the answer from Gemini with reasoning shown
  switchboard ask --provider google --stream --thinking "Prove sqrt(2) is irrational"

  # Describe a screenshot
  switchboard ask --image screenshot.png "What error is shown here?"

  # Pipe a prompt and get JSON back
  cat question.txt | switchboard ask --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	f := askCmd.Flags()
	f.StringVarP(&askFlags.provider, "provider", "p", "", "provider name (default: first provider with keys)")
	f.StringVarP(&askFlags.model, "model", "m", "", "model override")
	f.StringVarP(&askFlags.system, "system", "s", "", "system prompt")
	f.BoolVar(&askFlags.stream, "stream", false, "print the answer as it arrives")
	f.BoolVar(&askFlags.thinking, "thinking", false, "request and show reasoning output")
	f.StringArrayVar(&askFlags.images, "image", nil, "attach an image (repeatable)")
	f.StringArrayVar(&askFlags.files, "file", nil, "attach a file (repeatable)")
	f.Float64Var(&askFlags.temperature, "temperature", 0, "sampling temperature")
	f.IntVar(&askFlags.maxTokens, "max-tokens", 0, "maximum output tokens")
	f.BoolVar(&askFlags.json, "json", false, "print the result as JSON")
	f.BoolVar(&askFlags.stats, "stats", false, "print timing, retries and tokens to stderr")
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	msgs, err := buildMessages(askFlags.system, prompt, askFlags.images, askFlags.files)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	provider := askFlags.provider
	if provider == "" {
		provider = a.defaultProvider()
	}

	req := pipeline.Request{
		Request: dispatch.Request{
			Provider: provider,
			Model:    askFlags.model,
			Messages: msgs,
			Params: generationParams(a.providerType(provider),
				askFlags.temperature, cmd.Flags().Changed("temperature"), askFlags.maxTokens),
			Thinking: askFlags.thinking,
		},
		Origin: "ask",
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var rc *pipeline.RequestContext
	if askFlags.stream && !askFlags.json {
		printer := &streamPrinter{out: out, errOut: errOut, showThinking: askFlags.thinking}
		rc = a.pipeline.CallStream(ctx, req, printer.handle)
	} else {
		rc, _ = a.pipeline.Call(ctx, req)
		if !askFlags.json && rc.Succeeded() {
			printResult(out, errOut, rc, askFlags.thinking)
		}
	}

	if askFlags.json {
		if err := writeJSON(out, toResultJSON(rc)); err != nil {
			return err
		}
	}
	if askFlags.stats {
		fmt.Fprintln(errOut, statsLine(rc))
	}

	return rc.Err
}
