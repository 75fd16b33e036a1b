package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/pipeline"
)

var compareFlags struct {
	providers   []string
	system      string
	images      []string
	files       []string
	concurrency int
	output      string
}

var compareCmd = &cobra.Command{
	Use:   "compare [prompt]",
	Short: "Send the same prompt to several providers and compare the answers",
	Long: `Send one prompt to several providers concurrently and print each
provider's answer with its latency, retries and token counts.

Providers default to every configured provider that has keys. A failing
provider does not stop the others; its error is shown in its row.

Examples:
  switchboard compare "Summarize the plot of Hamlet in one sentence"
  switchboard compare --providers openrouter,google --output json "2+2?"`,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	f := compareCmd.Flags()
	f.StringSliceVar(&compareFlags.providers, "providers", nil, "providers to query (default: all with keys)")
	f.StringVarP(&compareFlags.system, "system", "s", "", "system prompt")
	f.StringArrayVar(&compareFlags.images, "image", nil, "attach an image (repeatable)")
	f.StringArrayVar(&compareFlags.files, "file", nil, "attach a file (repeatable)")
	f.IntVar(&compareFlags.concurrency, "concurrency", 4, "maximum providers queried at once")
	f.StringVarP(&compareFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(compareFlags.output)
	if err != nil {
		return err
	}
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	msgs, err := buildMessages(compareFlags.system, prompt, compareFlags.images, compareFlags.files)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := compareTargets(a, compareFlags.providers)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	progress := cli.NewProgressReporter(cmd.ErrOrStderr())
	progress.Start(int64(len(names)))

	results := make([]*pipeline.RequestContext, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if compareFlags.concurrency > 0 {
		g.SetLimit(compareFlags.concurrency)
	}
	for i, name := range names {
		g.Go(func() error {
			// provider failures are reported per row, not through the group
			rc, _ := a.pipeline.Call(gctx, pipeline.Request{
				Request: dispatch.Request{Provider: name, Messages: msgs},
				Origin:  "compare",
			})
			results[i] = rc
			progress.Increment(name)
			return nil
		})
	}
	g.Wait()
	progress.Finish()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), compareTable(results)); err != nil {
		return err
	}

	for _, rc := range results {
		if rc.Succeeded() {
			return nil
		}
	}
	return cli.NewCommandError("compare", fmt.Errorf("all %d providers failed", len(results)))
}

// compareTargets resolves the --providers list, defaulting to every
// provider with keys.
func compareTargets(a *app, requested []string) ([]string, error) {
	if len(requested) == 0 {
		var names []string
		for _, name := range a.engine.Providers() {
			if pool, ok := a.engine.Pool(name); ok && pool.HasKeys() {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, cli.NewConfigError("providers", "no provider has API keys")
		}
		return names, nil
	}

	for _, name := range requested {
		if _, ok := a.engine.Adapter(name); !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return requested, nil
}

type compareTable []*pipeline.RequestContext

func (t compareTable) Header() []string {
	return []string{"PROVIDER", "MODEL", "LATENCY", "RETRIES", "TOKENS", "ANSWER"}
}

func (t compareTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, rc := range t {
		tokens := "-"
		if rc.TotalTokens > 0 {
			tokens = strconv.Itoa(rc.TotalTokens)
			if rc.Estimated {
				tokens += "~"
			}
		}
		answer := oneLine(rc.ResponseText, 80)
		if !rc.Succeeded() {
			answer = "error: " + rc.Error
		}
		rows = append(rows, []string{
			rc.Provider,
			rc.Model,
			rc.Elapsed.Round(10 * time.Millisecond).String(),
			strconv.Itoa(rc.RetryCount),
			tokens,
			answer,
		})
	}
	return rows
}

func (t compareTable) Data() any {
	out := make([]resultJSON, len(t))
	for i, rc := range t {
		out[i] = toResultJSON(rc)
	}
	return out
}

// oneLine collapses whitespace and truncates s to limit runes.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
