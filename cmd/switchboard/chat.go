package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/dispatch"
	"mercator-hq/switchboard/pkg/keypool"
	"mercator-hq/switchboard/pkg/pipeline"
	"mercator-hq/switchboard/pkg/providers"
	"mercator-hq/switchboard/pkg/server"
	"mercator-hq/switchboard/pkg/usage"
)

var chatFlags struct {
	provider string
	model    string
	system   string
	thinking bool
	noWatch  bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive streaming chat",
	Long: `Start an interactive chat that streams every answer.

While the chat runs:
  - the configuration file is watched; retry settings and default models
    are applied without restarting
  - providers with key_reset_schedule get their exhausted keys cleared on
    schedule
  - usage records older than usage.retention_days are pruned on schedule
  - with telemetry.metrics.enabled, a status server exposes /metrics,
    /healthz, /readyz and /keys

Commands inside the chat:
  /provider <name>  switch provider (history is kept)
  /model <name>     override the model ("" for the default)
  /keys             show key pool status
  /reset            clear the conversation
  /exit             leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	f := chatCmd.Flags()
	f.StringVarP(&chatFlags.provider, "provider", "p", "", "provider name (default: first provider with keys)")
	f.StringVarP(&chatFlags.model, "model", "m", "", "model override")
	f.StringVarP(&chatFlags.system, "system", "s", "", "system prompt")
	f.BoolVar(&chatFlags.thinking, "thinking", false, "request and show reasoning output")
	f.BoolVar(&chatFlags.noWatch, "no-watch", false, "do not reload the configuration file on change")
}

// chatSession holds the state of one interactive chat.
type chatSession struct {
	app      *app
	id       string
	provider string
	model    string
	system   string
	thinking bool
	history  []providers.Message
	out      io.Writer
	errOut   io.Writer

	// reloaded is the last configuration published by the watcher
	reloaded atomic.Pointer[config.Config]
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	s := &chatSession{
		app:      a,
		id:       uuid.New().String(),
		provider: chatFlags.provider,
		model:    chatFlags.model,
		system:   chatFlags.system,
		thinking: chatFlags.thinking,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}
	if s.provider == "" {
		s.provider = a.defaultProvider()
	}

	if err := startBackground(ctx, a, s.applyConfig); err != nil {
		return err
	}
	return s.run(ctx, cmd.InOrStdin())
}

// applyConfig takes a reloaded configuration into use.
func (s *chatSession) applyConfig(cfg *config.Config) {
	s.reloaded.Store(cfg)
	s.app.engine.Apply(cfg.ToEngineConfig())
}

// currentConfig is the configuration last published by the watcher, or the
// one loaded at startup.
func (s *chatSession) currentConfig() *config.Config {
	if cfg := s.reloaded.Load(); cfg != nil {
		return cfg
	}
	return s.app.cfg
}

// startBackground starts the config watcher, key reset scheduler, usage
// pruner and status server. Each stops when ctx is cancelled.
func startBackground(ctx context.Context, a *app, onReload func(*config.Config)) error {
	if a.configPath != "" && !chatFlags.noWatch {
		w, err := config.NewWatcher(a.configPath, 0, a.logger)
		if err != nil {
			return err
		}
		go func() {
			defer w.Stop()
			if err := w.Watch(ctx, onReload); err != nil {
				a.logger.Error("config watcher failed", "error", err)
			}
		}()
	}

	if schedules := a.cfg.KeyResetSchedules(); len(schedules) > 0 {
		sched := keypool.NewResetScheduler(a.engine.Pools(), a.logger)
		for provider, spec := range schedules {
			if err := sched.Schedule(provider, spec); err != nil {
				return cli.NewConfigError("providers."+provider+".key_reset_schedule", err.Error())
			}
		}
		sched.Start(ctx)
	}

	if a.store != nil && a.cfg.Usage.RetentionDays > 0 {
		pruner := usage.NewPruner(a.store, a.cfg.Usage.RetentionDays, a.logger)
		if err := pruner.Start(ctx, a.cfg.Usage.PruneSchedule); err != nil {
			return cli.NewConfigError("usage.prune_schedule", err.Error())
		}
	}

	if a.cfg.Telemetry.Metrics.Enabled {
		srv := server.NewServer(server.Config{
			ListenAddress: a.cfg.Telemetry.Metrics.ListenAddress,
			MetricsPath:   a.cfg.Telemetry.Metrics.Path,
			Version:       Version,
		}, a.engine.Pools(), a.metrics, a.logger)
		srv.RegisterCheck("providers", server.ProviderCheck(a.engine.Degraded))
		if a.store != nil {
			store := a.store
			srv.RegisterCheck("usage", func(ctx context.Context) error {
				_, err := store.Query(ctx, &usage.Query{Limit: 1})
				return err
			})
		}
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	return nil
}

// readLines delivers input lines on a channel so that the chat loop can
// also watch for cancellation.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxAttachmentSize)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.errOut, "Chatting with %s. /exit to leave.\n", s.provider)

	lines := readLines(in)
	for {
		fmt.Fprint(s.errOut, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.errOut)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.errOut)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := s.command(line); done {
				return nil
			}
			continue
		}

		if err := s.turn(ctx, line); err != nil {
			return err
		}
	}
}

// command handles a slash command and reports whether the chat should end.
func (s *chatSession) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.Trim(strings.TrimSpace(arg), `"`)

	switch name {
	case "/exit", "/quit":
		return true
	case "/reset":
		s.history = nil
		fmt.Fprintln(s.errOut, "conversation cleared")
	case "/provider":
		if _, ok := s.app.engine.Adapter(arg); !ok {
			fmt.Fprintf(s.errOut, "unknown provider %q (configured: %s)\n", arg, strings.Join(s.app.engine.Providers(), ", "))
			break
		}
		s.provider = arg
		fmt.Fprintf(s.errOut, "switched to %s\n", arg)
	case "/model":
		s.model = arg
		if arg == "" {
			arg = s.app.engine.DefaultModel(s.provider)
		}
		fmt.Fprintf(s.errOut, "model: %s\n", arg)
	case "/keys":
		cli.NewFormatter(cli.FormatText).FormatTo(s.errOut, poolTable(s.app.engine.Pools(), s.currentConfig()))
	default:
		fmt.Fprintf(s.errOut, "unknown command %s\n", name)
	}
	return false
}

// turn sends one user message with the conversation so far. A failed turn
// is dropped from the history; a cancelled one ends the chat.
func (s *chatSession) turn(ctx context.Context, text string) error {
	msgs := make([]providers.Message, 0, len(s.history)+2)
	if s.system != "" {
		msgs = append(msgs, providers.NewTextMessage(providers.RoleSystem, s.system))
	}
	msgs = append(msgs, s.history...)
	user := providers.NewTextMessage(providers.RoleUser, text)
	msgs = append(msgs, user)

	printer := &streamPrinter{out: s.out, errOut: s.errOut, showThinking: s.thinking}
	rc := s.app.pipeline.CallStream(ctx, pipeline.Request{
		Request: dispatch.Request{
			Provider: s.provider,
			Model:    s.model,
			Messages: msgs,
			Thinking: s.thinking,
		},
		Origin:    "chat",
		SessionID: s.id,
	}, printer.handle)

	if rc.Err != nil {
		if dispatch.IsCancelled(rc.Err) {
			return nil
		}
		fmt.Fprintf(s.errOut, "error: %s\n", rc.Error)
		return nil
	}

	s.history = append(s.history, user, providers.NewTextMessage(providers.RoleAssistant, rc.ResponseText))
	return nil
}
