package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"mercator-hq/switchboard/pkg/pipeline"
	"mercator-hq/switchboard/pkg/providers"
)

// streamPrinter writes stream events as they arrive. Answer text goes to
// out; reasoning goes to errOut so that piped output holds the answer only.
type streamPrinter struct {
	out          io.Writer
	errOut       io.Writer
	showThinking bool

	thinking  bool
	wroteText bool
}

func (p *streamPrinter) handle(ev providers.StreamEvent) {
	switch ev.Type {
	case providers.EventThinking:
		if !p.showThinking {
			return
		}
		if !p.thinking {
			fmt.Fprint(p.errOut, "[thinking] ")
			p.thinking = true
		}
		fmt.Fprint(p.errOut, ev.Delta)

	case providers.EventText:
		if p.thinking {
			fmt.Fprintln(p.errOut)
			p.thinking = false
		}
		fmt.Fprint(p.out, ev.Delta)
		p.wroteText = true

	case providers.EventToolCalls:
		printToolCalls(p.out, ev.ToolCalls)

	case providers.EventDone, providers.EventError:
		if p.thinking {
			fmt.Fprintln(p.errOut)
			p.thinking = false
		}
		if p.wroteText {
			fmt.Fprintln(p.out)
		}
	}
}

func printToolCalls(w io.Writer, calls []providers.ToolCall) {
	for _, tc := range calls {
		fmt.Fprintf(w, "[tool call] %s(%s)\n", tc.Function.Name, tc.Function.Arguments)
	}
}

// printResult writes a non-streaming answer.
func printResult(out, errOut io.Writer, rc *pipeline.RequestContext, showThinking bool) {
	if showThinking && rc.ReasoningText != "" {
		fmt.Fprintf(errOut, "[thinking] %s\n", strings.TrimSpace(rc.ReasoningText))
	}
	if rc.ResponseText != "" {
		fmt.Fprintln(out, rc.ResponseText)
	}
	printToolCalls(out, rc.ToolCalls)
}

// statsLine summarizes a finished request.
func statsLine(rc *pipeline.RequestContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s · %s", rc.Provider, rc.Model, rc.Elapsed.Round(10*time.Millisecond))
	if rc.RetryCount > 0 {
		fmt.Fprintf(&sb, " · %d retries", rc.RetryCount)
	}
	if rc.TotalTokens > 0 {
		fmt.Fprintf(&sb, " · %d tokens (%d in, %d out)", rc.TotalTokens, rc.InputTokens, rc.OutputTokens)
		if rc.Estimated {
			sb.WriteString(" estimated")
		}
	}
	return sb.String()
}

// resultJSON is the --json form of a finished request.
type resultJSON struct {
	ID        string               `json:"id"`
	Provider  string               `json:"provider"`
	Model     string               `json:"model"`
	Text      string               `json:"text"`
	Partial   string               `json:"partial_text,omitempty"`
	Reasoning string               `json:"reasoning,omitempty"`
	ToolCalls []providers.ToolCall `json:"tool_calls,omitempty"`
	Elapsed   float64              `json:"elapsed_seconds"`
	Retries   int                  `json:"retries"`
	Tokens    *tokensJSON          `json:"tokens,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type tokensJSON struct {
	Input     int  `json:"input"`
	Output    int  `json:"output"`
	Total     int  `json:"total"`
	Estimated bool `json:"estimated"`
}

func toResultJSON(rc *pipeline.RequestContext) resultJSON {
	r := resultJSON{
		ID:        rc.ID,
		Provider:  rc.Provider,
		Model:     rc.Model,
		Text:      rc.ResponseText,
		Partial:   rc.PartialText,
		Reasoning: rc.ReasoningText,
		ToolCalls: rc.ToolCalls,
		Elapsed:   rc.Elapsed.Seconds(),
		Retries:   rc.RetryCount,
		Error:     rc.Error,
	}
	if rc.TotalTokens > 0 {
		r.Tokens = &tokensJSON{Input: rc.InputTokens, Output: rc.OutputTokens, Total: rc.TotalTokens, Estimated: rc.Estimated}
	}
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
