package usage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"id", "request_id", "time", "provider", "model", "origin",
	"streaming", "thinking",
	"prompt_tokens", "completion_tokens", "total_tokens", "estimated",
	"retries", "latency_ms", "status", "error",
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []*Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.RequestID,
			r.Time.UTC().Format(time.RFC3339),
			r.Provider,
			r.Model,
			r.Origin,
			strconv.FormatBool(r.Streaming),
			strconv.FormatBool(r.Thinking),
			strconv.Itoa(r.PromptTokens),
			strconv.Itoa(r.CompletionTokens),
			strconv.Itoa(r.TotalTokens),
			strconv.FormatBool(r.Estimated),
			strconv.Itoa(r.Retries),
			strconv.FormatInt(r.Latency.Milliseconds(), 10),
			r.Status,
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []*Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}
