package report

import (
	"encoding/json"
	"io"
	"time"
)

type jsonReport struct {
	Meta     jsonMeta `json:"meta"`
	Tickers  []Line   `json:"tickers"`
	Warnings []string `json:"warnings,omitempty"`
}

type jsonMeta struct {
	RunID         string `json:"run_id,omitempty"`
	LookbackHours int    `json:"lookback_hours"`
	Forums        int    `json:"forums"`
	Posts         int    `json:"posts"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

// JSONFormatter writes the report as indented JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(w io.Writer, in Input) error {
	out := jsonReport{
		Meta: jsonMeta{
			RunID:         in.RunID,
			LookbackHours: in.LookbackHours,
			Forums:        in.Forums,
			Posts:         in.Posts,
		},
		Tickers:  in.Lines,
		Warnings: in.Warnings,
	}
	if out.Tickers == nil {
		out.Tickers = []Line{}
	}
	if !in.GeneratedAt.IsZero() {
		out.Meta.GeneratedAt = in.GeneratedAt.UTC().Format(time.RFC3339)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
