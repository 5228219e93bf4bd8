// Package report renders the ranked ticker table.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/autodd/internal/finance"
	"github.com/ppiankov/autodd/internal/scores"
)

// Line is one ranked ticker with its market data, if any.
type Line struct {
	scores.Row
	Quote *finance.Quote `json:"quote,omitempty"`
}

// Input is the full input for a report formatter.
type Input struct {
	RunID         string
	LookbackHours int
	Forums        int // forums retrieved
	Posts         int // posts across both periods
	GeneratedAt   time.Time
	Lines         []Line
	Warnings      []string
}

// Formatter writes a formatted report to w.
type Formatter interface {
	Format(w io.Writer, in Input) error
}

// New returns the formatter for format: terminal, csv, or json.
func New(format string, color bool) (Formatter, error) {
	switch format {
	case "terminal":
		return NewTerminal(color), nil
	case "csv":
		return NewCSV(), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Build attaches quotes to rows in order. With quotes present, rows the
// provider did not price and rows above maxPrice are dropped. A nil quotes map
// keeps every row without market data.
func Build(rows []scores.Row, quotes map[string]finance.Quote, maxPrice float64) []Line {
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		if quotes == nil {
			lines = append(lines, Line{Row: r})
			continue
		}
		q, ok := quotes[r.Ticker]
		if !ok || !q.Affordable(maxPrice) {
			continue
		}
		lines = append(lines, Line{Row: r, Quote: &q})
	}
	return lines
}

func totalHeader(hours int) string {
	return fmt.Sprintf("%dH Total", hours)
}

// columns are shared by the terminal and CSV formats.
func columns(hours int) []string {
	return []string{
		"Ticker", totalHeader(hours), "Prev", "Recent", "Change", "Rockets",
		"Price", "1DayChange%", "50DayChange%", "ChangeVol%", "Float Shares",
	}
}
