package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	upStyle     = cellStyle.Foreground(lipgloss.Color("#04B575"))
	downStyle   = cellStyle.Foreground(lipgloss.Color("#FF5F87"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// changeColumn is colored by sign.
const changeColumn = 4

// TerminalFormatter renders the table with box drawing.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for styled output.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

func (f *TerminalFormatter) Format(w io.Writer, in Input) error {
	fmt.Fprintf(w, "autodd - %d forums, %s posts, %dh lookback\n",
		in.Forums, humanize.Comma(int64(in.Posts)), in.LookbackHours)
	if !in.GeneratedAt.IsZero() {
		fmt.Fprintln(w, f.dim("generated "+in.GeneratedAt.Format("2006-01-02 15:04:05")))
	}
	fmt.Fprintln(w)

	if len(in.Lines) == 0 {
		fmt.Fprintln(w, "No tickers above the minimum score.")
		return nil
	}

	rows := make([][]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		rows = append(rows, terminalRow(l))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(columns(in.LookbackHours)...).
		Rows(rows...)
	if f.color {
		t = t.BorderStyle(dimStyle).StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == changeColumn && row >= 0 && row < len(in.Lines) {
				switch c := in.Lines[row].Change; {
				case c > 0:
					return upStyle
				case c < 0:
					return downStyle
				}
			}
			return cellStyle
		})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style { return cellStyle })
	}

	fmt.Fprintln(w, t.Render())

	for _, warn := range in.Warnings {
		fmt.Fprintln(w, f.dim("warning: "+warn))
	}
	return nil
}

func terminalRow(l Line) []string {
	row := []string{
		l.Ticker,
		humanize.Comma(int64(l.Total)),
		humanize.Comma(int64(l.Prev)),
		humanize.Comma(int64(l.Recent)),
		signed(l.Change),
		strconv.Itoa(l.Rockets),
	}
	if l.Quote == nil {
		return append(row, "N/A", "N/A", "N/A", "N/A", "N/A")
	}
	q := l.Quote
	return append(row,
		humanize.FormatFloat("#,###.###", q.Price),
		fmt.Sprintf("%.3f", q.DayChangePct),
		fmt.Sprintf("%.3f", q.FiftyDayPct),
		fmt.Sprintf("%.3f", q.VolumeChangePct),
		floatShares(q.FloatShares),
	)
}

func signed(n int) string {
	if n > 0 {
		return "+" + humanize.Comma(int64(n))
	}
	return humanize.Comma(int64(n))
}

func floatShares(n int64) string {
	if n == 0 {
		return "N/A"
	}
	return humanize.Comma(n)
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return dimStyle.Render(s)
}
