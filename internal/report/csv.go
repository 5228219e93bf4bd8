package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVFormatter writes a header and one record per line, then a blank line, so
// successive runs can be appended to the same file.
type CSVFormatter struct{}

// NewCSV creates a CSV formatter.
func NewCSV() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, in Input) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns(in.LookbackHours)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range in.Lines {
		if err := cw.Write(csvRecord(l)); err != nil {
			return fmt.Errorf("write csv row %s: %w", l.Ticker, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func csvRecord(l Line) []string {
	rec := []string{
		l.Ticker,
		strconv.Itoa(l.Total),
		strconv.Itoa(l.Prev),
		strconv.Itoa(l.Recent),
		strconv.Itoa(l.Change),
		strconv.Itoa(l.Rockets),
	}
	if l.Quote == nil {
		return append(rec, "", "", "", "", "")
	}
	q := l.Quote
	return append(rec,
		strconv.FormatFloat(q.Price, 'f', 3, 64),
		strconv.FormatFloat(q.DayChangePct, 'f', 3, 64),
		strconv.FormatFloat(q.FiftyDayPct, 'f', 3, 64),
		strconv.FormatFloat(q.VolumeChangePct, 'f', 3, 64),
		strconv.FormatInt(q.FloatShares, 10),
	)
}
