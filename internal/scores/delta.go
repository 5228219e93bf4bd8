package scores

import (
	"cmp"
	"fmt"
	"slices"
)

// Row is one ticker's line in the ranked table.
type Row struct {
	Ticker   string         `json:"ticker"`
	Total    int            `json:"total"`
	Prev     int            `json:"prev"`
	Recent   int            `json:"recent"`
	Change   int            `json:"change"`
	Rockets  int            `json:"rockets"`
	Forums   map[string]int `json:"forums,omitempty"`   // both periods combined
	Patterns map[string]int `json:"patterns,omitempty"` // both periods combined
}

// Delta combines the recent and previous tallies into one row per ticker seen
// in either period. Rockets counts the first pattern.
func Delta(recent, prev *Tally, patterns []string) []Row {
	seen := make(map[string]bool)
	var tickers []string
	for _, t := range []*Tally{recent, prev} {
		for tk := range t.Scores {
			if !seen[tk] {
				seen[tk] = true
				tickers = append(tickers, tk)
			}
		}
	}
	slices.Sort(tickers)

	rows := make([]Row, 0, len(tickers))
	for _, tk := range tickers {
		r := Row{
			Ticker: tk,
			Recent: recent.Total(tk),
			Prev:   prev.Total(tk),
			Forums: make(map[string]int),
		}
		r.Total = r.Recent + r.Prev
		r.Change = r.Recent - r.Prev

		for _, t := range []*Tally{recent, prev} {
			for forum, s := range t.Scores[tk] {
				r.Forums[forum] += s
			}
		}

		if len(patterns) > 0 {
			r.Patterns = make(map[string]int, len(patterns))
			for _, p := range patterns {
				r.Patterns[p] = recent.Patterns[p][tk] + prev.Patterns[p][tk]
			}
			r.Rockets = r.Patterns[patterns[0]]
		}
		rows = append(rows, r)
	}
	return rows
}

// Filter drops rows whose total is below minTotal and rows for banned words.
func Filter(rows []Row, minTotal int, banned []string) []Row {
	ban := make(map[string]bool, len(banned))
	for _, b := range banned {
		ban[b] = true
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Total < minTotal || ban[r.Ticker] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Sort orders rows by column descending, ties by ticker.
func Sort(rows []Row, column string) error {
	key, err := sortKey(column)
	if err != nil {
		return err
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(key(b), key(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Ticker, b.Ticker)
	})
	return nil
}

func sortKey(column string) (func(Row) int, error) {
	switch column {
	case "total":
		return func(r Row) int { return r.Total }, nil
	case "recent":
		return func(r Row) int { return r.Recent }, nil
	case "prev":
		return func(r Row) int { return r.Prev }, nil
	case "change":
		return func(r Row) int { return r.Change }, nil
	case "rockets":
		return func(r Row) int { return r.Rockets }, nil
	default:
		return nil, fmt.Errorf("unknown sort column %q", column)
	}
}
