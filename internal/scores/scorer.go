// Package scores extracts ticker symbols from posts and ranks them by how much
// attention they drew in each period.
package scores

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/ppiankov/autodd/internal/source"
)

// tickerPattern matches 3-5 capital letters with an optional share-class suffix (BRK.B).
var tickerPattern = regexp.MustCompile(`\b[A-Z]{3,5}\b(?:\.[A-Z]{1,2})?`)

// Tally holds one period's ticker scores per forum and pattern counts per ticker.
type Tally struct {
	Forums   []string                  // sorted forum ids
	Scores   map[string]map[string]int // ticker -> forum -> score
	Patterns map[string]map[string]int // pattern -> ticker -> occurrences
}

// Count scores every ticker mentioned in byForum. Each post adds score-1 to
// each distinct ticker in its title or body, and the occurrences of every
// pattern in its text.
func Count(byForum map[string][]source.Post, patterns []string) *Tally {
	t := &Tally{
		Forums:   slices.Sorted(maps.Keys(byForum)),
		Scores:   make(map[string]map[string]int),
		Patterns: make(map[string]map[string]int, len(patterns)),
	}
	for _, p := range patterns {
		t.Patterns[p] = make(map[string]int)
	}

	for forum, posts := range byForum {
		for _, post := range posts {
			body := post.Body
			if post.Removed() {
				body = ""
			}
			tickers := Extract(post.Title + "\n" + body)
			if len(tickers) == 0 {
				continue
			}

			for _, p := range patterns {
				n := strings.Count(post.Title, p) + strings.Count(body, p)
				for _, tk := range tickers {
					t.Patterns[p][tk] += n
				}
			}

			for _, tk := range tickers {
				if t.Scores[tk] == nil {
					t.Scores[tk] = make(map[string]int)
				}
				t.Scores[tk][forum] += post.Score - 1
			}
		}
	}
	return t
}

// Extract returns the distinct tickers in text, sorted. A dotted share class
// also yields its dash spelling, which is how quote providers list it.
func Extract(text string) []string {
	matches := tickerPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var out []string
	for _, m := range matches {
		out = append(out, m)
		if strings.Contains(m, ".") {
			out = append(out, strings.ReplaceAll(m, ".", "-"))
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Total returns ticker's score summed over all forums.
func (t *Tally) Total(ticker string) int {
	total := 0
	for _, s := range t.Scores[ticker] {
		total += s
	}
	return total
}

// Tickers returns every scored ticker, sorted.
func (t *Tally) Tickers() []string {
	return slices.Sorted(maps.Keys(t.Scores))
}
