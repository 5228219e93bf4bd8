package retrieval

import (
	"fmt"
	"time"

	"github.com/ppiankov/autodd/internal/source"
)

const (
	edgeGapLimit     = 20 * time.Minute
	internalGapLimit = 30 * time.Minute
)

// checkGaps warns when posts stops well short of either window edge, or when the
// largest silence between consecutive posts (edges included) is suspiciously long.
// posts must be sorted newest first. An empty result is reported by the caller.
func checkGaps(forum string, w source.Window, posts []source.Post, loc *time.Location) []Warning {
	if len(posts) == 0 {
		return nil
	}

	interval := w.Format(loc)
	var warnings []Warning

	endGap := seconds(w.End - posts[0].CreatedAt)
	if endGap > edgeGapLimit {
		warnings = append(warnings, Warning{
			Kind:    KindDataGap,
			Forum:   forum,
			Message: fmt.Sprintf("no data for last %.1f minutes. Interval: %s", endGap.Minutes(), interval),
		})
	}
	startGap := seconds(posts[len(posts)-1].CreatedAt - w.Start)
	if startGap > edgeGapLimit {
		warnings = append(warnings, Warning{
			Kind:    KindDataGap,
			Forum:   forum,
			Message: fmt.Sprintf("no data for first %.1f minutes. Interval: %s", startGap.Minutes(), interval),
		})
	}

	// window edges act as synthetic posts
	stamps := make([]int64, 0, len(posts)+2)
	stamps = append(stamps, w.End)
	for _, p := range posts {
		stamps = append(stamps, p.CreatedAt)
	}
	stamps = append(stamps, w.Start)

	widest, at := time.Duration(0), 0
	for i := range len(stamps) - 1 {
		if gap := seconds(stamps[i] - stamps[i+1]); gap > widest {
			widest, at = gap, i
		}
	}
	if widest > internalGapLimit {
		warnings = append(warnings, Warning{
			Kind:  KindDataGap,
			Forum: forum,
			Message: fmt.Sprintf("%.1f minute gap between %s and %s. Interval: %s",
				widest.Minutes(),
				source.LocalTime(stamps[at+1], loc),
				source.LocalTime(stamps[at], loc),
				interval),
		})
	}
	return warnings
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
