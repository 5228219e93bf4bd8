package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ppiankov/autodd/internal/source"
)

// freshnessWindow is how close to "now" a window must end for the bulk
// source's replication lag to matter.
const freshnessWindow = 600 // seconds

// Reconciler merges bulk results with a live patch into one ordered,
// duplicate-free result and reports staleness and gaps.
type Reconciler struct {
	// Live patches the newest stretch of a window. Nil disables patching.
	Live source.Adapter
	// LiveCap is the most posts one live fetch returns; reaching it without
	// touching known data means the bulk source lags further than the live fetch reaches.
	LiveCap int
	// Location is used to name gap boundaries in warnings.
	Location *time.Location
}

// Reconcile returns bulk deduplicated by id and sorted newest first, with posts
// from the live feed newer than the newest bulk post prepended when w ends
// within freshnessWindow of now. Gap checks run only when sanity is set.
func (r *Reconciler) Reconcile(ctx context.Context, forum string, w source.Window, bulk []source.Post, now int64, fields []string, sanity bool) ([]source.Post, []Warning) {
	posts := dedupSorted(bulk)

	var warnings []Warning
	if r.Live != nil && now-w.End < freshnessWindow {
		patch, warns := r.patch(ctx, forum, w, posts, now, fields)
		warnings = append(warnings, warns...)
		if len(patch) > 0 {
			posts = append(patch, posts...)
		}
	}

	if sanity {
		warnings = append(warnings, checkGaps(forum, w, posts, r.Location)...)
	}
	return posts, warnings
}

func (r *Reconciler) patch(ctx context.Context, forum string, w source.Window, known []source.Post, now int64, fields []string) ([]source.Post, []Warning) {
	latestKnown := w.Start
	if len(known) > 0 {
		latestKnown = known[0].CreatedAt
	}

	live, err := r.Live.FetchWindow(ctx, forum, w, fields)
	if err != nil {
		return nil, []Warning{{
			Kind:    KindDegraded,
			Forum:   forum,
			Message: fmt.Sprintf("live patch skipped, using historical data only: %v", err),
		}}
	}

	ids := make(map[string]bool, len(known))
	for _, p := range known {
		ids[p.ID] = true
	}

	var (
		patch   []source.Post
		reached bool
	)
	for _, p := range live {
		if p.CreatedAt <= latestKnown {
			reached = true
			break
		}
		// End belongs to the next window
		if p.CreatedAt >= w.End || ids[p.ID] {
			continue
		}
		ids[p.ID] = true
		patch = append(patch, p)
	}
	patch = dedupSorted(patch)

	var warnings []Warning
	exhausted := r.LiveCap <= 0 || len(live) >= r.LiveCap
	if !reached && exhausted && len(live) > 0 {
		oldest := live[len(live)-1].CreatedAt
		lag := time.Duration(now-oldest) * time.Second
		warnings = append(warnings, Warning{
			Kind:  KindStaleness,
			Forum: forum,
			Message: fmt.Sprintf("historical source delayed by more than %.1f hours; missing data from %s to %s",
				lag.Hours(), source.LocalTime(latestKnown, r.Location), source.LocalTime(oldest, r.Location)),
		})
	}
	return patch, warnings
}

// dedupSorted drops repeated ids (first occurrence wins) and sorts by
// creation time descending, ties broken by id for a deterministic order.
func dedupSorted(posts []source.Post) []source.Post {
	seen := make(map[string]bool, len(posts))
	out := make([]source.Post, 0, len(posts))
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b source.Post) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
