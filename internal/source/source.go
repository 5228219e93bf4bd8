package source

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Core field names as used by both providers.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_utc"
	FieldTitle     = "title"
	FieldBody      = "selftext"
	FieldScore     = "score"
)

// Body sentinels left behind by moderators or authors.
const (
	RemovedMarker = "[removed]"
	DeletedMarker = "[deleted]"
)

// Post is a normalized item fetched from a forum.
type Post struct {
	ID        string         // provider-assigned id
	CreatedAt int64          // unix seconds, UTC
	Title     string         // may be empty
	Body      string         // may be empty or a removal marker
	Score     int            // upvotes; 1 when the provider omits it
	Fields    map[string]any // every requested field as returned by the provider
}

// Removed reports whether the body is a removal sentinel.
func (p Post) Removed() bool {
	return p.Body == RemovedMarker || p.Body == DeletedMarker
}

// Window is the half-open interval [Start, End) in unix seconds.
type Window struct {
	Start int64
	End   int64
}

// Empty reports whether the window contains no instants.
func (w Window) Empty() bool {
	return w.End <= w.Start
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return time.Duration(w.End-w.Start) * time.Second
}

// Format renders the window in loc using the local timestamp layout.
func (w Window) Format(loc *time.Location) string {
	return fmt.Sprintf("%s to %s", LocalTime(w.Start, loc), LocalTime(w.End, loc))
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d)", w.Start, w.End)
}

// LocalTime formats a unix timestamp in loc (UTC when loc is nil).
func LocalTime(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04:05")
}

// Adapter fetches the posts of one forum over one window from one backing source.
// Results are in source-native order; callers must not assume any ordering.
type Adapter interface {
	// Name returns the source identifier (e.g. "arcticshift").
	Name() string

	// FetchWindow returns the posts created within w. The fields list names the
	// provider attributes to retrieve; id and created_utc are always included.
	FetchWindow(ctx context.Context, forum string, w Window, fields []string) ([]Post, error)
}

// WithCoreFields returns fields plus id and created_utc, without duplicates.
// The input slice is not modified.
func WithCoreFields(fields []string) []string {
	out := make([]string, 0, len(fields)+2)
	out = append(out, FieldID, FieldCreatedAt)
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
