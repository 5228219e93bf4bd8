package retrieval

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/autodd/internal/source"
)

// fakeAdapter serves posts filtered to the requested window, like a real source.
type fakeAdapter struct {
	name  string
	posts map[string][]source.Post // by forum
	err   error
	// fetch, when set, replaces the window filter.
	fetch func(forum string, w source.Window) ([]source.Post, error)

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	gate     chan struct{}

	mu      sync.Mutex
	windows []source.Window
}

func (f *fakeAdapter) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeAdapter) FetchWindow(ctx context.Context, forum string, w source.Window, _ []string) ([]source.Post, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.fetch != nil {
		return f.fetch(forum, w)
	}

	var out []source.Post
	for _, p := range f.posts[forum] {
		if p.CreatedAt >= w.Start && p.CreatedAt < w.End {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAdapter) seen() []source.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.windows)
}

func post(id string, createdAt int64) source.Post {
	return source.Post{ID: id, CreatedAt: createdAt, Score: 1}
}

func ids(posts []source.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func kinds(warnings []Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Kind)
	}
	return out
}
