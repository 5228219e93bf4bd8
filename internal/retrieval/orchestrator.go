// Package retrieval fetches forum posts over two adjacent time windows from a
// bulk historical source and a live feed, and reconciles them into one ordered
// result per forum.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/autodd/internal/forum"
	"github.com/ppiankov/autodd/internal/source"
)

// Mode selects which backing sources a run uses.
type Mode string

const (
	ModeBulk   Mode = "bulk"   // historical index only
	ModeLive   Mode = "live"   // live feed only, capped
	ModeHybrid Mode = "hybrid" // historical index patched with the live feed
)

// ParseMode accepts the mode names and the legacy psaw/praw aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bulk", "psaw":
		return ModeBulk, nil
	case "live", "praw":
		return ModeLive, nil
	case "hybrid", "":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("invalid source mode %q (want bulk, live, or hybrid)", s)
	}
}

// NeedsLive reports whether m requires live feed credentials.
func (m Mode) NeedsLive() bool {
	return m == ModeLive || m == ModeHybrid
}

// NeedsBulk reports whether m fetches from the historical index.
func (m Mode) NeedsBulk() bool {
	return m == ModeBulk || m == ModeHybrid
}

// Config is the immutable setup of an Orchestrator.
type Config struct {
	Registry     *forum.Registry
	Fields       []string         // provider attributes to retrieve
	SanityForums []string         // forums subject to gap checks
	Bulk         []source.Adapter // one per egress path
	Live         source.Adapter   // nil unless the mode needs it
	LiveCap      int
	Location     *time.Location
	Now          func() time.Time
}

// Request is one invocation of the retrieval pipeline.
type Request struct {
	LookbackHours int
	Forum         string // empty selects every registered forum
	Mode          Mode
}

// Result holds both periods of a run keyed by forum, newest post first.
type Result struct {
	RunID          string
	Recent         map[string][]source.Post
	Previous       map[string][]source.Post
	RecentWindow   source.Window
	PreviousWindow source.Window
	Warnings       []Warning
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Posts returns the number of posts in both periods.
func (r *Result) Posts() int {
	n := 0
	for _, posts := range r.Recent {
		n += len(posts)
	}
	for _, posts := range r.Previous {
		n += len(posts)
	}
	return n
}

// Orchestrator runs the fetch and reconcile pipeline for every forum in scope.
type Orchestrator struct {
	cfg    Config
	sanity map[string]bool
}

// New validates cfg and creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, errors.New("retrieval: forum registry is required")
	}
	for _, f := range cfg.SanityForums {
		if !cfg.Registry.Contains(f) {
			return nil, fmt.Errorf("retrieval: sanity forum %q: %w", f, forum.ErrInvalidForum)
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	sanity := make(map[string]bool, len(cfg.SanityForums))
	for _, f := range cfg.SanityForums {
		sanity[f] = true
	}
	return &Orchestrator{cfg: cfg, sanity: sanity}, nil
}

// run is the state scoped to one Run call.
type run struct {
	id          string
	mode        Mode
	pool        *Pool
	coordinator *Coordinator
	reconciler  *Reconciler
	now         int64
}

// Run retrieves [now-2n, now-n) and [now-n, now) for each forum in scope.
// Per-forum emptiness is a warning; an empty previous period across all forums,
// or no forums at all, is a *NoDataError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.LookbackHours <= 0 {
		return nil, fmt.Errorf("lookback must be a positive number of hours, got %d", req.LookbackHours)
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}

	forums, err := o.cfg.Registry.Select(req.Forum)
	if err != nil {
		return nil, err
	}

	r, err := o.newRun(req.Mode)
	if err != nil {
		return nil, err
	}
	defer r.pool.Close()

	started := o.cfg.Now()
	r.now = started.Unix()
	n := int64(req.LookbackHours) * 3600
	mid := r.now - n

	res := &Result{
		RunID:          r.id,
		Recent:         make(map[string][]source.Post, len(forums)),
		Previous:       make(map[string][]source.Post, len(forums)),
		RecentWindow:   source.Window{Start: mid, End: r.now},
		PreviousWindow: source.Window{Start: mid - n, End: mid},
		StartedAt:      started,
	}

	for _, f := range forums {
		for _, period := range []string{PeriodRecent, PeriodPrevious} {
			w := res.RecentWindow
			if period == PeriodPrevious {
				w = res.PreviousWindow
			}

			posts, warnings, err := o.window(ctx, r, f, w)
			if err != nil {
				return nil, &WindowError{Forum: f, Period: period, Window: w, Err: err}
			}
			for i := range warnings {
				warnings[i].Period = period
				warnings[i].Window = w
			}
			res.Warnings = append(res.Warnings, warnings...)

			if period == PeriodRecent {
				res.Recent[f] = posts
			} else {
				res.Previous[f] = posts
			}
		}
	}
	res.FinishedAt = o.cfg.Now()

	if allEmpty(res.Previous) {
		return nil, &NoDataError{Period: PeriodPrevious}
	}
	if len(res.Recent) == 0 {
		return nil, &NoDataError{Period: PeriodRecent}
	}

	for _, f := range forums {
		if len(res.Previous[f]) == 0 {
			res.Warnings = append(res.Warnings, emptyWarning(f, PeriodPrevious, res.PreviousWindow))
		}
		if len(res.Recent[f]) == 0 {
			res.Warnings = append(res.Warnings, emptyWarning(f, PeriodRecent, res.RecentWindow))
		}
	}

	return res, nil
}

func (o *Orchestrator) newRun(mode Mode) (*run, error) {
	r := &run{
		id:   uuid.NewString(),
		mode: mode,
		reconciler: &Reconciler{
			LiveCap:  o.cfg.LiveCap,
			Location: o.cfg.Location,
		},
	}

	switch mode {
	case ModeBulk, ModeHybrid, ModeLive:
	default:
		return nil, fmt.Errorf("invalid source mode %q", mode)
	}

	if mode.NeedsLive() && o.cfg.Live == nil {
		return nil, fmt.Errorf("%s mode: live feed not configured: %w", mode, source.ErrCredentialsInvalid)
	}
	if mode == ModeHybrid {
		r.reconciler.Live = o.cfg.Live
	}

	if mode.NeedsBulk() {
		c, err := NewCoordinator(o.cfg.Bulk)
		if err != nil {
			return nil, fmt.Errorf("%s mode: %w", mode, err)
		}
		r.coordinator = c
		r.pool = NewPool(c.Workers())
	} else {
		r.pool = NewPool(1)
	}
	return r, nil
}

// window fetches and reconciles one forum over one window.
func (o *Orchestrator) window(ctx context.Context, r *run, f string, w source.Window) ([]source.Post, []Warning, error) {
	var (
		fetched []source.Post
		err     error
	)
	if r.mode == ModeLive {
		fetched, err = o.cfg.Live.FetchWindow(ctx, f, w, o.cfg.Fields)
	} else {
		fetched, err = r.coordinator.Fetch(ctx, r.pool, f, w, o.cfg.Fields)
	}
	if err != nil {
		return nil, nil, err
	}

	posts, warnings := r.reconciler.Reconcile(ctx, f, w, fetched, r.now, o.cfg.Fields, o.sanity[f])
	return posts, warnings, nil
}

func allEmpty(m map[string][]source.Post) bool {
	for _, posts := range m {
		if len(posts) > 0 {
			return false
		}
	}
	return true
}

func emptyWarning(f, period string, w source.Window) Warning {
	return Warning{
		Kind:    KindEmpty,
		Forum:   f,
		Period:  period,
		Window:  w,
		Message: fmt.Sprintf("no results for the %s time period", period),
	}
}
