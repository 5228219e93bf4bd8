package retrieval

import (
	"fmt"

	"github.com/ppiankov/autodd/internal/source"
)

// Warning kinds. Warnings are advisory and never stop a run.
const (
	KindDataGap   = "data_gap"        // missing stretches inside or at the edges of a window
	KindStaleness = "staleness"       // bulk source lags further than the live fetch can reach
	KindEmpty     = "empty_window"    // a forum returned nothing for one period
	KindDegraded  = "source_degraded" // live patch skipped, bulk data used alone
)

// Periods of a run.
const (
	PeriodRecent   = "recent"
	PeriodPrevious = "previous"
)

// Warning is an advisory condition collected during a run.
type Warning struct {
	Kind    string
	Forum   string
	Period  string
	Window  source.Window
	Message string
}

func (w Warning) String() string {
	if w.Period == "" {
		return fmt.Sprintf("%s: %s", w.Forum, w.Message)
	}
	return fmt.Sprintf("%s (%s): %s", w.Forum, w.Period, w.Message)
}
