package retrieval

import (
	"errors"
	"fmt"

	"github.com/ppiankov/autodd/internal/source"
)

// ErrNoData signals a systemic fetch failure: every forum came back empty.
var ErrNoData = errors.New("no data")

// NoDataError names the period that came back empty.
type NoDataError struct {
	Period string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no results for the %s time period", e.Period)
}

func (e *NoDataError) Is(target error) bool {
	return target == ErrNoData
}

// WindowError is a fatal failure of one forum's window, naming where it happened.
type WindowError struct {
	Forum  string
	Period string
	Window source.Window
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s (%s window %s): %v", e.Forum, e.Period, e.Window, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}
