// Package forum holds the table of forums a run may retrieve from.
package forum

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrInvalidForum is returned when a requested forum is not registered.
var ErrInvalidForum = errors.New("invalid forum")

// InvalidForumError names the rejected forum and the valid choices.
type InvalidForumError struct {
	Forum   string
	Choices []string
}

func (e *InvalidForumError) Error() string {
	return fmt.Sprintf("invalid forum %q. Valid choices:\n%s", e.Forum, strings.Join(e.Choices, ", "))
}

func (e *InvalidForumError) Is(target error) bool {
	return target == ErrInvalidForum
}

// Registry is an immutable mapping of forum identifier to short code.
type Registry struct {
	codes map[string]string
	ids   []string
}

// DefaultForums returns a fresh copy of the built-in forum table.
func DefaultForums() map[string]string {
	return map[string]string{
		"wallstreetbets":       "WSB",
		"wallstreetbetsELITE":  "WallStreetbetsELITE",
		"stocks":               "stocks",
		"investing":            "investng",
		"SatoshiStreetBets":    "SatoshiStreetBets",
		"pennystocks":          "pnnystks",
		"RobinHoodPennyStocks": "RHPnnyStck",
		"StockMarket":          "stkmrkt",
		"Daytrading":           "daytrade",
	}
}

// NewRegistry copies codes into a registry. Identifiers must be non-empty.
func NewRegistry(codes map[string]string) (*Registry, error) {
	if len(codes) == 0 {
		return nil, errors.New("forum registry: at least one forum is required")
	}
	r := &Registry{codes: make(map[string]string, len(codes))}
	for id, code := range codes {
		if strings.TrimSpace(id) == "" {
			return nil, errors.New("forum registry: empty forum identifier")
		}
		if code == "" {
			code = id
		}
		r.codes[id] = code
	}
	r.ids = slices.Sorted(maps.Keys(r.codes))
	return r, nil
}

// IDs returns all registered forum identifiers in sorted order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.ids)
}

// Code returns the short code of id.
func (r *Registry) Code(id string) (string, bool) {
	code, ok := r.codes[id]
	return code, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	_, ok := r.codes[id]
	return ok
}

// Select returns the forums a run covers: every registered forum when id is
// empty, otherwise just id. Unknown ids yield an *InvalidForumError.
func (r *Registry) Select(id string) ([]string, error) {
	if id == "" {
		return r.IDs(), nil
	}
	if !r.Contains(id) {
		return nil, &InvalidForumError{Forum: id, Choices: r.IDs()}
	}
	return []string{id}, nil
}
