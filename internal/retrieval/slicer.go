package retrieval

import "github.com/ppiankov/autodd/internal/source"

// Slice splits w into n contiguous, non-overlapping sub-windows ordered newest
// first: slices[0].End == w.End and slices[n-1].Start == w.Start. Boundaries are
// linearly interpolated and truncated, so a zero-length window yields n empty slices.
func Slice(w source.Window, n int) []source.Window {
	if n < 1 {
		n = 1
	}

	span := w.End - w.Start
	bounds := make([]int64, n+1)
	for i := range n + 1 {
		// descending: bounds[0] is w.End
		k := int64(n - i)
		bounds[i] = w.Start + span*k/int64(n)
	}

	slices := make([]source.Window, n)
	for i := range n {
		slices[i] = source.Window{Start: bounds[i+1], End: bounds[i]}
	}
	return slices
}
