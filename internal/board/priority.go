package board

import (
	"cmp"
	"slices"

	"github.com/hylla/qboard/internal/domain"
)

// SortByPriority returns a copy ordered HIGH, MEDIUM, LOW, then unset.
// Tasks of equal priority keep their relative order.
func SortByPriority(tasks []domain.Task) []domain.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b domain.Task) int {
		return cmp.Compare(b.Priority.Rank(), a.Priority.Rank())
	})
	return out
}
