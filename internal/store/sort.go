package store

import (
	"slices"
	"strings"
)

func sortExtraEdges(edges []ExtraEdge) {
	slices.SortFunc(edges, func(a, b ExtraEdge) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		if c := strings.Compare(a.Src, b.Src); c != 0 {
			return c
		}
		return strings.Compare(a.Dst, b.Dst)
	})
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
