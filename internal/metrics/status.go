package metrics

import "sort"

// StatusCount is one row of a status code breakdown.
type StatusCount struct {
	Code  int
	Count int
}

// FlattenStatusCodes converts a code->count map into rows sorted by descending
// count, then by code for stability.
func FlattenStatusCodes(codes map[int]int) []StatusCount {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusCount, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusCount{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
