package ctm

import (
	"sort"

	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"
)

// Groups maps recording -> speaker -> intervals sorted by (begin, end).
type Groups map[string]map[string][]textgrid.Interval

// Group partitions records by recording and speaker. Sorting is stable so
// that records sharing the same times keep their emission order.
func Group(records []Record) Groups {
	groups := make(Groups)
	for _, rec := range records {
		speakers, ok := groups[rec.Recording]
		if !ok {
			speakers = make(map[string][]textgrid.Interval)
			groups[rec.Recording] = speakers
		}
		speakers[rec.Speaker] = append(speakers[rec.Speaker], rec.Interval)
	}

	for _, speakers := range groups {
		for _, intervals := range speakers {
			SortIntervals(intervals)
		}
	}

	return groups
}

// SortIntervals orders intervals by begin, then end time. Intervals sharing
// both keep their relative order.
func SortIntervals(intervals []textgrid.Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		if c := intervals[i].Begin.Cmp(intervals[j].Begin); c != 0 {
			return c < 0
		}
		return intervals[i].End.LessThan(intervals[j].End)
	})
}

// Recordings returns the recording ids in lexical order.
func (g Groups) Recordings() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
