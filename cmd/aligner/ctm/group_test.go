package ctm

import (
	"testing"

	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func rec(recording, speaker, begin, end, label string) Record {
	return Record{
		Interval:  textgrid.NewInterval(decimal.RequireFromString(begin), decimal.RequireFromString(end), label),
		Speaker:   speaker,
		Recording: recording,
	}
}

func labels(intervals []textgrid.Interval) []string {
	var out []string
	for _, i := range intervals {
		out = append(out, i.Label)
	}
	return out
}

func TestGroup(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		groups := Group(nil)
		require.Empty(t, groups)
		require.Empty(t, groups.Recordings())
	})

	t.Run("partition and sort", func(t *testing.T) {
		groups := Group([]Record{
			rec("r2", "bob", "1", "2", "b2"),
			rec("r1", "alice", "2", "3", "a3"),
			rec("r1", "alice", "0", "1", "a1"),
			rec("r1", "bob", "0.5", "1", "b1"),
			rec("r2", "bob", "0", "1", "b1"),
			rec("r1", "alice", "1", "2", "a2"),
		})

		require.Equal(t, []string{"r1", "r2"}, groups.Recordings())
		require.Len(t, groups["r1"], 2)
		require.Equal(t, []string{"a1", "a2", "a3"}, labels(groups["r1"]["alice"]))
		require.Equal(t, []string{"b1"}, labels(groups["r1"]["bob"]))
		require.Equal(t, []string{"b1", "b2"}, labels(groups["r2"]["bob"]))
	})

	t.Run("ties on begin sort by end", func(t *testing.T) {
		groups := Group([]Record{
			rec("r1", "alice", "1", "3", "long"),
			rec("r1", "alice", "1", "2", "short"),
		})
		require.Equal(t, []string{"short", "long"}, labels(groups["r1"]["alice"]))
	})

	t.Run("stable on equal times", func(t *testing.T) {
		groups := Group([]Record{
			rec("r1", "alice", "1", "1", "first"),
			rec("r1", "alice", "0", "1", "zero"),
			rec("r1", "alice", "1", "1", "second"),
			rec("r1", "alice", "1.0", "1.00", "third"),
		})
		require.Equal(t, []string{"zero", "first", "second", "third"}, labels(groups["r1"]["alice"]))
	})
}

func TestSortIntervals(t *testing.T) {
	intervals := []textgrid.Interval{
		rec("", "", "0", "1", "a").Interval,
		rec("", "", "1", "2", "b").Interval,
		rec("", "", "1", "1", "c").Interval,
	}
	SortIntervals(intervals)
	require.Equal(t, []string{"a", "c", "b"}, labels(intervals))
}
