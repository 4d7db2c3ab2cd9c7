package subtitle

import (
	"sort"
	"strings"

	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/shopspring/decimal"
)

// Cue is a span of speech attributed to a speaker. The interval label holds
// the spoken text.
type Cue struct {
	Speaker string
	textgrid.Interval
}

func msToSeconds(ms int) decimal.Decimal {
	return decimal.New(int64(ms), -3)
}

// Words collects the labeled intervals of every word tier of tg, ordered by
// begin time across speakers. Labels in ignore are dropped.
func Words(tg *textgrid.TextGrid, ignore textgrid.SilenceSet) []Cue {
	var cues []Cue
	for _, tier := range tg.Tiers {
		speaker, ok := textgrid.SpeakerFromWordTier(tier.Name)
		if !ok {
			continue
		}
		for _, iv := range tier.Intervals {
			label := strings.Join(strings.Fields(iv.Label), " ")
			if label == "" || ignore.Contains(label) {
				continue
			}
			iv.Label = label
			cues = append(cues, Cue{Speaker: speaker, Interval: iv})
		}
	}

	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].Begin.LessThan(cues[j].Begin)
	})

	return cues
}

// Phrases joins consecutive words of the same speaker into a single cue
// as long as the pause between them is shorter than opts.MaxPauseMs and the
// joined cue does not outlast opts.MaxPhraseMs.
func Phrases(words []Cue, opts Options) []Cue {
	if opts.MaxPauseMs <= 0 {
		return words
	}

	maxPause := msToSeconds(opts.MaxPauseMs)
	maxPhrase := msToSeconds(opts.MaxPhraseMs)

	var cues []Cue
	for _, w := range words {
		if n := len(cues); n > 0 {
			last := &cues[n-1]
			if last.Speaker == w.Speaker &&
				w.Begin.Sub(last.End).LessThan(maxPause) &&
				(opts.MaxPhraseMs == 0 || w.End.Sub(last.Begin).LessThanOrEqual(maxPhrase)) {
				last.End = decimal.Max(last.End, w.End)
				last.Label += " " + w.Label
				continue
			}
		}
		cues = append(cues, w)
	}

	return cues
}
