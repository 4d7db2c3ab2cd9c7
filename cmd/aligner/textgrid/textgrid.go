package textgrid

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	wordTierSuffix  = " - words"
	phoneTierSuffix = " - phones"
)

// Interval is a labeled span of time, in seconds.
type Interval struct {
	Begin decimal.Decimal
	End   decimal.Decimal
	Label string
}

func NewInterval(begin, end decimal.Decimal, label string) Interval {
	return Interval{
		Begin: begin,
		End:   end,
		Label: label,
	}
}

func (i Interval) Duration() decimal.Decimal {
	return i.End.Sub(i.Begin)
}

func (i Interval) String() string {
	return fmt.Sprintf("(%s, %s, %q)", i.Begin, i.End, i.Label)
}

// Tier is a named sequence of non overlapping intervals ordered by begin time.
type Tier struct {
	Name      string
	MaxTime   decimal.Decimal
	Intervals []Interval
}

// Last returns a pointer to the final interval of the tier, or nil if the
// tier is empty.
func (t *Tier) Last() *Interval {
	if len(t.Intervals) == 0 {
		return nil
	}
	return &t.Intervals[len(t.Intervals)-1]
}

func (t *Tier) Len() int {
	return len(t.Intervals)
}

// TextGrid is the annotation of a single recording. Every tier shares the
// TextGrid's MaxTime.
type TextGrid struct {
	MaxTime decimal.Decimal
	Tiers   []Tier
}

func WordTierName(speaker string) string {
	return speaker + wordTierSuffix
}

func PhoneTierName(speaker string) string {
	return speaker + phoneTierSuffix
}

// SpeakerFromWordTier returns the speaker owning a word tier created through
// WordTierName.
func SpeakerFromWordTier(name string) (string, bool) {
	return strings.CutSuffix(name, wordTierSuffix)
}
