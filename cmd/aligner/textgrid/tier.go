package textgrid

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SilenceSet holds the labels treated as non-speech filler when building
// phone tiers. A nil or empty set disables silence handling altogether.
type SilenceSet map[string]struct{}

func NewSilenceSet(labels ...string) SilenceSet {
	s := make(SilenceSet, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		s[l] = struct{}{}
	}
	return s
}

func (s SilenceSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// InvariantError signals that the input of a Builder was not chronologically
// sorted or contained inverted intervals. It's fatal for the tier being built.
type InvariantError struct {
	Tier     string
	Interval Interval
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in tier %q at %s: %s", e.Tier, e.Interval, e.Reason)
}

// Builder assembles a Tier out of chronologically sorted intervals, one
// candidate at a time.
//
// Each candidate is matched against the last interval of the tier and
// exactly one of the following applies, in order:
//  1. silence after silence: the last interval is extended to the candidate's end.
//  2. silence starting before the last interval ends: the candidate's begin is
//     moved forward to the last interval's end.
//  3. speech starting before a preceding silence ends: the silence is
//     retracted to the candidate's begin (never below zero length).
//  4. anything else is appended as is.
type Builder struct {
	tier     Tier
	silences SilenceSet
}

func NewBuilder(name string, maxTime decimal.Decimal, silences SilenceSet) *Builder {
	return &Builder{
		tier: Tier{
			Name:    name,
			MaxTime: maxTime,
		},
		silences: silences,
	}
}

func (b *Builder) Add(p Interval) error {
	last := b.tier.Last()
	if last == nil {
		return b.push(p, nil)
	}

	isSilence := b.silences.Contains(p.Label)
	lastIsSilence := b.silences.Contains(last.Label)

	switch {
	case isSilence && lastIsSilence:
		if p.End.LessThan(last.Begin) {
			return b.violation(p, fmt.Sprintf("merged silence would end before it begins at %s", last.Begin))
		}
		last.End = p.End
		return nil
	case isSilence && p.Begin.LessThan(last.End):
		p.Begin = last.End
		return b.push(p, last)
	case !isSilence && lastIsSilence && p.Begin.LessThan(last.End):
		if err := b.checkInterval(p); err != nil {
			return err
		}
		last.End = decimal.Max(p.Begin, last.Begin)
		return b.push(p, last)
	default:
		return b.push(p, last)
	}
}

func (b *Builder) push(p Interval, last *Interval) error {
	if err := b.checkInterval(p); err != nil {
		return err
	}
	if last != nil && p.Begin.LessThan(last.End) {
		return b.violation(p, fmt.Sprintf("overlaps preceding interval %s", *last))
	}
	b.tier.Intervals = append(b.tier.Intervals, p)
	return nil
}

func (b *Builder) checkInterval(p Interval) error {
	if p.Begin.GreaterThan(p.End) {
		return b.violation(p, "begin is after end")
	}
	return nil
}

func (b *Builder) violation(p Interval, reason string) error {
	return &InvariantError{
		Tier:     b.tier.Name,
		Interval: p,
		Reason:   reason,
	}
}

// Tier returns the tier built so far.
func (b *Builder) Tier() Tier {
	return b.tier
}

// BuildTier runs every interval through a Builder. Word tiers are built with
// an empty SilenceSet.
func BuildTier(name string, maxTime decimal.Decimal, intervals []Interval, silences SilenceSet) (Tier, error) {
	b := NewBuilder(name, maxTime, silences)
	for _, p := range intervals {
		if err := b.Add(p); err != nil {
			return Tier{}, err
		}
	}
	return b.Tier(), nil
}
