package textgrid

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrExceedsMaxTime = errors.New("tier exceeds max time")

// SpeakerTiers holds the word and phone tiers of a single speaker.
type SpeakerTiers struct {
	Speaker string
	Words   Tier
	Phones  Tier
}

// Assemble combines the tiers of every speaker of a recording into a single
// TextGrid. Tiers are laid out following the order of speakers, words first.
func Assemble(maxTime decimal.Decimal, speakers []SpeakerTiers) (*TextGrid, error) {
	if maxTime.IsNegative() {
		return nil, fmt.Errorf("invalid negative max time %s", maxTime)
	}

	tg := &TextGrid{
		MaxTime: maxTime,
		Tiers:   make([]Tier, 0, len(speakers)*2),
	}

	for _, st := range speakers {
		words := st.Words
		if words.Name == "" {
			words.Name = WordTierName(st.Speaker)
		}
		phones := st.Phones
		if phones.Name == "" {
			phones.Name = PhoneTierName(st.Speaker)
		}

		for _, tier := range []Tier{words, phones} {
			if last := tier.Last(); last != nil && last.End.GreaterThan(maxTime) {
				return nil, fmt.Errorf("%w: %q ends at %s, max time is %s", ErrExceedsMaxTime, tier.Name, last.End, maxTime)
			}
			tier.MaxTime = maxTime
			tg.Tiers = append(tg.Tiers, tier)
		}
	}

	return tg, nil
}
