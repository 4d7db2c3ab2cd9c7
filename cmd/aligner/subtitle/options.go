package subtitle

import (
	"fmt"
	"os"
	"strconv"
)

// Options control how words are grouped into review cues.
type Options struct {
	OmitSpeaker bool
	// Words closer than MaxPauseMs are joined into the same cue. Zero
	// disables joining.
	MaxPauseMs int
	// Upper bound on the duration of a joined cue. Zero means unbounded.
	MaxPhraseMs int
}

func (o *Options) SetDefaults() {
	o.MaxPauseMs = 1000
	o.MaxPhraseMs = 7000
}

func (o *Options) IsEmpty() bool {
	return o == nil || *o == Options{}
}

func (o *Options) IsValid() error {
	if o.MaxPauseMs < 0 {
		return fmt.Errorf("MaxPauseMs should not be negative")
	}
	if o.MaxPhraseMs < 0 {
		return fmt.Errorf("MaxPhraseMs should not be negative")
	}
	return nil
}

func (o *Options) ToEnv() []string {
	return []string{
		fmt.Sprintf("REVIEW_OMIT_SPEAKER=%t", o.OmitSpeaker),
		fmt.Sprintf("REVIEW_MAX_PAUSE_MS=%d", o.MaxPauseMs),
		fmt.Sprintf("REVIEW_MAX_PHRASE_MS=%d", o.MaxPhraseMs),
	}
}

func (o *Options) FromEnv() {
	o.OmitSpeaker, _ = strconv.ParseBool(os.Getenv("REVIEW_OMIT_SPEAKER"))
	o.MaxPauseMs, _ = strconv.Atoi(os.Getenv("REVIEW_MAX_PAUSE_MS"))
	o.MaxPhraseMs, _ = strconv.Atoi(os.Getenv("REVIEW_MAX_PHRASE_MS"))
}

func (o *Options) ToMap() map[string]any {
	return map[string]any{
		"review_omit_speaker":  o.OmitSpeaker,
		"review_max_pause_ms":  o.MaxPauseMs,
		"review_max_phrase_ms": o.MaxPhraseMs,
	}
}

func (o *Options) FromMap(m map[string]any) {
	o.OmitSpeaker, _ = m["review_omit_speaker"].(bool)
	o.MaxPauseMs = toInt(m["review_max_pause_ms"])
	o.MaxPhraseMs = toInt(m["review_max_phrase_ms"])
}

// toInt accepts both int and float64 values, depending on whether the map
// has been previously marshaled or not.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
