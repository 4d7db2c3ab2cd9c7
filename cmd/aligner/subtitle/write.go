package subtitle

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"github.com/shopspring/decimal"
)

// timestamp formats seconds as HH:MM:SS.mmm, rounded to the millisecond.
func timestamp(d decimal.Decimal) string {
	ms := d.Shift(3).Round(0).IntPart()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// WriteWebVTT writes cues as a WebVTT document. Unless omitSpeaker is set,
// each cue carries a voice tag naming its speaker.
func WriteWebVTT(w io.Writer, cues []Cue, omitSpeaker bool) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "WEBVTT\n")
	for _, c := range cues {
		fmt.Fprintf(bw, "\n%s --> %s\n", timestamp(c.Begin), timestamp(c.End))
		if omitSpeaker {
			fmt.Fprintf(bw, "%s\n", html.EscapeString(c.Label))
		} else {
			fmt.Fprintf(bw, "<v %s>%s\n", html.EscapeString(c.Speaker), html.EscapeString(c.Label))
		}
	}

	return bw.Flush()
}

// WriteText writes one line per cue, prefixed by its time span and,
// unless omitSpeaker is set, its speaker.
func WriteText(w io.Writer, cues []Cue, omitSpeaker bool) error {
	bw := bufio.NewWriter(w)

	for _, c := range cues {
		fmt.Fprintf(bw, "[%s - %s] ", timestamp(c.Begin), timestamp(c.End))
		if !omitSpeaker {
			fmt.Fprintf(bw, "%s: ", c.Speaker)
		}
		fmt.Fprintf(bw, "%s\n", c.Label)
	}

	return bw.Flush()
}
