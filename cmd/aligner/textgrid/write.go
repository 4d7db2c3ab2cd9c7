package textgrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

const FileExt = ".TextGrid"

// filled returns the intervals of the tier with any gap, including the one
// up to MaxTime, covered by an unlabeled interval.
func (t Tier) filled() []Interval {
	out := make([]Interval, 0, len(t.Intervals)+1)
	prev := decimal.Zero
	for _, iv := range t.Intervals {
		if prev.LessThan(iv.Begin) {
			out = append(out, NewInterval(prev, iv.Begin, ""))
		}
		out = append(out, iv)
		prev = iv.End
	}
	if prev.LessThan(t.MaxTime) {
		out = append(out, NewInterval(prev, t.MaxTime, ""))
	}
	return out
}

func escapeText(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// Write serializes the TextGrid in the Praat long text format.
func (tg *TextGrid) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "File type = \"ooTextFile\"\n")
	fmt.Fprintf(bw, "Object class = \"TextGrid\"\n\n")
	fmt.Fprintf(bw, "xmin = 0\n")
	fmt.Fprintf(bw, "xmax = %s\n", tg.MaxTime)
	fmt.Fprintf(bw, "tiers? <exists>\n")
	fmt.Fprintf(bw, "size = %d\n", len(tg.Tiers))
	fmt.Fprintf(bw, "item []:\n")

	for i, tier := range tg.Tiers {
		fmt.Fprintf(bw, "\titem [%d]:\n", i+1)
		fmt.Fprintf(bw, "\t\tclass = \"IntervalTier\"\n")
		fmt.Fprintf(bw, "\t\tname = \"%s\"\n", escapeText(tier.Name))
		fmt.Fprintf(bw, "\t\txmin = 0\n")
		fmt.Fprintf(bw, "\t\txmax = %s\n", tg.MaxTime)

		intervals := tier.filled()
		fmt.Fprintf(bw, "\t\tintervals: size = %d\n", len(intervals))
		for j, iv := range intervals {
			fmt.Fprintf(bw, "\t\t\tintervals [%d]:\n", j+1)
			fmt.Fprintf(bw, "\t\t\t\txmin = %s\n", iv.Begin)
			fmt.Fprintf(bw, "\t\t\t\txmax = %s\n", iv.End)
			fmt.Fprintf(bw, "\t\t\t\ttext = \"%s\"\n", escapeText(iv.Label))
		}
	}

	// bufio.Writer errors are sticky so checking on flush is enough.
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	return nil
}

// WriteFile writes the TextGrid to path, creating any missing parent
// directory.
func (tg *TextGrid) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if err := tg.Write(f); err != nil {
		return err
	}

	return f.Close()
}
