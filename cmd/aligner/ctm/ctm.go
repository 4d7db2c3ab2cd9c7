package ctm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeWord  Mode = "word"
	ModePhone Mode = "phone"
)

// Record is a single decoder output line resolved to absolute recording time.
type Record struct {
	textgrid.Interval
	Utterance string
	Speaker   string
	Recording string
}

// SymbolTable maps numeric label ids to their text.
type SymbolTable map[int]string

// Resolve returns the text for a numeric label. Any label that is not a known
// id is returned unchanged.
func (st SymbolTable) Resolve(label string) string {
	id, err := strconv.Atoi(label)
	if err != nil {
		return label
	}
	if text, ok := st[id]; ok {
		return text
	}
	return label
}

// Segment locates an utterance within its recording.
type Segment struct {
	Recording string
	Begin     decimal.Decimal
	End       decimal.Decimal
}

type SegmentLookup interface {
	Segment(utterance string) (Segment, bool)
}

type SpeakerLookup interface {
	Speaker(utterance string) (string, bool)
}

// ParseError is returned for lines that don't follow the
// "utterance channel begin duration label" format.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse line %d %q: %s", e.Line, e.Text, e.Reason)
	}
	return fmt.Sprintf("failed to parse line %q: %s", e.Text, e.Reason)
}

// LookupError is returned when an utterance can't be attributed to a speaker.
type LookupError struct {
	Utterance string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no speaker found for utterance %q", e.Utterance)
}

// Parser turns CTM lines into Records.
type Parser struct {
	Mode      Mode
	Labels    SymbolTable
	Segments  SegmentLookup
	Speakers  SpeakerLookup
	Positions []string
}

func (p *Parser) ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	// An optional sixth field carries the confidence score.
	if len(fields) != 5 && len(fields) != 6 {
		return Record{}, &ParseError{Text: line, Reason: fmt.Sprintf("expected 5 fields, got %d", len(fields))}
	}

	utt := fields[0]

	begin, err := decimal.NewFromString(fields[2])
	if err != nil {
		return Record{}, &ParseError{Text: line, Reason: fmt.Sprintf("invalid begin time %q", fields[2])}
	}
	if begin.IsNegative() {
		return Record{}, &ParseError{Text: line, Reason: "begin time should not be negative"}
	}

	duration, err := decimal.NewFromString(fields[3])
	if err != nil {
		return Record{}, &ParseError{Text: line, Reason: fmt.Sprintf("invalid duration %q", fields[3])}
	}
	if duration.IsNegative() {
		return Record{}, &ParseError{Text: line, Reason: "duration should not be negative"}
	}

	rec := Record{
		Interval:  textgrid.NewInterval(begin, begin.Add(duration), p.resolveLabel(fields[4])),
		Utterance: utt,
		Recording: utt,
	}

	if p.Speakers != nil {
		speaker, ok := p.Speakers.Speaker(utt)
		if !ok {
			return Record{}, &LookupError{Utterance: utt}
		}
		rec.Speaker = speaker
	}

	if p.Segments != nil {
		if seg, ok := p.Segments.Segment(utt); ok {
			rec.Recording = RecordingID(seg.Recording)
			rec.Begin = rec.Begin.Add(seg.Begin)
			rec.End = rec.End.Add(seg.Begin)
		}
	}

	return rec, nil
}

func (p *Parser) resolveLabel(token string) string {
	label := p.Labels.Resolve(token)
	if p.Mode == ModePhone {
		for _, pos := range p.Positions {
			if pos != "" {
				label = strings.TrimSuffix(label, pos)
			}
		}
	}
	return label
}

// RecordingID merges per channel segment names (e.g. "rec_A", "rec_B") into
// a single recording id.
func RecordingID(name string) string {
	if strings.HasSuffix(name, "_A") || strings.HasSuffix(name, "_B") {
		return name[:len(name)-2]
	}
	return name
}
