package batch

import (
	"fmt"
	"log/slog"

	"github.com/mattermost/calls-aligner/cmd/aligner/ctm"
	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/shopspring/decimal"
)

const (
	convertWordTierName  = "words"
	convertPhoneTierName = "phones"
)

type ConvertOptions struct {
	Silences         textgrid.SilenceSet
	Positions        []string
	ParseErrorPolicy ctm.ErrorPolicy
}

func readIntervals(mode ctm.Mode, path string, opts ConvertOptions) ([]textgrid.Interval, error) {
	p := ctm.Parser{
		Mode:      mode,
		Positions: opts.Positions,
	}
	records, err := p.ParseFile(path, opts.ParseErrorPolicy)
	if err != nil {
		return nil, err
	}

	intervals := make([]textgrid.Interval, 0, len(records))
	for _, rec := range records {
		intervals = append(intervals, rec.Interval)
	}
	ctm.SortIntervals(intervals)

	return intervals, nil
}

// ConvertFiles writes a two tier TextGrid ("words", "phones") out of a single
// recording's word and phone CTM files. Utterance ids are ignored and times
// are taken as is. The TextGrid ends with the last interval of either file.
func ConvertFiles(wordsPath, phonesPath, outPath string, opts ConvertOptions) error {
	if opts.ParseErrorPolicy == "" {
		opts.ParseErrorPolicy = ctm.ErrorPolicyAbort
	}

	words, err := readIntervals(ctm.ModeWord, wordsPath, opts)
	if err != nil {
		return fmt.Errorf("failed to read word alignments: %w", err)
	}
	phones, err := readIntervals(ctm.ModePhone, phonesPath, opts)
	if err != nil {
		return fmt.Errorf("failed to read phone alignments: %w", err)
	}

	maxTime := decimal.Zero
	for _, intervals := range [][]textgrid.Interval{words, phones} {
		for _, iv := range intervals {
			maxTime = decimal.Max(maxTime, iv.End)
		}
	}

	wordTier, err := textgrid.BuildTier(convertWordTierName, maxTime, words, nil)
	if err != nil {
		return fmt.Errorf("failed to build word tier: %w", err)
	}
	phoneTier, err := textgrid.BuildTier(convertPhoneTierName, maxTime, phones, opts.Silences)
	if err != nil {
		return fmt.Errorf("failed to build phone tier: %w", err)
	}

	tg, err := textgrid.Assemble(maxTime, []textgrid.SpeakerTiers{{
		Words:  wordTier,
		Phones: phoneTier,
	}})
	if err != nil {
		return fmt.Errorf("failed to assemble TextGrid: %w", err)
	}

	if err := tg.WriteFile(outPath); err != nil {
		return fmt.Errorf("failed to write TextGrid: %w", err)
	}

	slog.Debug("converted ctm files",
		slog.String("path", outPath),
		slog.Int("words", len(words)),
		slog.Int("phones", len(phones)),
		slog.String("maxTime", maxTime.String()))

	return nil
}
