package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattermost/calls-aligner/cmd/aligner/config"
	"github.com/mattermost/calls-aligner/cmd/aligner/subtitle"
	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/pkg/errors"
)

// alignRecording turns the intervals of a single recording into a TextGrid
// file. Any error or panic is captured in the returned Result.
func (a *Aligner) alignRecording(log *slog.Logger, job recordingJob) (res Result) {
	res.Recording = job.recording

	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.Errorf("panic while aligning recording: %v", r)
		}
	}()

	tg, err := a.buildTextGrid(log, job)
	if err != nil {
		res.Err = err
		return res
	}

	res.Path = filepath.Join(a.cfg.OutputDir, a.corpus.Directory(job.recording), job.recording+textgrid.FileExt)
	if err := tg.WriteFile(res.Path); err != nil {
		res.Err = errors.Wrap(err, "failed to write TextGrid")
		return res
	}

	if err := a.writeReview(tg, res.Path); err != nil {
		res.Err = errors.Wrap(err, "failed to write review copy")
		return res
	}

	log.Debug("recording aligned", slog.String("recording", job.recording), slog.String("path", res.Path))

	return res
}

// speakers returns the speakers of the recording in tier order. Speakers
// with intervals but missing from the ordering are not part of the output.
func (a *Aligner) speakers(log *slog.Logger, job recordingJob) []string {
	ordering := a.corpus.SpeakerOrdering(job.recording)
	if len(ordering) == 0 {
		seen := make(map[string]bool)
		for _, group := range []map[string][]textgrid.Interval{job.words, job.phones} {
			for spk := range group {
				if !seen[spk] {
					seen[spk] = true
					ordering = append(ordering, spk)
				}
			}
		}
		sort.Strings(ordering)
		return ordering
	}

	known := make(map[string]bool, len(ordering))
	for _, spk := range ordering {
		known[spk] = true
	}
	for _, group := range []map[string][]textgrid.Interval{job.words, job.phones} {
		for spk := range group {
			if !known[spk] {
				log.Warn("speaker missing from ordering, skipping",
					slog.String("recording", job.recording), slog.String("speaker", spk))
				known[spk] = true
			}
		}
	}

	return ordering
}

func (a *Aligner) buildTextGrid(log *slog.Logger, job recordingJob) (*textgrid.TextGrid, error) {
	maxTime, err := a.corpus.Duration(job.recording)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recording duration")
	}

	silences := a.corpus.Silences()
	speakers := a.speakers(log, job)
	tiers := make([]textgrid.SpeakerTiers, 0, len(speakers))
	for _, spk := range speakers {
		// Word tiers are built without silence handling.
		words, err := textgrid.BuildTier(textgrid.WordTierName(spk), maxTime, job.words[spk], nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		phones, err := textgrid.BuildTier(textgrid.PhoneTierName(spk), maxTime, job.phones[spk], silences)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		tiers = append(tiers, textgrid.SpeakerTiers{
			Speaker: spk,
			Words:   words,
			Phones:  phones,
		})
	}

	tg, err := textgrid.Assemble(maxTime, tiers)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return tg, nil
}

// writeReview writes a human readable copy of the word tiers next to the
// TextGrid at tgPath, if configured.
func (a *Aligner) writeReview(tg *textgrid.TextGrid, tgPath string) error {
	var ext string
	switch a.cfg.ReviewFormat {
	case config.ReviewFormatVTT:
		ext = ".vtt"
	case config.ReviewFormatText:
		ext = ".txt"
	default:
		return nil
	}

	opts := a.cfg.ReviewOptions
	cues := subtitle.Phrases(subtitle.Words(tg, a.corpus.Silences()), opts)

	f, err := os.OpenFile(strings.TrimSuffix(tgPath, textgrid.FileExt)+ext, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if a.cfg.ReviewFormat == config.ReviewFormatVTT {
		err = subtitle.WriteWebVTT(f, cues, opts.OmitSpeaker)
	} else {
		err = subtitle.WriteText(f, cues, opts.OmitSpeaker)
	}
	if err != nil {
		return err
	}

	return f.Close()
}
