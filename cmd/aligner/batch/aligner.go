package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mattermost/calls-aligner/cmd/aligner/config"
	"github.com/mattermost/calls-aligner/cmd/aligner/ctm"
	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Corpus provides everything the aligner needs to know about the recordings
// besides the CTM records themselves.
type Corpus interface {
	ctm.SegmentLookup
	ctm.SpeakerLookup
	WordLabels() ctm.SymbolTable
	PhoneLabels() ctm.SymbolTable
	Positions() []string
	Silences() textgrid.SilenceSet
	SpeakerOrdering(recording string) []string
	Directory(recording string) string
	Duration(recording string) (decimal.Decimal, error)
}

type Aligner struct {
	cfg    config.AlignerConfig
	corpus Corpus
	log    *slog.Logger
}

// recordingJob holds the grouped intervals of a single recording, keyed by
// speaker.
type recordingJob struct {
	recording string
	words     map[string][]textgrid.Interval
	phones    map[string][]textgrid.Interval
}

func NewAligner(cfg config.AlignerConfig, corpus Corpus) (*Aligner, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	if corpus == nil {
		return nil, fmt.Errorf("corpus should not be nil")
	}

	return &Aligner{
		cfg:    cfg,
		corpus: corpus,
		log:    slog.Default(),
	}, nil
}

func (a *Aligner) parse(mode ctm.Mode, path string) ([]ctm.Record, error) {
	p := ctm.Parser{
		Mode:      mode,
		Segments:  a.corpus,
		Speakers:  a.corpus,
		Positions: a.corpus.Positions(),
	}
	if mode == ctm.ModeWord {
		p.Labels = a.corpus.WordLabels()
	} else {
		p.Labels = a.corpus.PhoneLabels()
	}

	return p.ParseFile(path, a.cfg.ParseErrorPolicy)
}

func (a *Aligner) jobs() ([]recordingJob, error) {
	words, err := a.parse(ctm.ModeWord, a.cfg.WordsCTM)
	if err != nil {
		return nil, fmt.Errorf("failed to read word alignments: %w", err)
	}
	phones, err := a.parse(ctm.ModePhone, a.cfg.PhonesCTM)
	if err != nil {
		return nil, fmt.Errorf("failed to read phone alignments: %w", err)
	}

	wordGroups := ctm.Group(words)
	phoneGroups := ctm.Group(phones)

	recordings := wordGroups.Recordings()
	for _, rec := range phoneGroups.Recordings() {
		if _, ok := wordGroups[rec]; !ok {
			recordings = append(recordings, rec)
		}
	}
	sort.Strings(recordings)

	jobs := make([]recordingJob, 0, len(recordings))
	for _, rec := range recordings {
		jobs = append(jobs, recordingJob{
			recording: rec,
			words:     wordGroups[rec],
			phones:    phoneGroups[rec],
		})
	}

	return jobs, nil
}

// Run aligns every recording found in the configured CTM files, writing a
// TextGrid for each of them. A failing recording doesn't stop the others:
// its error is collected in the returned Report and written to the error
// report file once all recordings are done.
//
// Cancelling ctx stops new recordings from being processed. Recordings
// already in progress run to completion.
func (a *Aligner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID: uuid.NewString(),
	}
	log := a.log.With(slog.String("runID", report.RunID))

	start := time.Now()

	jobs, err := a.jobs()
	if err != nil {
		return nil, err
	}

	log.Info("starting alignment", slog.Int("recordings", len(jobs)), slog.Int("numWorkers", a.cfg.NumWorkers))

	jobsCh := make(chan recordingJob)
	resultsCh := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < a.cfg.NumWorkers; i++ {
		wg.Add(1)
		go a.handleRecordings(log, i, jobsCh, resultsCh, &wg)
	}

	go func() {
		defer close(jobsCh)
		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobsCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for res := range resultsCh {
		if res.Err != nil {
			log.Error("failed to align recording",
				slog.String("recording", res.Recording), slog.String("err", res.Err.Error()))
		}
		report.add(res)
	}
	report.sort()

	reportPath, err := report.WriteFile(a.cfg.OutputDir)
	if err != nil {
		return report, fmt.Errorf("failed to write error report: %w", err)
	}

	failed := len(report.Failed())
	log.Info("alignment completed",
		slog.Int("processed", len(report.Results)),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(start)))
	if reportPath != "" {
		log.Warn("some recordings failed to align", slog.String("report", reportPath))
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("alignment interrupted: %w", err)
	}

	return report, nil
}

func (a *Aligner) handleRecordings(log *slog.Logger, num int, jobsCh <-chan recordingJob, resultsCh chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	log.Debug(fmt.Sprintf("handleRecordings: starting worker #%d", num))

	for job := range jobsCh {
		resultsCh <- a.alignRecording(log, job)
	}

	log.Debug(fmt.Sprintf("handleRecordings: closing worker #%d", num))
}
