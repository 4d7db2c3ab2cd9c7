package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattermost/calls-aligner/cmd/aligner/audio"
	"github.com/mattermost/calls-aligner/cmd/aligner/ctm"
	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	OptionalSilenceDefault    = "sp"
	NonOptionalSilenceDefault = "sil"
)

var (
	PositionsDefault = []string{"_B", "_E", "_I", "_S"}

	ErrUnknownDuration = errors.New("unknown recording duration")
)

type Silences struct {
	Optional    string `yaml:"optional"`
	NonOptional string `yaml:"nonoptional"`
}

// Manifest describes where the corpus data lives. Relative paths are
// resolved against the manifest's own directory.
type Manifest struct {
	Words           string              `yaml:"words"`
	Phones          string              `yaml:"phones"`
	Utt2Spk         string              `yaml:"utt2spk"`
	Segments        string              `yaml:"segments"`
	Reco2Dur        string              `yaml:"reco2dur"`
	WavSCP          string              `yaml:"wav_scp"`
	Silences        Silences            `yaml:"silences"`
	Positions       []string            `yaml:"positions"`
	Directories     map[string]string   `yaml:"directories"`
	SpeakerOrdering map[string][]string `yaml:"speaker_ordering"`
}

func (m *Manifest) SetDefaults() {
	if m.Silences == (Silences{}) {
		m.Silences = Silences{
			Optional:    OptionalSilenceDefault,
			NonOptional: NonOptionalSilenceDefault,
		}
	}
	if m.Positions == nil {
		m.Positions = append([]string(nil), PositionsDefault...)
	}
}

func (m Manifest) IsValid() error {
	if m.Utt2Spk == "" {
		return fmt.Errorf("utt2spk cannot be empty")
	}
	return nil
}

// Corpus answers the lookups needed to turn CTM records into TextGrids:
// labels, speakers, segment offsets, durations and output directories.
type Corpus struct {
	manifest Manifest
	baseDir  string

	wordLabels  ctm.SymbolTable
	phoneLabels ctm.SymbolTable
	utt2spk     utt2spk
	segments    map[string]ctm.Segment
	durations   map[string]decimal.Decimal
	audioFiles  map[string]string
	ordering    map[string][]string
}

// Load reads the manifest at path along with every file it references.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var m Manifest
	if err := yaml.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return New(m, filepath.Dir(path))
}

// New builds a Corpus out of a manifest, resolving relative paths against
// baseDir.
func New(m Manifest, baseDir string) (*Corpus, error) {
	m.SetDefaults()
	if err := m.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	c := &Corpus{
		manifest: m,
		baseDir:  baseDir,
	}

	var err error
	if m.Words != "" {
		if c.wordLabels, err = readSymbolTable(c.resolve(m.Words)); err != nil {
			return nil, fmt.Errorf("failed to read word symbols: %w", err)
		}
	}
	if m.Phones != "" {
		if c.phoneLabels, err = readSymbolTable(c.resolve(m.Phones)); err != nil {
			return nil, fmt.Errorf("failed to read phone symbols: %w", err)
		}
	}
	if c.utt2spk, err = readUtt2Spk(c.resolve(m.Utt2Spk)); err != nil {
		return nil, fmt.Errorf("failed to read utt2spk: %w", err)
	}
	if m.Segments != "" {
		if c.segments, err = readSegments(c.resolve(m.Segments)); err != nil {
			return nil, fmt.Errorf("failed to read segments: %w", err)
		}
	}
	if m.Reco2Dur != "" {
		if c.durations, err = readReco2Dur(c.resolve(m.Reco2Dur)); err != nil {
			return nil, fmt.Errorf("failed to read reco2dur: %w", err)
		}
	}
	if m.WavSCP != "" {
		if c.audioFiles, err = readWavSCP(c.resolve(m.WavSCP)); err != nil {
			return nil, fmt.Errorf("failed to read wav.scp: %w", err)
		}
	}

	c.ordering = c.speakerOrdering()

	return c, nil
}

func (c *Corpus) resolve(path string) string {
	if filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

func (c *Corpus) recordingOf(utt string) string {
	if seg, ok := c.segments[utt]; ok {
		return ctm.RecordingID(seg.Recording)
	}
	return utt
}

// speakerOrdering lists, for each recording, its speakers in order of first
// appearance in utt2spk. Explicit orderings from the manifest take
// precedence.
func (c *Corpus) speakerOrdering() map[string][]string {
	ordering := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, utt := range c.utt2spk.order {
		rec := c.recordingOf(utt)
		spk := c.utt2spk.speakers[utt]
		if seen[rec] == nil {
			seen[rec] = make(map[string]bool)
		}
		if seen[rec][spk] {
			continue
		}
		seen[rec][spk] = true
		ordering[rec] = append(ordering[rec], spk)
	}

	for rec, speakers := range c.manifest.SpeakerOrdering {
		ordering[rec] = speakers
	}

	return ordering
}

func (c *Corpus) Speaker(utt string) (string, bool) {
	spk, ok := c.utt2spk.speakers[utt]
	return spk, ok
}

func (c *Corpus) Segment(utt string) (ctm.Segment, bool) {
	seg, ok := c.segments[utt]
	return seg, ok
}

// HasSegments tells whether utterances are segments of longer recordings.
func (c *Corpus) HasSegments() bool {
	return len(c.segments) > 0
}

func (c *Corpus) WordLabels() ctm.SymbolTable {
	return c.wordLabels
}

func (c *Corpus) PhoneLabels() ctm.SymbolTable {
	return c.phoneLabels
}

func (c *Corpus) Positions() []string {
	return c.manifest.Positions
}

func (c *Corpus) Silences() textgrid.SilenceSet {
	return textgrid.NewSilenceSet(c.manifest.Silences.Optional, c.manifest.Silences.NonOptional)
}

// SpeakerOrdering returns the speakers of a recording in tier order.
func (c *Corpus) SpeakerOrdering(recording string) []string {
	return c.ordering[recording]
}

// Directory returns the output sub directory for a recording, relative to
// the output root.
func (c *Corpus) Directory(recording string) string {
	return c.manifest.Directories[recording]
}

// Duration returns the length of a recording in seconds. Durations listed in
// reco2dur win over probing audio files. Recordings split by channel
// (rec_A, rec_B) take the longest channel.
func (c *Corpus) Duration(recording string) (decimal.Decimal, error) {
	var maxTime decimal.Decimal
	var found bool
	for _, id := range []string{recording, recording + "_A", recording + "_B"} {
		d, ok, err := c.channelDuration(id)
		if err != nil {
			return decimal.Zero, err
		}
		if ok && (!found || d.GreaterThan(maxTime)) {
			maxTime = d
			found = true
		}
	}

	if !found {
		return decimal.Zero, fmt.Errorf("%w for %q", ErrUnknownDuration, recording)
	}

	return maxTime, nil
}

func (c *Corpus) channelDuration(id string) (decimal.Decimal, bool, error) {
	if d, ok := c.durations[id]; ok {
		return d, true, nil
	}

	path, ok := c.audioFiles[id]
	if !ok {
		return decimal.Zero, false, nil
	}

	d, err := audio.Duration(c.resolve(path))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to probe %q: %w", id, err)
	}

	return d, true, nil
}
