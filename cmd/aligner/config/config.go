package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/mattermost/calls-aligner/cmd/aligner/ctm"
	"github.com/mattermost/calls-aligner/cmd/aligner/subtitle"

	"github.com/spf13/viper"
)

const (
	// defaults
	OutputFormatDefault     = OutputFormatTextGrid
	ParseErrorPolicyDefault = ctm.ErrorPolicySkip
	OutputDirDefault        = "."

	// MaxNumWorkers bounds NumWorkers independently of the CPU count.
	MaxNumWorkers = 256
)

type OutputFormat string

const (
	OutputFormatTextGrid OutputFormat = "textgrid"
)

// ReviewFormat selects an optional human readable copy of the word tiers
// written next to each TextGrid.
type ReviewFormat string

const (
	ReviewFormatNone ReviewFormat = ""
	ReviewFormatVTT  ReviewFormat = "vtt"
	ReviewFormatText ReviewFormat = "text"
)

func (f ReviewFormat) IsValid() bool {
	switch f {
	case ReviewFormatNone, ReviewFormatVTT, ReviewFormatText:
		return true
	default:
		return false
	}
}

type AlignerConfig struct {
	// input config
	CorpusFile       string
	WordsCTM         string
	PhonesCTM        string
	ParseErrorPolicy ctm.ErrorPolicy
	NumWorkers       int

	// output config
	OutputDir     string
	OutputFormat  OutputFormat
	ReviewFormat  ReviewFormat
	ReviewOptions subtitle.Options
}

func (cfg AlignerConfig) IsValid() error {
	if cfg == (AlignerConfig{}) {
		return fmt.Errorf("config cannot be empty")
	}
	if cfg.CorpusFile == "" {
		return fmt.Errorf("CorpusFile cannot be empty")
	}
	if cfg.WordsCTM == "" {
		return fmt.Errorf("WordsCTM cannot be empty")
	}
	if cfg.PhonesCTM == "" {
		return fmt.Errorf("PhonesCTM cannot be empty")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("OutputDir cannot be empty")
	}
	if !cfg.ParseErrorPolicy.IsValid() {
		return fmt.Errorf("ParseErrorPolicy value is not valid")
	}
	if cfg.OutputFormat != OutputFormatTextGrid {
		return fmt.Errorf("OutputFormat value is not valid")
	}
	if !cfg.ReviewFormat.IsValid() {
		return fmt.Errorf("ReviewFormat value is not valid")
	}
	if cfg.NumWorkers < 1 || cfg.NumWorkers > MaxNumWorkers {
		return fmt.Errorf("NumWorkers should be in the range [1, %d]", MaxNumWorkers)
	}

	return cfg.ReviewOptions.IsValid()
}

func (cfg *AlignerConfig) SetDefaults() {
	if cfg.ParseErrorPolicy == "" {
		cfg.ParseErrorPolicy = ParseErrorPolicyDefault
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = OutputDirDefault
	}

	if cfg.OutputFormat == "" {
		cfg.OutputFormat = OutputFormatDefault
	}

	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}

	if cfg.ReviewOptions.IsEmpty() {
		cfg.ReviewOptions.SetDefaults()
	}
}

func (cfg AlignerConfig) ToEnv() []string {
	if cfg == (AlignerConfig{}) {
		return nil
	}

	vars := []string{
		fmt.Sprintf("CORPUS_FILE=%s", cfg.CorpusFile),
		fmt.Sprintf("WORDS_CTM=%s", cfg.WordsCTM),
		fmt.Sprintf("PHONES_CTM=%s", cfg.PhonesCTM),
		fmt.Sprintf("PARSE_ERROR_POLICY=%s", cfg.ParseErrorPolicy),
		fmt.Sprintf("NUM_WORKERS=%d", cfg.NumWorkers),
		fmt.Sprintf("OUTPUT_DIR=%s", cfg.OutputDir),
		fmt.Sprintf("OUTPUT_FORMAT=%s", cfg.OutputFormat),
		fmt.Sprintf("REVIEW_FORMAT=%s", cfg.ReviewFormat),
	}

	return append(vars, cfg.ReviewOptions.ToEnv()...)
}

func (cfg AlignerConfig) ToMap() map[string]any {
	if cfg == (AlignerConfig{}) {
		return nil
	}

	m := map[string]any{
		"corpus_file":        cfg.CorpusFile,
		"words_ctm":          cfg.WordsCTM,
		"phones_ctm":         cfg.PhonesCTM,
		"parse_error_policy": cfg.ParseErrorPolicy,
		"num_workers":        cfg.NumWorkers,
		"output_dir":         cfg.OutputDir,
		"output_format":      cfg.OutputFormat,
		"review_format":      cfg.ReviewFormat,
	}

	for k, v := range cfg.ReviewOptions.ToMap() {
		m[k] = v
	}

	return m
}

func (cfg *AlignerConfig) FromMap(m map[string]any) *AlignerConfig {
	cfg.CorpusFile, _ = m["corpus_file"].(string)
	cfg.WordsCTM, _ = m["words_ctm"].(string)
	cfg.PhonesCTM, _ = m["phones_ctm"].(string)
	cfg.OutputDir, _ = m["output_dir"].(string)

	// num_workers can either be int or float64 depending whether it's been
	// previously marshaled or not.
	switch n := m["num_workers"].(type) {
	case int:
		cfg.NumWorkers = n
	case float64:
		cfg.NumWorkers = int(n)
	}

	if policy, ok := m["parse_error_policy"].(string); ok {
		cfg.ParseErrorPolicy = ctm.ErrorPolicy(policy)
	} else {
		cfg.ParseErrorPolicy, _ = m["parse_error_policy"].(ctm.ErrorPolicy)
	}
	if outputFormat, ok := m["output_format"].(string); ok {
		cfg.OutputFormat = OutputFormat(outputFormat)
	} else {
		cfg.OutputFormat, _ = m["output_format"].(OutputFormat)
	}
	if reviewFormat, ok := m["review_format"].(string); ok {
		cfg.ReviewFormat = ReviewFormat(reviewFormat)
	} else {
		cfg.ReviewFormat, _ = m["review_format"].(ReviewFormat)
	}

	cfg.ReviewOptions.FromMap(m)

	return cfg
}

func FromEnv() (AlignerConfig, error) {
	var cfg AlignerConfig
	cfg.CorpusFile = os.Getenv("CORPUS_FILE")
	cfg.WordsCTM = os.Getenv("WORDS_CTM")
	cfg.PhonesCTM = os.Getenv("PHONES_CTM")
	cfg.OutputDir = os.Getenv("OUTPUT_DIR")
	cfg.NumWorkers, _ = strconv.Atoi(os.Getenv("NUM_WORKERS"))

	if val := os.Getenv("PARSE_ERROR_POLICY"); val != "" {
		cfg.ParseErrorPolicy = ctm.ErrorPolicy(val)
	}

	if val := os.Getenv("OUTPUT_FORMAT"); val != "" {
		cfg.OutputFormat = OutputFormat(val)
	}

	if val := os.Getenv("REVIEW_FORMAT"); val != "" {
		cfg.ReviewFormat = ReviewFormat(val)
	}

	cfg.ReviewOptions.FromEnv()

	return cfg, nil
}

// Keys lists every setting understood by FromViper. Env variables are the
// upper cased keys.
var Keys = []string{
	"corpus_file",
	"words_ctm",
	"phones_ctm",
	"parse_error_policy",
	"num_workers",
	"output_dir",
	"output_format",
	"review_format",
	"review_omit_speaker",
	"review_max_pause_ms",
	"review_max_phrase_ms",
}

// FromViper loads the config out of v, which merges flags, env variables
// and an optional config file.
func FromViper(v *viper.Viper) AlignerConfig {
	m := map[string]any{
		"corpus_file":          v.GetString("corpus_file"),
		"words_ctm":            v.GetString("words_ctm"),
		"phones_ctm":           v.GetString("phones_ctm"),
		"parse_error_policy":   v.GetString("parse_error_policy"),
		"num_workers":          v.GetInt("num_workers"),
		"output_dir":           v.GetString("output_dir"),
		"output_format":        v.GetString("output_format"),
		"review_format":        v.GetString("review_format"),
		"review_omit_speaker":  v.GetBool("review_omit_speaker"),
		"review_max_pause_ms":  v.GetInt("review_max_pause_ms"),
		"review_max_phrase_ms": v.GetInt("review_max_phrase_ms"),
	}

	var cfg AlignerConfig
	cfg.FromMap(m)
	return cfg
}
