package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/mattermost/calls-aligner/cmd/aligner/batch"
	"github.com/mattermost/calls-aligner/cmd/aligner/config"
	"github.com/mattermost/calls-aligner/cmd/aligner/corpus"
	"github.com/mattermost/calls-aligner/cmd/aligner/ctm"
	"github.com/mattermost/calls-aligner/cmd/aligner/textgrid"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		if source.File == "" {
			if pc, file, line, ok := runtime.Caller(7); ok {
				if f := runtime.FuncForPC(pc); f != nil {
					source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
					source.Line = line
				}
			}
		} else {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       lvl,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadEnv reads an optional .env file. Variables already set take
// precedence.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, key := range config.Keys {
		flag := cmd.Flags().Lookup(strings.ReplaceAll(key, "_", "-"))
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %q: %w", flag.Name, err)
		}
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aligner",
		Short:         "Convert CTM alignments into TextGrid files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnv(envFile); err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			return setupLogger(level)
		},
	}

	root.PersistentFlags().String("env-file", ".env", "optional env file to load")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newBatchCmd(), newConvertCmd())

	return root
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Write a TextGrid for every recording of a corpus",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}

	flags := cmd.Flags()
	flags.String("config", "", "optional config file (yaml, json, toml)")
	flags.String("corpus-file", "", "corpus manifest")
	flags.String("words-ctm", "", "word level CTM file")
	flags.String("phones-ctm", "", "phone level CTM file")
	flags.String("output-dir", "", "output directory")
	flags.Int("num-workers", 0, "number of recordings processed concurrently")
	flags.String("parse-error-policy", "", "what to do on malformed CTM lines (abort, skip)")
	flags.String("review-format", "", "optional review copy of the word tiers (vtt, text)")

	return cmd
}

func runBatch(cmd *cobra.Command, _ []string) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}

	cfg := config.FromViper(v)
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	c, err := corpus.Load(cfg.CorpusFile)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	slog.Debug("corpus loaded", slog.String("path", cfg.CorpusFile), slog.Bool("segmented", c.HasSegments()))

	aligner, err := batch.NewAligner(cfg, c)
	if err != nil {
		return fmt.Errorf("failed to create aligner: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := aligner.Run(ctx)
	if err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d recordings failed to align", len(failed), len(report.Results))
	}

	return nil
}

func newConvertCmd() *cobra.Command {
	var (
		silences  []string
		positions []string
		policy    string
	)

	cmd := &cobra.Command{
		Use:   "convert <words.ctm> <phones.ctm> <output.TextGrid>",
		Short: "Convert the CTM files of a single recording into a TextGrid",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := batch.ConvertOptions{
				Silences:         textgrid.NewSilenceSet(silences...),
				Positions:        positions,
				ParseErrorPolicy: ctm.ErrorPolicy(policy),
			}
			if !opts.ParseErrorPolicy.IsValid() {
				return fmt.Errorf("invalid parse error policy %q", policy)
			}
			return batch.ConvertFiles(args[0], args[1], args[2], opts)
		},
	}

	cmd.Flags().StringSliceVar(&silences, "silences",
		[]string{corpus.OptionalSilenceDefault, corpus.NonOptionalSilenceDefault}, "silence phone labels")
	cmd.Flags().StringSliceVar(&positions, "positions", corpus.PositionsDefault, "word position suffixes stripped from phones")
	cmd.Flags().StringVar(&policy, "parse-error-policy", string(ctm.ErrorPolicyAbort), "what to do on malformed CTM lines (abort, skip)")

	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("aligner failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
