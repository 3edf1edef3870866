package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/pipeline"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
	"github.com/fyrsmithlabs/rerankd/internal/scoring"
)

var rerankOpts struct {
	reference      string
	hypotheses     string
	output         string
	metric         string
	isometricAlpha float64
	returnScore    bool
	outputBest     bool
	bestNonBlank   bool
	refOnBlank     bool
	logLevel       string
}

var rerankCmd = &cobra.Command{
	Use:   "rerank",
	Short: "Rerank an n-best stream against a parallel reference stream",
	Long: `Rerank reads one n-best JSON record per line and one reference
translation per line from a parallel stream, reorders each record's
hypotheses by the chosen metric, and writes the result one line per
record. Logs go to stderr; stdout carries only the output stream.

Examples:
  # Rerank by BLEU against references, full records to stdout
  rerankd rerank -r refs.txt < nbest.jsonl

  # Keep only the top-ranked hypothesis per sentence
  rerankd rerank -r refs.txt --output-best < nbest.jsonl > best.txt

  # Isometric reranking needs model scores and source text in the records
  rerankd rerank -r refs.txt -m isometric-lc --isometric-alpha 0.7 < nbest.jsonl`,
	RunE: runRerank,
}

func init() {
	f := rerankCmd.Flags()
	f.StringVarP(&rerankOpts.reference, "reference", "r", "", "file with one reference translation per line (required)")
	f.StringVar(&rerankOpts.hypotheses, "hypotheses", "-", "file with one n-best JSON record per line, - for stdin")
	f.StringVarP(&rerankOpts.output, "output", "o", "-", "output file, - for stdout")
	f.StringVarP(&rerankOpts.metric, "metric", "m", "bleu", "reranking metric (bleu, chrf, isometric-ratio, isometric-diff, isometric-lc)")
	f.Float64Var(&rerankOpts.isometricAlpha, "isometric-alpha", rerank.DefaultIsometricAlpha, "blending weight between length penalty and model score for isometric metrics")
	f.BoolVar(&rerankOpts.returnScore, "return-score", false, "attach the computed scores to each output record")
	f.BoolVar(&rerankOpts.outputBest, "output-best", false, "emit only the top-ranked hypothesis per line")
	f.BoolVar(&rerankOpts.refOnBlank, "output-reference-instead-of-blank", false, "with --output-best, substitute the reference when the top pick is blank")
	f.BoolVar(&rerankOpts.bestNonBlank, "output-best-non-blank", false, "with --output-best, fall back to the first non-blank hypothesis when the top pick is blank")
	f.StringVar(&rerankOpts.logLevel, "log-level", "info", "log verbosity (trace, debug, info, warn, error)")

	cobra.CheckErr(rerankCmd.MarkFlagRequired("reference"))
}

func runRerank(cmd *cobra.Command, args []string) error {
	log, err := newBatchLogger(rerankOpts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rr, err := rerank.New(rerank.Config{
		Metric:         rerank.Metric(rerankOpts.metric),
		IsometricAlpha: rerankOpts.isometricAlpha,
		AttachScores:   rerankOpts.returnScore,
	}, scoring.NewProvider(), nil)
	if err != nil {
		return err
	}

	p, err := pipeline.New(rr, pipeline.Options{
		BestOnly:         rerankOpts.outputBest,
		ReferenceOnBlank: rerankOpts.refOnBlank,
		ScanOnBlank:      rerankOpts.bestNonBlank,
	}, log, nil)
	if err != nil {
		return err
	}

	refs, err := os.Open(rerankOpts.reference)
	if err != nil {
		return fmt.Errorf("opening reference stream: %w", err)
	}
	defer refs.Close()

	hyps, closeHyps, err := openInput(rerankOpts.hypotheses)
	if err != nil {
		return fmt.Errorf("opening n-best stream: %w", err)
	}
	defer closeHyps()

	out, closeOut, err := openOutput(rerankOpts.output)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := p.Run(ctx, refs, hyps, out); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

func newBatchLogger(level string) (*logging.Logger, error) {
	cfg := logging.NewBatchConfig()
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl

	log, err := logging.NewLogger(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log.With(zap.String("version", version)), nil
}

// openInput resolves the n-best source: stdin for "-", a file
// otherwise. The returned close function is a no-op for stdin.
func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// openOutput resolves the output sink: stdout for "-", a file
// otherwise. The returned close function is a no-op for stdout.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
