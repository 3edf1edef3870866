// Package pipeline drives a single batch pass over paired input
// streams: one plain-text reference per line on one stream, one n-best
// JSON record per line on the other. Records are reranked in order and
// written back out one per line, so downstream tooling can keep relying
// on line numbers.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/nbest"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
	"github.com/fyrsmithlabs/rerankd/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/rerankd/internal/pipeline"

// maxLineBytes bounds a single input line. N-best lines carry a full
// hypothesis set, so the scanner default of 64KB is not enough.
const maxLineBytes = 16 << 20

// ErrStreamMismatch is returned when the reference and n-best streams
// have different lengths. Truncating to the shorter stream would
// silently desynchronize line-numbered output, so it is an error.
var ErrStreamMismatch = errors.New("paired input streams have different lengths")

// Options select what is written per record.
type Options struct {
	// BestOnly emits only the top-ranked hypothesis as plain text
	// instead of the full reordered record.
	BestOnly bool

	// ReferenceOnBlank substitutes the reference sentence when the
	// top-ranked hypothesis is blank. Only applies with BestOnly.
	ReferenceOnBlank bool

	// ScanOnBlank falls back to the first non-blank hypothesis in
	// ranked order when the top pick (and, if enabled, the reference)
	// is blank. Only applies with BestOnly.
	ScanOnBlank bool
}

// Stats summarize a completed run.
type Stats struct {
	// Records is the number of record pairs processed.
	Records int

	// Passthroughs counts records with fewer than two hypotheses,
	// which are emitted unchanged without a scoring call.
	Passthroughs int

	// Substitutions counts blank top hypotheses replaced via the
	// fallback chain.
	Substitutions int
}

// Pipeline reranks a stream of n-best records against a parallel
// reference stream. It is a sequential single-pass driver; one Run at
// a time per Pipeline.
type Pipeline struct {
	reranker *rerank.Reranker
	opts     Options
	log      *logging.Logger
	tracer   trace.Tracer

	records       metric.Int64Counter
	passthroughs  metric.Int64Counter
	substitutions metric.Int64Counter
}

// New creates a batch pipeline around a configured reranker. The
// logger and telemetry may be nil, in which case events go nowhere.
func New(reranker *rerank.Reranker, opts Options, log *logging.Logger, tel *telemetry.Telemetry) (*Pipeline, error) {
	if reranker == nil {
		return nil, errors.New("reranker is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	p := &Pipeline{
		reranker: reranker,
		opts:     opts,
		log:      log,
		tracer:   tel.Tracer(instrumentationName),
	}
	p.initMetrics(tel.Meter(instrumentationName))
	return p, nil
}

func (p *Pipeline) initMetrics(meter metric.Meter) {
	var err error

	p.records, err = meter.Int64Counter(
		"rerankd.pipeline.records_total",
		metric.WithDescription("Record pairs processed by batch reranking runs"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		p.log.Warn(context.Background(), "failed to create records counter", zap.Error(err))
	}

	p.passthroughs, err = meter.Int64Counter(
		"rerankd.pipeline.passthroughs_total",
		metric.WithDescription("Records with fewer than two hypotheses, emitted unchanged"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		p.log.Warn(context.Background(), "failed to create passthroughs counter", zap.Error(err))
	}

	p.substitutions, err = meter.Int64Counter(
		"rerankd.pipeline.blank_substitutions_total",
		metric.WithDescription("Blank top hypotheses replaced by the fallback chain, labeled by source"),
		metric.WithUnit("{substitution}"),
	)
	if err != nil {
		p.log.Warn(context.Background(), "failed to create substitutions counter", zap.Error(err))
	}
}

// Run reranks every record on hypotheses against the matching line on
// references and writes the results to out. Each run carries a fresh
// run ID on its log lines. Cancellation is honored between records.
func (p *Pipeline) Run(ctx context.Context, references, hypotheses io.Reader, out io.Writer) (Stats, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("metric", string(p.reranker.Metric())),
		attribute.Bool("best_only", p.opts.BestOnly),
	))
	defer span.End()

	p.log.Info(ctx, "rerank run started",
		zap.String("metric", string(p.reranker.Metric())),
		zap.Bool("best_only", p.opts.BestOnly))

	stats, err := p.process(ctx, references, hypotheses, out)
	if err != nil {
		span.RecordError(err)
		return stats, err
	}

	span.SetAttributes(attribute.Int("records", stats.Records))
	p.log.Info(ctx, "rerank run finished",
		zap.Int("records", stats.Records),
		zap.Int("passthroughs", stats.Passthroughs),
		zap.Int("substitutions", stats.Substitutions))
	return stats, nil
}

func (p *Pipeline) process(ctx context.Context, references, hypotheses io.Reader, out io.Writer) (Stats, error) {
	refs := bufio.NewScanner(references)
	refs.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	hyps := bufio.NewScanner(hypotheses)
	hyps.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	w := bufio.NewWriter(out)
	var stats Stats

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		haveRef := refs.Scan()
		haveHyp := hyps.Scan()
		if !haveRef {
			if err := refs.Err(); err != nil {
				return stats, fmt.Errorf("read reference stream: %w", err)
			}
		}
		if !haveHyp {
			if err := hyps.Err(); err != nil {
				return stats, fmt.Errorf("read n-best stream: %w", err)
			}
		}
		if !haveRef && !haveHyp {
			break
		}
		if haveRef != haveHyp {
			ended := "n-best"
			if haveRef {
				ended = "reference"
			}
			return stats, fmt.Errorf("%w: %s stream ended before line %d", ErrStreamMismatch, ended, line)
		}

		if err := p.processLine(ctx, line, refs.Text(), hyps.Bytes(), w, &stats); err != nil {
			return stats, err
		}
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush output: %w", err)
	}
	return stats, nil
}

func (p *Pipeline) processLine(ctx context.Context, line int, reference string, raw []byte, w *bufio.Writer, stats *Stats) error {
	rec, err := nbest.Decode(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}

	res, err := p.reranker.Rerank(rec, reference)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}

	stats.Records++
	p.add(ctx, p.records, 1)
	if !res.Reranked {
		p.add(ctx, p.passthroughs, 1)
		stats.Passthroughs++
		p.log.Info(ctx, "not enough hypotheses to rerank",
			zap.Int("line", line),
			zap.Int("hypotheses", len(rec.Translations)))
	}

	if p.opts.BestOnly {
		best := p.selectBest(ctx, line, res.Record, reference, stats)
		if _, err := w.WriteString(best); err != nil {
			return fmt.Errorf("line %d: write output: %w", line, err)
		}
	} else {
		buf, err := json.Marshal(res.Record)
		if err != nil {
			return fmt.Errorf("line %d: encode record: %w", line, err)
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("line %d: write output: %w", line, err)
		}
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("line %d: write output: %w", line, err)
	}
	return nil
}

// selectBest resolves the top-ranked hypothesis through the blank
// fallback chain: top pick, then the reference, then a forward scan
// for the first non-blank hypothesis in ranked order. Steps apply only
// when enabled, and each substitution is logged.
func (p *Pipeline) selectBest(ctx context.Context, line int, rec *nbest.Record, reference string, stats *Stats) string {
	var top string
	if len(rec.Translations) > 0 {
		top = rec.Translations[0]
	}
	if top != "" {
		return top
	}

	if p.opts.ReferenceOnBlank && reference != "" {
		stats.Substitutions++
		p.add(ctx, p.substitutions, 1, attribute.String("source", "reference"))
		p.log.Warn(ctx, "top hypothesis is blank, substituting reference",
			zap.Int("line", line))
		return reference
	}

	if p.opts.ScanOnBlank {
		for rank := 1; rank < len(rec.Translations); rank++ {
			if rec.Translations[rank] == "" {
				continue
			}
			stats.Substitutions++
			p.add(ctx, p.substitutions, 1, attribute.String("source", "scan"))
			p.log.Warn(ctx, "top hypothesis is blank, substituting first non-blank hypothesis",
				zap.Int("line", line),
				zap.Int("rank", rank))
			return rec.Translations[rank]
		}
	}

	return top
}

func (p *Pipeline) add(ctx context.Context, counter metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if counter != nil {
		counter.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}
