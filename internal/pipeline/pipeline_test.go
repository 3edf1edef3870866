package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/nbest"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
	"github.com/fyrsmithlabs/rerankd/internal/scoring"
	"github.com/fyrsmithlabs/rerankd/internal/telemetry"
)

func newTestReranker(t *testing.T, metric rerank.Metric) *rerank.Reranker {
	t.Helper()
	rr, err := rerank.New(rerank.NewConfig(metric), scoring.NewProvider(), nil)
	require.NoError(t, err)
	return rr
}

func runPipeline(t *testing.T, p *Pipeline, refs, hyps string) (string, Stats) {
	t.Helper()
	var out bytes.Buffer
	stats, err := p.Run(context.Background(), strings.NewReader(refs), strings.NewReader(hyps), &out)
	require.NoError(t, err)
	return out.String(), stats
}

func TestRunRanksRecordsInOrder(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, nil, nil)
	require.NoError(t, err)

	refs := "the cat sat on the mat\nhello world\n"
	hyps := `{"translations":["a dog ran past","the cat sat on the mat"]}` + "\n" +
		`{"translations":["hello world","farewell moon"]}` + "\n"

	out, stats := runPipeline(t, p, refs, hyps)

	want := `{"translations":["the cat sat on the mat","a dog ran past"]}` + "\n" +
		`{"translations":["hello world","farewell moon"]}` + "\n"
	assert.Equal(t, want, out)
	assert.Equal(t, Stats{Records: 2}, stats)
}

func TestRunPreservesParallelFields(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, nil, nil)
	require.NoError(t, err)

	refs := "good morning\n"
	hyps := `{"translations":["late greeting","good morning"],"scores":[[-1.5],[-0.5]],"text":"guten Morgen"}` + "\n"

	out, _ := runPipeline(t, p, refs, hyps)

	want := `{"scores":[[-0.5],[-1.5]],"text":"guten Morgen","translations":["good morning","late greeting"]}` + "\n"
	assert.Equal(t, want, out)
}

func TestRunBestOnly(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{BestOnly: true}, nil, nil)
	require.NoError(t, err)

	refs := "the cat sat on the mat\n"
	hyps := `{"translations":["a dog ran past","the cat sat on the mat"]}` + "\n"

	out, _ := runPipeline(t, p, refs, hyps)
	assert.Equal(t, "the cat sat on the mat\n", out)
}

func TestRunFallbackScansForNonBlank(t *testing.T) {
	// Every hypothesis scores zero against the reference, so the
	// stable sort keeps the blanks on top and the chain has to scan.
	tl := logging.NewTestLogger()
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{
		BestOnly:    true,
		ScanOnBlank: true,
	}, tl.Logger, nil)
	require.NoError(t, err)

	refs := "completely unrelated sentence\n"
	hyps := `{"translations":["","","good translation"]}` + "\n"

	out, stats := runPipeline(t, p, refs, hyps)

	assert.Equal(t, "good translation\n", out)
	assert.Equal(t, 1, stats.Substitutions)
	tl.AssertLogged(t, zapcore.WarnLevel, "substituting first non-blank hypothesis")
	tl.AssertField(t, "top hypothesis is blank, substituting first non-blank hypothesis", "rank", 2)
}

func TestRunFallbackSubstitutesReference(t *testing.T) {
	tl := logging.NewTestLogger()
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{
		BestOnly:         true,
		ReferenceOnBlank: true,
	}, tl.Logger, nil)
	require.NoError(t, err)

	refs := "der Hund\n"
	hyps := `{"translations":["",""]}` + "\n"

	out, stats := runPipeline(t, p, refs, hyps)

	assert.Equal(t, "der Hund\n", out)
	assert.Equal(t, 1, stats.Substitutions)
	tl.AssertLogged(t, zapcore.WarnLevel, "substituting reference")
}

func TestRunFallbackPrefersReferenceOverScan(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{
		BestOnly:         true,
		ReferenceOnBlank: true,
		ScanOnBlank:      true,
	}, nil, nil)
	require.NoError(t, err)

	refs := "der Hund\n"
	hyps := `{"translations":["","","die Katze"]}` + "\n"

	out, _ := runPipeline(t, p, refs, hyps)
	assert.Equal(t, "der Hund\n", out)
}

func TestRunFallbackBlankWhenNothingApplies(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{BestOnly: true}, nil, nil)
	require.NoError(t, err)

	refs := "der Hund\n"
	hyps := `{"translations":["","die Katze"]}` + "\n"

	out, stats := runPipeline(t, p, refs, hyps)
	assert.Equal(t, "\n", out)
	assert.Zero(t, stats.Substitutions)
}

func TestRunPassthroughLogsLine(t *testing.T) {
	tl := logging.NewTestLogger()
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, tl.Logger, nil)
	require.NoError(t, err)

	refs := "hallo\nwelt\n"
	hyps := `{"translations":["hello"]}` + "\n" +
		`{"translations":["world","earth"]}` + "\n"

	out, stats := runPipeline(t, p, refs, hyps)

	assert.Equal(t, `{"translations":["hello"]}`+"\n"+`{"translations":["world","earth"]}`+"\n", out)
	assert.Equal(t, 1, stats.Passthroughs)
	tl.AssertLogged(t, zapcore.InfoLevel, "not enough hypotheses to rerank")
	tl.AssertField(t, "not enough hypotheses to rerank", "line", 1)
}

func TestRunStreamMismatch(t *testing.T) {
	tests := []struct {
		name  string
		refs  string
		hyps  string
		ended string
	}{
		{
			name:  "nbest stream short",
			refs:  "eins\nzwei\n",
			hyps:  `{"translations":["one","uno"]}` + "\n",
			ended: "n-best stream ended before line 2",
		},
		{
			name:  "reference stream short",
			refs:  "eins\n",
			hyps:  `{"translations":["one","uno"]}` + "\n" + `{"translations":["two","dos"]}` + "\n",
			ended: "reference stream ended before line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, nil, nil)
			require.NoError(t, err)

			var out bytes.Buffer
			_, err = p.Run(context.Background(), strings.NewReader(tt.refs), strings.NewReader(tt.hyps), &out)
			require.ErrorIs(t, err, ErrStreamMismatch)
			assert.Contains(t, err.Error(), tt.ended)
		})
	}
}

func TestRunSchemaErrorCarriesLine(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, nil, nil)
	require.NoError(t, err)

	refs := "eins\nzwei\n"
	hyps := `{"translations":["one","uno"]}` + "\n" + `{"sentences":["broken"]}` + "\n"

	var out bytes.Buffer
	_, err = p.Run(context.Background(), strings.NewReader(refs), strings.NewReader(hyps), &out)
	require.ErrorIs(t, err, nbest.ErrNoTranslations)
	assert.Contains(t, err.Error(), "line 2")
}

func TestRunIsometricNeedsTextAndScores(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricIsometricLC), Options{}, nil, nil)
	require.NoError(t, err)

	refs := "unused\n"
	hyps := `{"translations":["kurz","ein sehr viel laengerer Satz"],"scores":[[-0.5],[-0.7]]}` + "\n"

	var out bytes.Buffer
	_, err = p.Run(context.Background(), strings.NewReader(refs), strings.NewReader(hyps), &out)
	require.ErrorIs(t, err, rerank.ErrMissingText)
	assert.Contains(t, err.Error(), "line 1")
}

func TestRunIsometricEndToEnd(t *testing.T) {
	// Equal model scores leave the length deviation in charge; the
	// lc variant ranks the closer-length hypothesis first.
	p, err := New(newTestReranker(t, rerank.MetricIsometricLC), Options{BestOnly: true}, nil, nil)
	require.NoError(t, err)

	refs := "unused\n"
	hyps := `{"translations":["ein Wort","genauso lange Ausgabe"],"scores":[[-1.0],[-1.0]],"text":"zweiundzwanzig Zeichen"}` + "\n"

	out, _ := runPipeline(t, p, refs, hyps)
	assert.Equal(t, "genauso lange Ausgabe\n", out)
}

func TestRunAttachedScores(t *testing.T) {
	cfg := rerank.NewConfig(rerank.MetricBLEU)
	cfg.AttachScores = true
	rr, err := rerank.New(cfg, scoring.NewProvider(), nil)
	require.NoError(t, err)

	p, err := New(rr, Options{}, nil, nil)
	require.NoError(t, err)

	refs := "hello world\n"
	hyps := `{"translations":["hello world","something else"]}` + "\n"

	out, _ := runPipeline(t, p, refs, hyps)

	assert.Equal(t, `{"score":100,"scores":[100,0],"translations":["hello world","something else"]}`+"\n", out)
}

func TestRunEmptyStreams(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, nil, nil)
	require.NoError(t, err)

	out, stats := runPipeline(t, p, "", "")
	assert.Empty(t, out)
	assert.Zero(t, stats.Records)
}

func TestRunHonorsCancellation(t *testing.T) {
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err = p.Run(ctx, strings.NewReader("eins\n"), strings.NewReader(`{"translations":["one"]}`+"\n"), &out)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRecordsTelemetry(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	p, err := New(newTestReranker(t, rerank.MetricBLEU), Options{
		BestOnly:    true,
		ScanOnBlank: true,
	}, nil, tt.Telemetry)
	require.NoError(t, err)

	refs := "hallo\nwelt\nmond\n"
	hyps := `{"translations":["hello","hi"]}` + "\n" +
		`{"translations":["world"]}` + "\n" +
		`{"translations":["","moon"]}` + "\n"

	_, stats := runPipeline(t, p, refs, hyps)
	require.Equal(t, Stats{Records: 3, Passthroughs: 1, Substitutions: 1}, stats)

	rm, err := tt.MetricReader.Collect(context.Background())
	require.NoError(t, err)

	records, ok := telemetry.SumValue(rm, "rerankd.pipeline.records_total")
	require.True(t, ok)
	assert.Equal(t, int64(3), records)

	passthroughs, ok := telemetry.SumValue(rm, "rerankd.pipeline.passthroughs_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), passthroughs)

	substitutions, ok := telemetry.SumValue(rm, "rerankd.pipeline.blank_substitutions_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), substitutions)

	tt.AssertSpanExists(t, "pipeline.run")
	tt.AssertSpanAttribute(t, "pipeline.run", "metric", "bleu")
}

func TestNewRequiresReranker(t *testing.T) {
	_, err := New(nil, Options{}, nil, nil)
	require.Error(t, err)
}
