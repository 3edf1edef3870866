// Package logging provides structured, context-aware logging for
// rerankd on top of Zap.
//
// The batch command writes reranked records to stdout, so its logger
// must keep that stream clean: NewBatchConfig routes everything to
// stderr. The server uses NewDefaultConfig, which writes JSON to
// stdout and can mirror entries to an OpenTelemetry log provider.
//
// Loggers accept a context.Context and attach the active trace and
// span IDs, the batch run ID and the HTTP request ID when present.
package logging
