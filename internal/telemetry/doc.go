// Package telemetry provides OpenTelemetry instrumentation for
// rerankd: a TracerProvider and MeterProvider wired to OTLP exporters
// over gRPC or HTTP/protobuf, W3C trace context propagation and
// graceful shutdown.
//
// Telemetry failures never fail the service. When an exporter cannot
// be built the instance degrades to no-op providers and records the
// degradation for the health endpoint.
package telemetry
