// Package telemetry exports ghsock traces and metrics over OTLP (gRPC or
// HTTP/protobuf) and wraps channel seekers and senders so each poll and
// each outbound batch becomes a span plus latency and count metrics.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
//	defer tel.Shutdown(context.Background())
//
//	in, err := telemetry.NewInstruments(tel)
//	seek = in.Seeker("release", seek)
//	send = in.Sender("dispatch", send)
//
// Export failures never stop a command. A provider that cannot be built is
// reported by Degraded and replaced by the global no-op provider.
//
// Tests use Recorder, which keeps spans and metrics in memory.
package telemetry
