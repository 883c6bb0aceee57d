package training

import "log/slog"

// MetricSink consumes named scalar log events emitted by the trainer. The
// trainer additionally buffers per-epoch values and flushes their
// NaN-ignoring mean through Log once per validation phase.
type MetricSink interface {
	Log(name string, value float64, step int)
}

// NopSink discards everything. It is the default sink.
type NopSink struct{}

func (NopSink) Log(string, float64, int) {}

// SlogSink emits each scalar as a structured info record. It is the
// lightest useful sink; anything heavier (TensorBoard, OTLP, a database)
// belongs to the caller.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Log(name string, value float64, step int) {
	s.logger.Info("metric", "name", name, "value", value, "step", step)
}
