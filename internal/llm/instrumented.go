package llm

import (
	"context"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
)

// Instrumented wraps a provider with call metrics and a log line per call.
type Instrumented struct {
	name    string
	inner   Completer
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewInstrumented(name string, inner Completer, m *metrics.Metrics, log *logger.Logger) *Instrumented {
	return &Instrumented{name: name, inner: inner, metrics: m, log: log}
}

func (p *Instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := p.inner.Complete(ctx, req)
	p.observe("complete", req.Model, start, err)
	return out, err
}

func (p *Instrumented) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	start := time.Now()
	out, err := p.inner.Stream(ctx, req, onDelta)
	p.observe("stream", req.Model, start, err)
	return out, err
}

func (p *Instrumented) observe(op, model string, start time.Time, err error) {
	d := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordProviderCall(p.name, op, err, d)
	}
	if p.log == nil {
		return
	}
	if err != nil {
		p.log.Warn("provider call failed", "provider", p.name, "operation", op, "model", model, "duration_ms", d.Milliseconds(), "error", err)
		return
	}
	p.log.Debug("provider call", "provider", p.name, "operation", op, "model", model, "duration_ms", d.Milliseconds())
}

// InstrumentedTranscriber does the same for speech-to-text.
type InstrumentedTranscriber struct {
	name    string
	inner   Transcriber
	metrics *metrics.Metrics
}

func NewInstrumentedTranscriber(name string, inner Transcriber, m *metrics.Metrics) *InstrumentedTranscriber {
	return &InstrumentedTranscriber{name: name, inner: inner, metrics: m}
}

func (t *InstrumentedTranscriber) Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error) {
	start := time.Now()
	out, err := t.inner.Transcribe(ctx, mimeType, audio)
	if t.metrics != nil {
		t.metrics.RecordProviderCall(t.name, "transcribe", err, time.Since(start))
	}
	return out, err
}
