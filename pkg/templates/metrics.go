package templates

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName            = "devicematch.templates"
	metricMatchEvalTotal = "templates_match_eval_total"
	metricMatchLatency   = "templates_match_latency_seconds"

	outcomeMatch        = "match"
	outcomeNoMatch      = "no_match"
	outcomePatternError = "pattern_error"
)

var (
	// instrumentation handles are cached globally to avoid re-registering OTEL instruments on every call.
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	evalCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	matchHistogram metric.Float64Histogram
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricMatchEvalTotal,
		metric.WithDescription("Total per-template match evaluations by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	evalCounter = counter

	hist, err := meter.Float64Histogram(
		metricMatchLatency,
		metric.WithDescription("Latency for whole-registry candidate match sweeps"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	matchHistogram = hist
}

// RecordEvaluation increments the evaluation counter for a single
// template-versus-candidate comparison.
func RecordEvaluation(ctx context.Context, outcome string) {
	meterOnce.Do(initMeter)
	if evalCounter == nil {
		return
	}

	evalCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ObserveMatchLatency records the duration of a full registry sweep.
func ObserveMatchLatency(ctx context.Context, seconds float64) {
	meterOnce.Do(initMeter)
	if matchHistogram == nil {
		return
	}

	matchHistogram.Record(ctx, seconds)
}
