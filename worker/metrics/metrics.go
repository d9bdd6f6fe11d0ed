// Package metrics records pipeline outcomes with OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "videotasks/worker"

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeFailure   Outcome = "failure"
	OutcomeSkipped   Outcome = "skipped"
	OutcomePoison    Outcome = "poison"
)

type Pipeline struct {
	tasks    metric.Int64Counter
	duration metric.Float64Histogram
}

func NewPipeline(meter metric.Meter) (*Pipeline, error) {
	tasks, err := meter.Int64Counter("videotasks.pipeline.tasks",
		metric.WithDescription("Transform pipeline runs by outcome"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("create task counter: %w", err)
	}

	duration, err := meter.Float64Histogram("videotasks.pipeline.duration",
		metric.WithDescription("Wall time of completed transform runs"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Pipeline{tasks: tasks, duration: duration}, nil
}

// Record counts one outcome. elapsed is only recorded for runs that reached
// the transform step.
func (p *Pipeline) Record(ctx context.Context, outcome Outcome, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	p.tasks.Add(ctx, 1, attrs)
	if elapsed > 0 {
		p.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// Setup installs a global meter provider that periodically writes to
// stdout. The returned function flushes and stops it.
func Setup(interval time.Duration) (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
