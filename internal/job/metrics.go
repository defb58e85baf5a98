package job

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type instruments struct {
	submitted metric.Int64Counter
	completed metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments(meter metric.Meter) instruments {
	var fallback noop.Meter

	submitted, err := meter.Int64Counter("whisperdesk.jobs.submitted",
		metric.WithDescription("Transcription jobs accepted by the runner"))
	if err != nil {
		otel.Handle(err)
		submitted, _ = fallback.Int64Counter("whisperdesk.jobs.submitted")
	}

	completed, err := meter.Int64Counter("whisperdesk.jobs.completed",
		metric.WithDescription("Transcription jobs that reached a terminal result"))
	if err != nil {
		otel.Handle(err)
		completed, _ = fallback.Int64Counter("whisperdesk.jobs.completed")
	}

	duration, err := meter.Float64Histogram("whisperdesk.jobs.duration",
		metric.WithDescription("Wall time from submit to terminal result"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
		duration, _ = fallback.Float64Histogram("whisperdesk.jobs.duration")
	}

	return instruments{submitted: submitted, completed: completed, duration: duration}
}

func (i instruments) record(ctx context.Context, res Result) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", string(res.Kind)),
		attribute.String("model", res.Request.Model.String()),
	)
	i.completed.Add(ctx, 1, attrs)
	i.duration.Record(ctx, res.Elapsed().Seconds(), attrs)
}
