package telemetry

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

type Options struct {
	// Trace enables span export and a metrics summary on shutdown.
	Trace       bool
	ServiceName string
	Version     string
	Writer      io.Writer
	Logger      *zap.Logger
}

type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers. With tracing disabled
// the otel no-op globals stay in place.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Trace {
		return func(context.Context) error { return nil }, nil
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "whisperdesk"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			attribute.String("service.version", opts.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	opts.Logger.Debug("telemetry initialized", zap.String("exporter", "stdout"))

	return func(ctx context.Context) error {
		var errs []error
		if err := logMetrics(ctx, reader, opts.Logger); err != nil {
			errs = append(errs, err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}, nil
}

func logMetrics(ctx context.Context, reader sdkmetric.Reader, logger *zap.Logger) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				logger.Info("metric", zap.String("name", m.Name), zap.Int64("value", total))
			case metricdata.Histogram[float64]:
				var (
					count uint64
					sum   float64
				)
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				logger.Info("metric", zap.String("name", m.Name), zap.Uint64("count", count), zap.Float64("sum", sum))
			}
		}
	}
	return nil
}
