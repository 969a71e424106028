package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry meter and tracer used around core
// intake operations. The zero value is usable and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	opCounter      otelmetric.Int64Counter
	opDuration     otelmetric.Float64Histogram
}

// New registers the exporter with the default Prometheus registerer.
func New(serviceName string, opts ...sdktrace.TracerProviderOption) *Observability {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer, opts...)
}

func NewWithRegisterer(serviceName string, reg promclient.Registerer, opts ...sdktrace.TracerProviderOption) *Observability {
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{tracerProvider: tp, tracer: tp.Tracer(serviceName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"intake.operations",
		otelmetric.WithDescription("Number of core intake operations"),
	)

	opDuration, _ := meter.Float64Histogram(
		"intake.operation.duration",
		otelmetric.WithDescription("Core intake operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          meter,
		tracer:         tp.Tracer(serviceName),
		opCounter:      opCounter,
		opDuration:     opDuration,
	}
}

// StartOperation opens a span for a core operation. The returned func ends the
// span and records the outcome; pass it the operation's error.
func (o *Observability) StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if o == nil || o.tracer == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.RecordOperation(ctx, name, time.Since(start), status)
	}
}

func (o *Observability) RecordOperation(ctx context.Context, name string, duration time.Duration, status string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", name),
		attribute.String("status", status),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
}
