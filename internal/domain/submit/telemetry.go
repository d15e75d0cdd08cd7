package submit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("marketplace.postsubmit")
	meter  = otel.Meter("marketplace.postsubmit")

	runCounter metric.Int64Counter
)

func init() {
	var err error
	runCounter, err = meter.Int64Counter("postsubmit.runs",
		metric.WithDescription("Completed orchestration runs by pipeline status"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// startRun opens a span for one orchestration entry point.
func startRun(ctx context.Context, name, orderID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
}

// countRun records one completed run on the pipeline counter.
func countRun(ctx context.Context, resp *OrderSubmitResponse) {
	runCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("status", resp.Status),
	))
}
