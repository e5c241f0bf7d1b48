package tracer

import (
	"context"
	"log" // For fatal error on metric init failure

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	outboundRequestsTotal metric.Int64Counter
	outboundRetriesTotal  metric.Int64Counter
	cacheLookupsTotal     metric.Int64Counter
)

// InitializeMetrics sets up the application's metrics. Call this during startup.
func InitializeMetrics(meter metric.Meter) {
	var err error

	outboundRequestsTotal, err = meter.Int64Counter(
		"outbound_requests_total",
		metric.WithDescription("Total number of outbound provider requests"),
	)
	if err != nil {
		log.Fatalf("Failed to create outbound_requests_total counter: %v", err)
	}

	outboundRetriesTotal, err = meter.Int64Counter(
		"outbound_retries_total",
		metric.WithDescription("Total number of outbound request retries"),
	)
	if err != nil {
		log.Fatalf("Failed to create outbound_retries_total counter: %v", err)
	}

	cacheLookupsTotal, err = meter.Int64Counter(
		"cache_lookups_total",
		metric.WithDescription("Total number of durable cache lookups, labelled by outcome"),
	)
	if err != nil {
		log.Fatalf("Failed to create cache_lookups_total counter: %v", err)
	}

	log.Println("Application metrics initialized successfully.")
}

// RecordOutboundRequest counts one provider round trip.
func RecordOutboundRequest(ctx context.Context) {
	if outboundRequestsTotal != nil {
		outboundRequestsTotal.Add(ctx, 1)
	}
}

// RecordOutboundRetry counts one retry attempt.
func RecordOutboundRetry(ctx context.Context) {
	if outboundRetriesTotal != nil {
		outboundRetriesTotal.Add(ctx, 1)
	}
}

// RecordCacheLookup counts one cache lookup with its hit/miss outcome.
func RecordCacheLookup(ctx context.Context, hit bool) {
	if cacheLookupsTotal != nil {
		cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
	}
}
