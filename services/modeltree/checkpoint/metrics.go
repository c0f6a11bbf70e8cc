// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/modeltree/services/modeltree/telemetry"
)

var (
	// checkpointOps counts store operations by op and outcome
	checkpointOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeltree_checkpoint_ops_total",
		Help: "Total checkpoint store operations",
	}, []string{"op", "status"})

	// checkpointBytes tracks encoded snapshot sizes
	checkpointBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modeltree_checkpoint_bytes",
		Help:    "Size of encoded state snapshots written to the store",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
	})

	// gcRewrites counts value log files rewritten by GC
	gcRewrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeltree_checkpoint_gc_rewrites_total",
		Help: "Total value log rewrites performed by checkpoint GC",
	})
)

var tracer = otel.Tracer("modeltree.checkpoint")

// startStoreSpan creates a span for a store operation.
func startStoreSpan(ctx context.Context, op, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "checkpoint."+op,
		trace.WithAttributes(
			attribute.String("checkpoint.id", id),
		),
	)
}

// finishOp counts op and ends its span with err.
func finishOp(span trace.Span, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	checkpointOps.WithLabelValues(op, status).Inc()
	telemetry.EndSpan(span, err)
}
