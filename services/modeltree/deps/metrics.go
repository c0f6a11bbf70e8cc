// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// closureSize tracks how many components a closure deletes
	closureSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modeltree_closure_size",
		Help:    "Number of components in a dependency closure delete list",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
	})

	// referenceCycles counts cycles met while walking hard references
	referenceCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeltree_reference_cycles_total",
		Help: "Total hard reference cycles detected during closure walks",
	})

	// editsApplied counts grouped removals by direction
	editsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeltree_remove_edits_total",
		Help: "Total grouped removal edits applied or undone",
	}, []string{"direction"})
)

var tracer = otel.Tracer("modeltree.deps")

// startClosureSpan creates a span for a closure computation.
func startClosureSpan(ctx context.Context, seeds int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "deps.FindDependentComponents",
		trace.WithAttributes(
			attribute.Int("modeltree.seeds", seeds),
		),
	)
}
