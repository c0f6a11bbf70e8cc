// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// listMutations counts structural edits by operation
	listMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeltree_list_mutations_total",
		Help: "Total structural list edits by operation",
	}, []string{"op"})

	// numberCacheRebuilds counts full rebuilds of a free number stack
	numberCacheRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeltree_number_cache_rebuilds_total",
		Help: "Total free number stack rebuilds after explicit numbering",
	})

	// scanDuration tracks load latency for a whole component file
	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modeltree_scan_duration_seconds",
		Help:    "Duration of scan plus postscan of a component file",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"result"})
)

var tracer = otel.Tracer("modeltree.tree")

// startLoadSpan creates a span for loading a component from text.
func startLoadSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tree.LoadComponent",
		trace.WithAttributes(
			attribute.String("modeltree.source", source),
		),
	)
}

// startWriteSpan creates a span for writing a component.
func startWriteSpan(ctx context.Context, c Component) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tree.WriteComponent",
		trace.WithAttributes(
			attribute.String("modeltree.class", c.ClassTag()),
			attribute.String("modeltree.path", PathName(c)),
		),
	)
}
