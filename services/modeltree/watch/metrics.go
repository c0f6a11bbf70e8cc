// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reloads counts file reloads by outcome
	reloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeltree_watch_reloads_total",
		Help: "Total model file reloads triggered by the watcher",
	}, []string{"status"})

	// droppedEvents counts events lost to a full buffer
	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeltree_watch_dropped_events_total",
		Help: "Total file events dropped because the buffer was full",
	})
)
