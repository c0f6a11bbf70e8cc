// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// realignedFrames counts frames written by GetInitialState, by source
	realignedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modeltree_state_frames_realigned_total",
		Help: "Total state frames built during realignment, copied or captured",
	}, []string{"source"})

	// restoreFailures counts SetState calls rejected as incompatible
	restoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modeltree_state_restore_failures_total",
		Help: "Total state restores rejected as incompatible",
	})
)
