// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersStarted tracks file transfers begun, as requester or responder.
	TransfersStarted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "transfers_started_total",
			Help:      "Total number of file transfers started",
		},
		[]string{"role"}, // requester, responder
	)

	// TransfersCompleted tracks finished file transfers by outcome.
	TransfersCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "transfers_completed_total",
			Help:      "Total number of file transfers completed",
		},
		[]string{"status"}, // success, hash_mismatch, failure
	)

	// TransferBytes tracks bytes moved per completed transfer.
	TransferBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "transfer_bytes",
			Help:      "Size in bytes of files transferred",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 12), // 1KB to ~4GB
		},
	)

	// TransferDuration tracks how long a full fetch takes end to end.
	TransferDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "transfer_duration_seconds",
			Help:      "File transfer duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~328s
		},
	)

	// ActiveTransfers tracks in-flight Fetch calls.
	ActiveTransfers = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "active_transfers",
			Help:      "Number of file transfers currently in flight",
		},
	)
)
