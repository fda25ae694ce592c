/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payrecon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reconciliationResults counts engine classifications.
	// Labels: status, discrepancy_type
	reconciliationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payrecon",
		Subsystem: "engine",
		Name:      "results_total",
		Help:      "Total payments classified by the reconciliation engine",
	}, []string{"status", "discrepancy_type"})

	// gatewayQueryDuration measures gateway lookups. Labels: outcome (found, not_found, error)
	gatewayQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payrecon",
		Subsystem: "engine",
		Name:      "gateway_query_seconds",
		Help:      "Gateway lookup latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	// statusMappingDefaults counts gateway statuses that fell through to PENDING.
	// The raw value only goes to the log.
	statusMappingDefaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "payrecon",
		Subsystem: "engine",
		Name:      "status_mapping_defaults_total",
		Help:      "Gateway statuses with no explicit mapping",
	})

	// jobRuns counts job invocations. Labels: job, outcome (success, partial, skipped, failed)
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payrecon",
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Reconciliation job invocations by outcome",
	}, []string{"job", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payrecon",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Reconciliation job duration in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
	}, []string{"job"})

	detailWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "payrecon",
		Subsystem: "ledger",
		Name:      "detail_write_failures_total",
		Help:      "Detail rows that could not be persisted after retries",
	})

	// alertFailures counts sink errors. Labels: sink
	alertFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payrecon",
		Subsystem: "alerts",
		Name:      "failures_total",
		Help:      "Alert deliveries that failed",
	}, []string{"sink"})
)
