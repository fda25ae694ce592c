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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	redlock "github.com/blnkfinance/payrecon/internal/lock"
	"github.com/blnkfinance/payrecon/model"
)

// RecentWindowReport summarises one recent-window invocation.
type RecentWindowReport struct {
	Since   time.Time      `json:"since"`
	Total   int            `json:"total"`
	Tally   model.RunTally `json:"tally"`
	Skipped bool           `json:"skipped"`

	// Alerts counts alerts every sink accepted; AlertFailures counts the rest.
	Alerts        int `json:"alerts"`
	AlertFailures int `json:"alert_failures"`
}

// RunRecentWindow reconciles payments paid within the look-back window ending
// at now and raises an alert for every result that is not MATCHED. It writes
// nothing to the run ledger.
func (r *Reconciler) RunRecentWindow(ctx context.Context, now time.Time) (*RecentWindowReport, error) {
	ctx, span := otel.Tracer("Reconciler").Start(ctx, "Recent window reconciliation")
	defer span.End()

	started := time.Now()
	defer func() { jobDuration.WithLabelValues(JobRecentWindow).Observe(time.Since(started).Seconds()) }()

	report := &RecentWindowReport{Since: now.Add(-r.lookback)}
	log := logrus.WithFields(logrus.Fields{"job": JobRecentWindow, "since": report.Since.Format(time.RFC3339), "source": r.source})
	span.SetAttributes(attribute.String("reconciliation.since", report.Since.Format(time.RFC3339)))

	marker := redlock.NewLocker(r.redis, redlock.RunKey(JobRecentWindow), uuid.NewString())
	if err := marker.Acquire(ctx, r.recentMarkerTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			logMarkerHeld(ctx, log, marker, "recent window reconciliation already in progress, skipping")
			jobRuns.WithLabelValues(JobRecentWindow, "skipped").Inc()
			report.Skipped = true
			return report, nil
		}
		return nil, r.fail(JobRecentWindow, fmt.Errorf("recent window: acquire run marker: %w", err))
	}
	defer func() {
		if err := marker.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("failed to release run marker")
		}
	}()

	log.Info("starting recent window reconciliation")

	payments, err := r.payments.FindGatewayPaymentsSince(ctx, r.source, report.Since)
	if err != nil {
		return nil, r.fail(JobRecentWindow, fmt.Errorf("recent window: fetch candidates since %s: %w", report.Since.Format(time.RFC3339), err))
	}
	report.Total = len(payments)
	log.Infof("found %d recent payments for reconciliation", report.Total)

	for _, payment := range payments {
		result := r.engine.Reconcile(ctx, payment)
		report.Tally.Add(result)
		if result.IsMatched() {
			continue
		}

		logResult(log, payment, result)
		if r.safeRaise(ctx, payment, result) {
			report.Alerts++
		} else {
			report.AlertFailures++
		}
	}

	log.WithFields(logrus.Fields{
		"total":       report.Total,
		"matched":     report.Tally.Matched,
		"unmatched":   report.Tally.Unmatched,
		"discrepancy": report.Tally.Discrepancy,
		"alerts":      report.Alerts,
		"alert_fails": report.AlertFailures,
	}).Info("recent window reconciliation completed")
	jobRuns.WithLabelValues(JobRecentWindow, "success").Inc()

	return report, nil
}
