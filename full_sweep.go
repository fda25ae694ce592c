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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blnkfinance/payrecon/internal/apierror"
	redlock "github.com/blnkfinance/payrecon/internal/lock"
	"github.com/blnkfinance/payrecon/model"
)

const (
	JobFullSweep    = "full_sweep"
	JobRecentWindow = "recent_window"

	// markerExtendEvery is how many candidates are processed between run
	// marker extensions during a full sweep.
	markerExtendEvery = 100
)

// FullSweepReport summarises one full-sweep invocation.
type FullSweepReport struct {
	RunID   string           `json:"run_id,omitempty"`
	RunDate time.Time        `json:"run_date"`
	Total   int              `json:"total"`
	Tally   model.RunTally   `json:"tally"`
	Outcome model.RunOutcome `json:"outcome,omitempty"`
	Skipped bool             `json:"skipped"`
}

// PreviousDay returns midnight of the calendar day before now in loc.
func PreviousDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc)
}

// RunFullSweep reconciles every gateway payment paid during the calendar day
// before now and records a run with one detail per payment. Only a failure to
// fetch candidates, open the run, close the run or reach the run marker fails
// the invocation. If another sweep holds the run marker the call is skipped.
func (r *Reconciler) RunFullSweep(ctx context.Context, now time.Time) (*FullSweepReport, error) {
	ctx, span := otel.Tracer("Reconciler").Start(ctx, "Full sweep reconciliation")
	defer span.End()

	started := time.Now()
	defer func() { jobDuration.WithLabelValues(JobFullSweep).Observe(time.Since(started).Seconds()) }()

	report := &FullSweepReport{RunDate: PreviousDay(now, r.location)}
	log := logrus.WithFields(logrus.Fields{"job": JobFullSweep, "run_date": report.RunDate.Format(time.DateOnly), "source": r.source})
	span.SetAttributes(attribute.String("reconciliation.run_date", report.RunDate.Format(time.DateOnly)))

	marker := redlock.NewLocker(r.redis, redlock.RunKey(JobFullSweep), uuid.NewString())
	if err := marker.Acquire(ctx, r.markerTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			logMarkerHeld(ctx, log, marker, "full sweep already in progress, skipping")
			jobRuns.WithLabelValues(JobFullSweep, "skipped").Inc()
			report.Skipped = true
			return report, nil
		}
		return nil, r.fail(JobFullSweep, fmt.Errorf("full sweep: acquire run marker: %w", err))
	}
	defer func() {
		if err := marker.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("failed to release run marker")
		}
	}()

	log.Info("starting full sweep reconciliation")

	payments, err := r.payments.FindGatewayPaymentsByDate(ctx, r.source, report.RunDate)
	if err != nil {
		return nil, r.fail(JobFullSweep, fmt.Errorf("full sweep: fetch candidates for %s: %w", report.RunDate.Format(time.DateOnly), err))
	}
	report.Total = len(payments)
	log.Infof("found %d payments for reconciliation", report.Total)

	runID, err := r.ledger.CreateRun(ctx, report.RunDate, r.source, report.Total)
	if err != nil {
		return nil, r.fail(JobFullSweep, fmt.Errorf("full sweep: create run: %w", err))
	}
	report.RunID = runID
	log = log.WithField("run_id", runID)
	span.SetAttributes(attribute.String("reconciliation.run_id", runID))

	for i, payment := range payments {
		result := r.engine.Reconcile(ctx, payment)
		r.appendDetail(ctx, runID, payment, result)
		report.Tally.Add(result)
		logResult(log, payment, result)

		if (i+1)%markerExtendEvery == 0 {
			if err := marker.Extend(ctx, r.markerTTL); err != nil {
				log.WithError(err).Warn("failed to extend run marker")
			}
		}
	}

	report.Outcome = report.Tally.Outcome(report.Total)

	// The run is closed even when the task deadline has passed mid-sweep.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.finalizeTimeout)
	defer cancel()
	err = r.ledger.FinalizeRun(finalizeCtx, runID, report.Tally.Matched, report.Tally.Unmatched, report.Tally.Discrepancy, report.Outcome)
	if err != nil {
		return report, r.fail(JobFullSweep, fmt.Errorf("full sweep: finalize run %s: %w", runID, err))
	}

	log.WithFields(logrus.Fields{
		"total":       report.Total,
		"matched":     report.Tally.Matched,
		"unmatched":   report.Tally.Unmatched,
		"discrepancy": report.Tally.Discrepancy,
		"outcome":     report.Outcome,
	}).Info("full sweep reconciliation completed")
	jobRuns.WithLabelValues(JobFullSweep, strings.ToLower(string(report.Outcome))).Inc()

	return report, nil
}

// appendDetail retries transient ledger failures. A detail that still cannot
// be written is counted, logged and reported, but never aborts the sweep.
func (r *Reconciler) appendDetail(ctx context.Context, runID string, payment model.PaymentRecord, result model.ReconciliationResult) {
	operation := func() error {
		err := r.ledger.AppendDetail(ctx, runID, payment, result)
		if err != nil && apierror.HasCode(err, apierror.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.detailBackoff(), uint64(r.detailRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		detailWriteFailures.Inc()
		r.notify(fmt.Errorf("failed to record reconciliation detail for payment %d in run %s: %w", payment.PaymentID, runID, err))
	}
}

func (r *Reconciler) fail(job string, err error) error {
	jobRuns.WithLabelValues(job, "failed").Inc()
	r.notify(err)
	return err
}

// logMarkerHeld names the marker a skipped job found taken, and its holder
// when it is still set.
func logMarkerHeld(ctx context.Context, log *logrus.Entry, marker *redlock.Locker, msg string) {
	entry := log.WithField("marker", marker.Key())
	if holder, err := marker.Holder(ctx); err == nil && holder != "" {
		entry = entry.WithField("held_by", holder)
	}
	entry.Warn(msg)
}

func logResult(log *logrus.Entry, payment model.PaymentRecord, result model.ReconciliationResult) {
	entry := log.WithFields(logrus.Fields{
		"payment_id":       payment.PaymentID,
		"order_code":       orderCodeField(payment.OrderCode),
		"discrepancy_type": result.DiscrepancyType,
	})
	switch result.Status {
	case model.ReconciliationUnmatched:
		entry.Warn("unmatched payment: " + result.Message)
	case model.ReconciliationDiscrepancy:
		entry.Error("payment discrepancy: " + result.Message)
	default:
		entry.Debug("payment matched")
	}
}

func orderCodeField(code *int64) interface{} {
	if code == nil {
		return nil
	}
	return *code
}
