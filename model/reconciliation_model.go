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

package model

import "time"

// ReconciliationStatus is the top-level classification of one payment.
type ReconciliationStatus string

const (
	ReconciliationMatched     ReconciliationStatus = "MATCHED"
	ReconciliationUnmatched   ReconciliationStatus = "UNMATCHED"
	ReconciliationDiscrepancy ReconciliationStatus = "DISCREPANCY"
)

// DiscrepancyType explains a non-matched classification. It is empty for MATCHED.
type DiscrepancyType string

const (
	DiscrepancyNone                DiscrepancyType = ""
	DiscrepancyMissingOrderCode    DiscrepancyType = "MISSING_ORDER_CODE"
	DiscrepancyGatewayNotFound     DiscrepancyType = "GATEWAY_NOT_FOUND"
	DiscrepancyAmountMismatch      DiscrepancyType = "AMOUNT_MISMATCH"
	DiscrepancyStatusMismatch      DiscrepancyType = "STATUS_MISMATCH"
	DiscrepancyReconciliationError DiscrepancyType = "RECONCILIATION_ERROR"
)

// RunOutcome is the overall result of a finalized run.
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "SUCCESS"
	RunOutcomePartial RunOutcome = "PARTIAL"
)

// ReconciliationResult is the value produced by the engine for one payment.
type ReconciliationResult struct {
	Status          ReconciliationStatus `json:"status"`
	DiscrepancyType DiscrepancyType      `json:"discrepancy_type,omitempty"`
	Message         string               `json:"message"`
}

func (r ReconciliationResult) IsMatched() bool {
	return r.Status == ReconciliationMatched
}

// ReconciliationRun is the audit record of one Full-Sweep execution.
// Counts and Outcome are written once, when the run is finalized.
type ReconciliationRun struct {
	ID            int64      `json:"-"`
	RunID         string     `json:"run_id"`
	RunDate       time.Time  `json:"run_date"`
	Source        string     `json:"source"`
	TotalPayments int        `json:"total_payments"`
	Matched       int        `json:"matched"`
	Unmatched     int        `json:"unmatched"`
	Discrepancy   int        `json:"discrepancy"`
	Outcome       RunOutcome `json:"outcome,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
}

// IsFinalized reports whether the run's counts have been written.
func (r ReconciliationRun) IsFinalized() bool {
	return r.FinalizedAt != nil
}

// ReconciliationDetail is the write-once outcome row for one payment in a run.
type ReconciliationDetail struct {
	ID        int64  `json:"-"`
	DetailID  string `json:"detail_id"`
	RunID     string `json:"run_id"`
	PaymentID int64  `json:"payment_id"`
	OrderCode *int64 `json:"order_code,omitempty"`
	ReconciliationResult
	CreatedAt time.Time `json:"created_at"`
}

// RunTally accumulates per-status counts while a run is in progress.
type RunTally struct {
	Matched     int `json:"matched"`
	Unmatched   int `json:"unmatched"`
	Discrepancy int `json:"discrepancy"`
}

// Add counts one classified result.
func (t *RunTally) Add(result ReconciliationResult) {
	switch result.Status {
	case ReconciliationMatched:
		t.Matched++
	case ReconciliationUnmatched:
		t.Unmatched++
	default:
		t.Discrepancy++
	}
}

func (t RunTally) Total() int {
	return t.Matched + t.Unmatched + t.Discrepancy
}

// Outcome derives the run outcome for a run over total candidates.
func (t RunTally) Outcome(total int) RunOutcome {
	if t.Matched == total {
		return RunOutcomeSuccess
	}
	return RunOutcomePartial
}
