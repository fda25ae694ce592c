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

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/blnkfinance/payrecon/internal/apierror"
	"github.com/blnkfinance/payrecon/model"
	"github.com/lib/pq"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const selectRunColumns = `
	SELECT id, run_id, run_date, source, total_payments, matched, unmatched,
		discrepancy, outcome, started_at, finalized_at
	FROM reconciliation_runs
`

// CreateRun inserts the run header with its candidate count. Tallies and the
// outcome stay empty until FinalizeRun.
func (d Datasource) CreateRun(ctx context.Context, runDate time.Time, source string, candidateCount int) (string, error) {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Saving reconciliation run to db")
	defer span.End()

	runID := GenerateUUIDWithSuffix("run")
	span.SetAttributes(attribute.String("reconciliation.run_id", runID), attribute.Int("reconciliation.candidates", candidateCount))

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (run_id, run_date, source, total_payments, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, runID, runDate, source, candidateCount, time.Now())
	if err != nil {
		span.RecordError(err)
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create reconciliation run", err)
	}

	return runID, nil
}

// AppendDetail records the outcome for one payment. Each call commits on its own.
func (d Datasource) AppendDetail(ctx context.Context, runID string, payment model.PaymentRecord, result model.ReconciliationResult) error {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Saving reconciliation detail to db")
	defer span.End()

	span.SetAttributes(attribute.String("reconciliation.run_id", runID), attribute.Int64("payment.id", payment.PaymentID))

	var orderCode sql.NullInt64
	if payment.OrderCode != nil {
		orderCode = sql.NullInt64{Int64: *payment.OrderCode, Valid: true}
	}
	discrepancyType := sql.NullString{String: string(result.DiscrepancyType), Valid: result.DiscrepancyType != model.DiscrepancyNone}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO reconciliation_details (
			detail_id, run_id, payment_id, order_code, status, discrepancy_type, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, GenerateUUIDWithSuffix("rcd"), runID, payment.PaymentID, orderCode, string(result.Status),
		discrepancyType, result.Message, time.Now())
	if err != nil {
		span.RecordError(err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return apierror.NewAPIError(apierror.ErrNotFound, "Reconciliation run not found", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save reconciliation detail", err)
	}

	return nil
}

// FinalizeRun writes the tallies and outcome. It succeeds at most once per run;
// later calls return a conflict.
func (d Datasource) FinalizeRun(ctx context.Context, runID string, matched, unmatched, discrepancy int, outcome model.RunOutcome) error {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Finalizing reconciliation run")
	defer span.End()

	span.SetAttributes(attribute.String("reconciliation.run_id", runID), attribute.String("reconciliation.outcome", string(outcome)))

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE reconciliation_runs
		SET matched = $2, unmatched = $3, discrepancy = $4, outcome = $5, finalized_at = $6
		WHERE run_id = $1 AND finalized_at IS NULL
	`, runID, matched, unmatched, discrepancy, string(outcome), time.Now())
	if err != nil {
		span.RecordError(err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "check_violation" {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "Run tallies do not add up to the candidate count", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to finalize reconciliation run", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read finalize result", err)
	}
	if affected == 1 {
		return nil
	}

	run, err := d.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.IsFinalized() {
		return apierror.NewAPIError(apierror.ErrConflict, "Reconciliation run already finalized", nil)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, "Reconciliation run was not finalized", nil)
}

// GetRun retrieves a run by its ID.
func (d Datasource) GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Fetching reconciliation run from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, selectRunColumns+`WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Reconciliation run not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reconciliation run", err)
	}
	return run, nil
}

// ListRuns returns runs whose run date falls within [from, to], newest first.
func (d Datasource) ListRuns(ctx context.Context, from, to time.Time, limit, offset int) ([]*model.ReconciliationRun, error) {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Listing reconciliation runs")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, selectRunColumns+`
		WHERE run_date >= $1 AND run_date <= $2
		ORDER BY run_date DESC, started_at DESC
		LIMIT $3 OFFSET $4
	`, from, to, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reconciliation runs", err)
	}
	defer rows.Close()

	runs := []*model.ReconciliationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reconciliation run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over reconciliation runs", err)
	}
	return runs, nil
}

// GetRunDetails returns every detail row of a run in insertion order.
func (d Datasource) GetRunDetails(ctx context.Context, runID string) ([]*model.ReconciliationDetail, error) {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Fetching reconciliation details")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, detail_id, run_id, payment_id, order_code, status, discrepancy_type, message, created_at
		FROM reconciliation_details
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reconciliation details", err)
	}
	defer rows.Close()

	details := []*model.ReconciliationDetail{}
	for rows.Next() {
		var (
			detail          model.ReconciliationDetail
			orderCode       sql.NullInt64
			status          string
			discrepancyType sql.NullString
		)
		err := rows.Scan(&detail.ID, &detail.DetailID, &detail.RunID, &detail.PaymentID, &orderCode,
			&status, &discrepancyType, &detail.Message, &detail.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reconciliation detail", err)
		}
		if orderCode.Valid {
			detail.OrderCode = ptr.Int64(orderCode.Int64)
		}
		detail.Status = model.ReconciliationStatus(status)
		detail.DiscrepancyType = model.DiscrepancyType(discrepancyType.String)
		details = append(details, &detail)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over reconciliation details", err)
	}
	return details, nil
}

// TallyRunDetails counts a run's detail rows per status, for auditing the
// run header against its details.
func (d Datasource) TallyRunDetails(ctx context.Context, runID string) (model.RunTally, error) {
	ctx, span := otel.Tracer("Reconciliation").Start(ctx, "Tallying reconciliation details")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM reconciliation_details
		WHERE run_id = $1
		GROUP BY status
	`, runID)
	if err != nil {
		return model.RunTally{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to tally reconciliation details", err)
	}
	defer rows.Close()

	var tally model.RunTally
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return model.RunTally{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan detail tally", err)
		}
		switch model.ReconciliationStatus(status) {
		case model.ReconciliationMatched:
			tally.Matched += count
		case model.ReconciliationUnmatched:
			tally.Unmatched += count
		default:
			tally.Discrepancy += count
		}
	}
	if err := rows.Err(); err != nil {
		return model.RunTally{}, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while tallying reconciliation details", err)
	}
	return tally, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.ReconciliationRun, error) {
	var (
		run     model.ReconciliationRun
		outcome sql.NullString
		final   sql.NullTime
	)
	err := row.Scan(&run.ID, &run.RunID, &run.RunDate, &run.Source, &run.TotalPayments, &run.Matched,
		&run.Unmatched, &run.Discrepancy, &outcome, &run.StartedAt, &final)
	if err != nil {
		return nil, err
	}
	run.Outcome = model.RunOutcome(outcome.String)
	if final.Valid {
		run.FinalizedAt = ptr.Time(final.Time)
	}
	return &run, nil
}
