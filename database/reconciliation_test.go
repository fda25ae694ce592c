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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/payrecon/internal/apierror"
	"github.com/blnkfinance/payrecon/model"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

var runColumns = []string{"id", "run_id", "run_date", "source", "total_payments", "matched", "unmatched",
	"discrepancy", "outcome", "started_at", "finalized_at"}

func TestCreateRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	runDate := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO reconciliation_runs").
		WithArgs(sqlmock.AnyArg(), runDate, "PAYOS", 12, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	runID, err := ds.CreateRun(context.Background(), runDate, "PAYOS", 12)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "run_"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRun_Fail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectExec("INSERT INTO reconciliation_runs").WillReturnError(errors.New("disk full"))

	runID, err := ds.CreateRun(context.Background(), time.Now(), "PAYOS", 1)
	assert.Empty(t, runID)
	assert.True(t, apierror.HasCode(err, apierror.ErrInternalServer))
}

func TestAppendDetail_WithDiscrepancy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	payment := model.PaymentRecord{PaymentID: 42, OrderCode: ptr.Int64(9001), Amount: decimal.NewFromInt(150000)}
	result := model.ReconciliationResult{
		Status:          model.ReconciliationDiscrepancy,
		DiscrepancyType: model.DiscrepancyAmountMismatch,
		Message:         "Amount mismatch: Internal=150000, Gateway=140000",
	}

	mock.ExpectExec("INSERT INTO reconciliation_details").
		WithArgs(sqlmock.AnyArg(), "run_1", int64(42), int64(9001), "DISCREPANCY", "AMOUNT_MISMATCH",
			result.Message, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.AppendDetail(context.Background(), "run_1", payment, result)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendDetail_MatchedWithoutOrderCodeStoresNulls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	payment := model.PaymentRecord{PaymentID: 7}
	result := model.ReconciliationResult{Status: model.ReconciliationMatched, Message: "Payment matches gateway data"}

	mock.ExpectExec("INSERT INTO reconciliation_details").
		WithArgs(sqlmock.AnyArg(), "run_1", int64(7), nil, "MATCHED", nil, result.Message, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, ds.AppendDetail(context.Background(), "run_1", payment, result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendDetail_UnknownRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectExec("INSERT INTO reconciliation_details").
		WillReturnError(&pq.Error{Code: "23503"})

	err = ds.AppendDetail(context.Background(), "run_missing", model.PaymentRecord{PaymentID: 1}, model.ReconciliationResult{Status: model.ReconciliationMatched})
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestFinalizeRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectExec(`UPDATE reconciliation_runs`).
		WithArgs("run_1", 8, 1, 1, "PARTIAL", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.FinalizeRun(context.Background(), "run_1", 8, 1, 1, model.RunOutcomePartial)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRun_AlreadyFinalized(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	finalizedAt := time.Now().Add(-time.Minute)

	mock.ExpectExec(`UPDATE reconciliation_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, run_id, run_date").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(int64(1), "run_1", time.Now(), "PAYOS", 3, 3, 0, 0, "SUCCESS", time.Now(), finalizedAt))

	err = ds.FinalizeRun(context.Background(), "run_1", 3, 0, 0, model.RunOutcomeSuccess)
	assert.True(t, apierror.HasCode(err, apierror.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRun_UnknownRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectExec(`UPDATE reconciliation_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, run_id, run_date").
		WithArgs("run_missing").
		WillReturnRows(sqlmock.NewRows(runColumns))

	err = ds.FinalizeRun(context.Background(), "run_missing", 0, 0, 0, model.RunOutcomeSuccess)
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}

func TestFinalizeRun_TallyMismatchRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectExec(`UPDATE reconciliation_runs`).
		WillReturnError(&pq.Error{Code: "23514"})

	err = ds.FinalizeRun(context.Background(), "run_1", 1, 0, 0, model.RunOutcomeSuccess)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput))
}

func TestGetRun_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	runDate := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	startedAt := runDate.Add(26 * time.Hour)

	mock.ExpectQuery("SELECT id, run_id, run_date").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(int64(1), "run_1", runDate, "PAYOS", 5, 0, 0, 0, nil, startedAt, nil))

	run, err := ds.GetRun(context.Background(), "run_1")
	require.NoError(t, err)
	assert.Equal(t, "run_1", run.RunID)
	assert.Equal(t, 5, run.TotalPayments)
	assert.False(t, run.IsFinalized())
	assert.Empty(t, run.Outcome)
}

func TestGetRun_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("SELECT id, run_id, run_date").WillReturnError(errors.New("timeout"))

	run, err := ds.GetRun(context.Background(), "run_1")
	assert.Nil(t, run)
	assert.True(t, apierror.HasCode(err, apierror.ErrInternalServer))
}

func TestListRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	finalizedAt := time.Now()

	mock.ExpectQuery("SELECT id, run_id, run_date").
		WithArgs(from, to, 20, 0).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(int64(2), "run_2", to, "PAYOS", 2, 2, 0, 0, "SUCCESS", time.Now(), finalizedAt).
			AddRow(int64(1), "run_1", from, "PAYOS", 2, 1, 1, 0, "PARTIAL", time.Now(), finalizedAt))

	runs, err := ds.ListRuns(context.Background(), from, to, 20, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunOutcomeSuccess, runs[0].Outcome)
	assert.Equal(t, model.RunOutcomePartial, runs[1].Outcome)
	require.NotNil(t, runs[1].FinalizedAt)
}

func TestGetRunDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	columns := []string{"id", "detail_id", "run_id", "payment_id", "order_code", "status", "discrepancy_type", "message", "created_at"}

	mock.ExpectQuery("SELECT id, detail_id, run_id").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "rcd_1", "run_1", int64(10), int64(5001), "MATCHED", nil, "Payment matches gateway data", time.Now()).
			AddRow(int64(2), "rcd_2", "run_1", int64(11), nil, "UNMATCHED", "MISSING_ORDER_CODE", "Payment has no order code", time.Now()))

	details, err := ds.GetRunDetails(context.Background(), "run_1")
	require.NoError(t, err)
	require.Len(t, details, 2)

	assert.True(t, details[0].IsMatched())
	assert.Equal(t, model.DiscrepancyNone, details[0].DiscrepancyType)
	require.NotNil(t, details[0].OrderCode)
	assert.Equal(t, int64(5001), *details[0].OrderCode)

	assert.Nil(t, details[1].OrderCode)
	assert.Equal(t, model.DiscrepancyMissingOrderCode, details[1].DiscrepancyType)
}

func TestTallyRunDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("MATCHED", 8).
			AddRow("UNMATCHED", 1).
			AddRow("DISCREPANCY", 3))

	tally, err := ds.TallyRunDetails(context.Background(), "run_1")
	require.NoError(t, err)
	assert.Equal(t, model.RunTally{Matched: 8, Unmatched: 1, Discrepancy: 3}, tally)
	assert.Equal(t, 12, tally.Total())
}
