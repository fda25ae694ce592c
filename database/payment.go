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
	"time"

	"github.com/blnkfinance/payrecon/internal/apierror"
	"github.com/blnkfinance/payrecon/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const selectPaymentColumns = `
	SELECT payment_id, order_code, amount, payment_method, status, paid_at, refunded_at
	FROM payment
`

// DayBounds returns the half-open interval [start, end) of the calendar day
// containing day, in day's location.
func DayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// FindGatewayPaymentsByDate returns every payment of the given gateway that was
// paid during the calendar day containing day.
func (d Datasource) FindGatewayPaymentsByDate(ctx context.Context, source string, day time.Time) ([]model.PaymentRecord, error) {
	ctx, span := otel.Tracer("Payment").Start(ctx, "Fetching gateway payments by date")
	defer span.End()

	start, end := DayBounds(day)
	span.SetAttributes(attribute.String("payment.source", source), attribute.String("payment.day", start.Format(time.DateOnly)))

	rows, err := d.Conn.QueryContext(ctx, selectPaymentColumns+`
		WHERE payment_method = $1 AND paid_at >= $2 AND paid_at < $3
		ORDER BY paid_at, payment_id
	`, source, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve gateway payments", err)
	}
	defer rows.Close()

	return scanPayments(rows)
}

// FindGatewayPaymentsSince returns every payment of the given gateway paid at or after since.
func (d Datasource) FindGatewayPaymentsSince(ctx context.Context, source string, since time.Time) ([]model.PaymentRecord, error) {
	ctx, span := otel.Tracer("Payment").Start(ctx, "Fetching recent gateway payments")
	defer span.End()

	span.SetAttributes(attribute.String("payment.source", source), attribute.String("payment.since", since.Format(time.RFC3339)))

	rows, err := d.Conn.QueryContext(ctx, selectPaymentColumns+`
		WHERE payment_method = $1 AND paid_at >= $2
		ORDER BY paid_at, payment_id
	`, source, since)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve recent gateway payments", err)
	}
	defer rows.Close()

	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]model.PaymentRecord, error) {
	payments := []model.PaymentRecord{}
	for rows.Next() {
		var (
			p          model.PaymentRecord
			orderCode  sql.NullInt64
			status     string
			refundedAt sql.NullTime
		)
		err := rows.Scan(&p.PaymentID, &orderCode, &p.Amount, &p.PaymentMethod, &status, &p.PaidAt, &refundedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payment data", err)
		}
		if orderCode.Valid {
			code := orderCode.Int64
			p.OrderCode = &code
		}
		if refundedAt.Valid {
			at := refundedAt.Time
			p.RefundedAt = &at
		}
		p.Status = model.PaymentStatus(status)
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over payments", err)
	}
	return payments, nil
}
