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
	"fmt"
	"time"

	"github.com/blnkfinance/payrecon/gateway"
	"github.com/blnkfinance/payrecon/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Engine compares one payment record against the gateway's view of it.
// It holds no state between calls.
type Engine struct {
	gateway GatewayQuery
	timeout time.Duration
}

func NewEngine(gateway GatewayQuery, timeout time.Duration) *Engine {
	return &Engine{gateway: gateway, timeout: timeout}
}

type gatewayReply struct {
	record *model.GatewayRecord
	err    error
}

// Reconcile classifies payment. The first matching rule wins:
// missing order code, gateway not found, amount mismatch, status mismatch,
// then matched. Any failure along the way, a panic included, becomes a
// RECONCILIATION_ERROR discrepancy; Reconcile never returns an error.
func (e *Engine) Reconcile(ctx context.Context, payment model.PaymentRecord) (result model.ReconciliationResult) {
	ctx, span := otel.Tracer("Engine").Start(ctx, "Reconciling payment")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.id", payment.PaymentID))

	defer func() {
		if rec := recover(); rec != nil {
			result = errorResult(fmt.Errorf("panic: %v", rec))
		}
		if result.Status == model.ReconciliationDiscrepancy && result.DiscrepancyType == model.DiscrepancyReconciliationError {
			logrus.WithField("payment_id", payment.PaymentID).Error(result.Message)
		}
		span.SetAttributes(
			attribute.String("reconciliation.status", string(result.Status)),
			attribute.String("reconciliation.discrepancy_type", string(result.DiscrepancyType)),
		)
		reconciliationResults.WithLabelValues(string(result.Status), string(result.DiscrepancyType)).Inc()
	}()

	if !payment.HasOrderCode() {
		return model.ReconciliationResult{
			Status:          model.ReconciliationUnmatched,
			DiscrepancyType: model.DiscrepancyMissingOrderCode,
			Message:         "Payment has no order code",
		}
	}

	record, err := e.query(ctx, *payment.OrderCode)
	if gateway.IsNotFound(err) || (err == nil && record == nil) {
		return model.ReconciliationResult{
			Status:          model.ReconciliationUnmatched,
			DiscrepancyType: model.DiscrepancyGatewayNotFound,
			Message:         fmt.Sprintf("Payment with order code %d not found in gateway", *payment.OrderCode),
		}
	}
	if err != nil {
		return errorResult(err)
	}

	return compare(payment, record)
}

// query bounds the gateway call by the engine timeout even when the gateway
// implementation ignores its context.
func (e *Engine) query(ctx context.Context, orderCode int64) (*model.GatewayRecord, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	replies := make(chan gatewayReply, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				replies <- gatewayReply{err: fmt.Errorf("gateway panic: %v", rec)}
			}
		}()
		record, err := e.gateway.QueryByReference(ctx, orderCode)
		replies <- gatewayReply{record: record, err: err}
	}()

	var reply gatewayReply
	select {
	case reply = <-replies:
	case <-ctx.Done():
		reply = gatewayReply{err: fmt.Errorf("gateway query for order %d: %w", orderCode, ctx.Err())}
	}

	outcome := "found"
	switch {
	case gateway.IsNotFound(reply.err), reply.err == nil && reply.record == nil:
		outcome = "not_found"
	case reply.err != nil:
		outcome = "error"
	}
	gatewayQueryDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())

	return reply.record, reply.err
}

func compare(payment model.PaymentRecord, record *model.GatewayRecord) model.ReconciliationResult {
	if !payment.Amount.Equal(decimal.NewFromInt(record.Amount)) {
		return model.ReconciliationResult{
			Status:          model.ReconciliationDiscrepancy,
			DiscrepancyType: model.DiscrepancyAmountMismatch,
			Message:         fmt.Sprintf("Amount mismatch: Internal=%s, Gateway=%d", payment.Amount.String(), record.Amount),
		}
	}

	expected, _ := MapGatewayStatus(record.Status)
	if payment.Status != expected {
		return model.ReconciliationResult{
			Status:          model.ReconciliationDiscrepancy,
			DiscrepancyType: model.DiscrepancyStatusMismatch,
			Message:         fmt.Sprintf("Status mismatch: Internal=%s, Gateway=%s", payment.Status, record.Status),
		}
	}

	return model.ReconciliationResult{
		Status:  model.ReconciliationMatched,
		Message: "Payment matches gateway data",
	}
}

func errorResult(err error) model.ReconciliationResult {
	return model.ReconciliationResult{
		Status:          model.ReconciliationDiscrepancy,
		DiscrepancyType: model.DiscrepancyReconciliationError,
		Message:         fmt.Sprintf("Error during reconciliation: %v", err),
	}
}
