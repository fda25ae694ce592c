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
	"time"

	"github.com/blnkfinance/payrecon/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	payment        // Read-only access to gateway-originated payments
	reconciliation // Run ledger and audit history
}

// payment defines the read-only queries over the payment subsystem's table.
type payment interface {
	FindGatewayPaymentsByDate(ctx context.Context, source string, day time.Time) ([]model.PaymentRecord, error) // Payments paid during the calendar day containing day
	FindGatewayPaymentsSince(ctx context.Context, source string, since time.Time) ([]model.PaymentRecord, error) // Payments paid at or after since
}

// reconciliation defines the run ledger and its audit queries.
type reconciliation interface {
	CreateRun(ctx context.Context, runDate time.Time, source string, candidateCount int) (string, error)
	AppendDetail(ctx context.Context, runID string, payment model.PaymentRecord, result model.ReconciliationResult) error
	FinalizeRun(ctx context.Context, runID string, matched, unmatched, discrepancy int, outcome model.RunOutcome) error
	GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error)
	ListRuns(ctx context.Context, from, to time.Time, limit, offset int) ([]*model.ReconciliationRun, error)
	GetRunDetails(ctx context.Context, runID string) ([]*model.ReconciliationDetail, error)
	TallyRunDetails(ctx context.Context, runID string) (model.RunTally, error)
}
