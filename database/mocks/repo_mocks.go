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

package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/payrecon/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Payment methods

func (m *MockDataSource) FindGatewayPaymentsByDate(ctx context.Context, source string, day time.Time) ([]model.PaymentRecord, error) {
	args := m.Called(ctx, source, day)
	payments, _ := args.Get(0).([]model.PaymentRecord)
	return payments, args.Error(1)
}

func (m *MockDataSource) FindGatewayPaymentsSince(ctx context.Context, source string, since time.Time) ([]model.PaymentRecord, error) {
	args := m.Called(ctx, source, since)
	payments, _ := args.Get(0).([]model.PaymentRecord)
	return payments, args.Error(1)
}

// Reconciliation methods

func (m *MockDataSource) CreateRun(ctx context.Context, runDate time.Time, source string, candidateCount int) (string, error) {
	args := m.Called(ctx, runDate, source, candidateCount)
	return args.String(0), args.Error(1)
}

func (m *MockDataSource) AppendDetail(ctx context.Context, runID string, payment model.PaymentRecord, result model.ReconciliationResult) error {
	args := m.Called(ctx, runID, payment, result)
	return args.Error(0)
}

func (m *MockDataSource) FinalizeRun(ctx context.Context, runID string, matched, unmatched, discrepancy int, outcome model.RunOutcome) error {
	args := m.Called(ctx, runID, matched, unmatched, discrepancy, outcome)
	return args.Error(0)
}

func (m *MockDataSource) GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*model.ReconciliationRun)
	return run, args.Error(1)
}

func (m *MockDataSource) ListRuns(ctx context.Context, from, to time.Time, limit, offset int) ([]*model.ReconciliationRun, error) {
	args := m.Called(ctx, from, to, limit, offset)
	runs, _ := args.Get(0).([]*model.ReconciliationRun)
	return runs, args.Error(1)
}

func (m *MockDataSource) GetRunDetails(ctx context.Context, runID string) ([]*model.ReconciliationDetail, error) {
	args := m.Called(ctx, runID)
	details, _ := args.Get(0).([]*model.ReconciliationDetail)
	return details, args.Error(1)
}

func (m *MockDataSource) TallyRunDetails(ctx context.Context, runID string) (model.RunTally, error) {
	args := m.Called(ctx, runID)
	tally, _ := args.Get(0).(model.RunTally)
	return tally, args.Error(1)
}
