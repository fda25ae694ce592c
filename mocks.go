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

	"github.com/stretchr/testify/mock"

	"github.com/blnkfinance/payrecon/model"
)

// MockGateway is a testify mock of GatewayQuery.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) QueryByReference(ctx context.Context, orderCode int64) (*model.GatewayRecord, error) {
	args := m.Called(ctx, orderCode)
	record, _ := args.Get(0).(*model.GatewayRecord)
	return record, args.Error(1)
}

// MockAlertSink is a testify mock of AlertSink.
type MockAlertSink struct {
	mock.Mock
}

func (m *MockAlertSink) Raise(ctx context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error {
	args := m.Called(ctx, payment, result)
	return args.Error(0)
}
