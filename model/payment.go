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

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the internal status vocabulary of the payment subsystem.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// PaymentMethodPayOS tags payments that originated from the PayOS gateway.
const PaymentMethodPayOS = "PAYOS"

// PaymentRecord is a read-only view of a row owned by the payment subsystem.
// OrderCode is the reference shared with the gateway and may be absent.
type PaymentRecord struct {
	PaymentID     int64           `json:"payment_id"`
	OrderCode     *int64          `json:"order_code,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Status        PaymentStatus   `json:"status"`
	PaidAt        time.Time       `json:"paid_at"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
}

// HasOrderCode reports whether the record carries a gateway reference.
func (p PaymentRecord) HasOrderCode() bool {
	return p.OrderCode != nil
}
