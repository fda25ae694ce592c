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

import "errors"

// ErrGatewayRecordNotFound is returned by a gateway query when the gateway has
// no record for the requested order code.
var ErrGatewayRecordNotFound = errors.New("gateway record not found")

// GatewayRecord is the gateway's view of one payment. It is never persisted.
type GatewayRecord struct {
	ID                 string `json:"id"`
	OrderCode          int64  `json:"orderCode"`
	Amount             int64  `json:"amount"`
	AmountPaid         int64  `json:"amountPaid"`
	AmountRemaining    int64  `json:"amountRemaining"`
	Status             string `json:"status"`
	CreatedAt          string `json:"createdAt"`
	CanceledAt         string `json:"canceledAt"`
	CancellationReason string `json:"cancellationReason"`
}
