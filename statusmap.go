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
	"strings"

	"github.com/blnkfinance/payrecon/model"
	"github.com/sirupsen/logrus"
)

var gatewayStatusTable = map[string]model.PaymentStatus{
	"PAID":       model.PaymentStatusCompleted,
	"CANCELLED":  model.PaymentStatusCancelled,
	"PENDING":    model.PaymentStatusPending,
	"PROCESSING": model.PaymentStatusPending,
	"EXPIRED":    model.PaymentStatusCancelled,
	"FAILED":     model.PaymentStatusFailed,
}

// MapGatewayStatus translates a raw gateway status into the internal status a
// payment should hold. Unknown values map to PENDING and known reports false.
func MapGatewayStatus(raw string) (status model.PaymentStatus, known bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if status, ok := gatewayStatusTable[key]; ok {
		return status, true
	}

	logrus.WithField("gateway_status", raw).Warn("unmapped gateway status, defaulting to PENDING")
	statusMappingDefaults.Inc()
	return model.PaymentStatusPending, false
}
