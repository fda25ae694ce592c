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

package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/model"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "https://api-merchant.payos.test"

func newTestClient(t *testing.T) *PayOSClient {
	client := NewPayOSClient(config.GatewayConfig{
		Endpoint:       testEndpoint,
		ClientID:       "client-123",
		APIKey:         "key-456",
		TimeoutSeconds: 2,
	})
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestQueryByReference_Success(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/v2/payment-requests/123456",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "client-123", req.Header.Get("x-client-id"))
			assert.Equal(t, "key-456", req.Header.Get("x-api-key"))
			return httpmock.NewStringResponse(200, `{
				"code": "00",
				"desc": "success",
				"data": {
					"id": "pl_1",
					"orderCode": 123456,
					"amount": 150000,
					"amountPaid": 150000,
					"amountRemaining": 0,
					"status": "PAID",
					"createdAt": "2024-03-09T10:00:00+07:00"
				}
			}`), nil
		})

	record, err := client.QueryByReference(context.Background(), 123456)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), record.OrderCode)
	assert.Equal(t, int64(150000), record.Amount)
	assert.Equal(t, "PAID", record.Status)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestQueryByReference_NotFoundStatus(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/v2/payment-requests/1",
		httpmock.NewStringResponder(404, `{"code":"101","desc":"not found"}`))

	record, err := client.QueryByReference(context.Background(), 1)
	assert.Nil(t, record)
	assert.True(t, IsNotFound(err))
}

func TestQueryByReference_NullData(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/v2/payment-requests/2",
		httpmock.NewStringResponder(200, `{"code":"101","desc":"Payment request does not exist","data":null}`))

	record, err := client.QueryByReference(context.Background(), 2)
	assert.Nil(t, record)
	assert.True(t, errors.Is(err, model.ErrGatewayRecordNotFound))
	assert.ErrorContains(t, err, "101")
}

func TestQueryByReference_ServerError(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/v2/payment-requests/3",
		httpmock.NewStringResponder(502, "bad gateway"))

	record, err := client.QueryByReference(context.Background(), 3)
	assert.Nil(t, record)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.ErrorContains(t, err, "502")
}

func TestQueryByReference_MalformedJSON(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/v2/payment-requests/4",
		httpmock.NewStringResponder(200, `{"code":"00","data":`))

	_, err := client.QueryByReference(context.Background(), 4)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.ErrorContains(t, err, "failed to parse response JSON")
}

func TestQueryByReference_TransportError(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/v2/payment-requests/5",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := client.QueryByReference(context.Background(), 5)
	assert.ErrorContains(t, err, "request failed")
}

func TestNewPayOSClient_DefaultTimeout(t *testing.T) {
	client := NewPayOSClient(config.GatewayConfig{Endpoint: testEndpoint})
	assert.Equal(t, config.DEFAULT_GATEWAY_TIMEOUT*time.Second, client.httpClient.Timeout)
}
