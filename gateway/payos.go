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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// codeSuccess is the envelope code PayOS returns on a successful lookup.
const codeSuccess = "00"

type envelope struct {
	Code string               `json:"code"`
	Desc string               `json:"desc"`
	Data *model.GatewayRecord `json:"data"`
}

// PayOSClient looks up payment requests on the PayOS API.
type PayOSClient struct {
	endpoint   string
	clientID   string
	apiKey     string
	httpClient *http.Client
}

func NewPayOSClient(cfg config.GatewayConfig) *PayOSClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DEFAULT_GATEWAY_TIMEOUT * time.Second
	}
	return &PayOSClient{
		endpoint: cfg.Endpoint,
		clientID: cfg.ClientID,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// QueryByReference fetches the gateway's view of an order. A missing order
// yields model.ErrGatewayRecordNotFound.
func (c *PayOSClient) QueryByReference(ctx context.Context, orderCode int64) (*model.GatewayRecord, error) {
	ctx, span := otel.Tracer("Gateway").Start(ctx, "Querying PayOS payment request")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.order_code", orderCode))

	url := c.endpoint + "/v2/payment-requests/" + strconv.FormatInt(orderCode, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func parseResponse(resp *http.Response) (*model.GatewayRecord, error) {
	if resp.StatusCode == http.StatusNotFound {
		return nil, model.ErrGatewayRecordNotFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned error status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if env.Data == nil {
		if env.Code != "" && env.Code != codeSuccess {
			return nil, fmt.Errorf("%w: %s (%s)", model.ErrGatewayRecordNotFound, env.Desc, env.Code)
		}
		return nil, model.ErrGatewayRecordNotFound
	}

	return env.Data, nil
}

// IsNotFound reports whether err means the gateway has no such order.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrGatewayRecordNotFound)
}
