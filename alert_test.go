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
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/model"
)

var amountMismatch = model.ReconciliationResult{
	Status:          model.ReconciliationDiscrepancy,
	DiscrepancyType: model.DiscrepancyAmountMismatch,
	Message:         "Amount mismatch: Internal=50000, Gateway=45000",
}

func TestNewReconciliationAlert(t *testing.T) {
	p := payment(42, ptr.Int64(4242), 50000, model.PaymentStatusCompleted)

	alert := NewReconciliationAlert(p, amountMismatch)
	assert.Equal(t, int64(42), alert.PaymentID)
	assert.Equal(t, int64(4242), *alert.OrderCode)
	assert.True(t, alert.Amount.Equal(p.Amount))
	assert.Equal(t, model.PaymentStatusCompleted, alert.InternalStatus)
	assert.Equal(t, model.DiscrepancyAmountMismatch, alert.DiscrepancyType)
	assert.Equal(t, amountMismatch.Message, alert.Message)
	assert.False(t, alert.DetectedAt.IsZero())
}

func TestMultiSink_TriesEverySink(t *testing.T) {
	p := payment(1, nil, 1000, model.PaymentStatusCompleted)

	broken := new(MockAlertSink)
	broken.On("Raise", mock.Anything, p, amountMismatch).Return(errors.New("slack is down"))
	panicking := new(MockAlertSink)
	panicking.On("Raise", mock.Anything, p, amountMismatch).Run(func(mock.Arguments) { panic("boom") })
	healthy := new(MockAlertSink)
	healthy.On("Raise", mock.Anything, p, amountMismatch).Return(nil)

	err := MultiSink{broken, panicking, healthy}.Raise(context.Background(), p, amountMismatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack is down")
	assert.Contains(t, err.Error(), "panicked: boom")
	healthy.AssertExpectations(t)
}

func TestMultiSink_AllHealthy(t *testing.T) {
	p := payment(1, nil, 1000, model.PaymentStatusCompleted)
	sink := new(MockAlertSink)
	sink.On("Raise", mock.Anything, p, amountMismatch).Return(nil).Twice()

	assert.NoError(t, MultiSink{sink, LogSink{}, sink}.Raise(context.Background(), p, amountMismatch))
	sink.AssertExpectations(t)
}

const testSlackURL = "https://hooks.slack.com/services/T000/B000/XXXX"

func newSlackQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cnf := testConfig()
	cnf.Notification.Slack.WebhookUrl = testSlackURL

	q := NewQueue(asynq.RedisClientOpt{Addr: mr.Addr()}, cnf)
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestSlackSink_RaiseEnqueues(t *testing.T) {
	q, mr := newSlackQueue(t)

	p := payment(9, ptr.Int64(909), 50000, model.PaymentStatusCompleted)
	require.NoError(t, SlackSink{Queue: q}.Raise(context.Background(), p, amountMismatch))

	pending, err := mr.List("asynq:{" + config.DEFAULT_ALERT_QUEUE + "}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSlackSink_QueueUnavailable(t *testing.T) {
	q, mr := newSlackQueue(t)
	mr.Close()

	err := SlackSink{Queue: q}.Raise(context.Background(), payment(1, nil, 1, model.PaymentStatusPending), amountMismatch)
	assert.ErrorContains(t, err, "slack alert")
}

func TestSlackAlertMessage(t *testing.T) {
	alert := NewReconciliationAlert(payment(9, ptr.Int64(909), 50000, model.PaymentStatusCompleted), amountMismatch)

	msg := slackAlertMessage(alert)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "909")
	assert.Contains(t, string(raw), "AMOUNT_MISMATCH")

	alert.OrderCode = nil
	assert.Equal(t, "none", slackAlertMessage(alert).Fields[1].Value)
}

func TestWebhookSink_Raise(t *testing.T) {
	q, mr := newTestQueue(t, testWebhookURL)

	p := payment(5, ptr.Int64(55), 1000, model.PaymentStatusCompleted)
	require.NoError(t, WebhookSink{Queue: q}.Raise(context.Background(), p, amountMismatch))

	pending, err := mr.List("asynq:{" + config.DEFAULT_ALERT_QUEUE + "}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestPubSubSink_Raise(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "payrecon-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "reconciliation-alerts")
	require.NoError(t, err)
	defer topic.Stop()

	p := payment(3, ptr.Int64(303), 50000, model.PaymentStatusCompleted)
	require.NoError(t, PubSubSink{Topic: topic}.Raise(ctx, p, amountMismatch))

	messages := srv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, EventReconciliationAlert, messages[0].Attributes["event"])
	assert.Equal(t, string(model.DiscrepancyAmountMismatch), messages[0].Attributes["discrepancy_type"])

	var alert ReconciliationAlert
	require.NoError(t, json.Unmarshal(messages[0].Data, &alert))
	assert.Equal(t, int64(3), alert.PaymentID)
	assert.Equal(t, int64(303), *alert.OrderCode)
}

func TestBuildAlertSinks(t *testing.T) {
	cnf := testConfig()

	sinks, closers, err := buildAlertSinks(context.Background(), cnf, nil)
	require.NoError(t, err)
	assert.Empty(t, closers)
	assert.Equal(t, MultiSink{LogSink{}}, sinks)

	q, _ := newTestQueue(t, testWebhookURL)
	cnf.Notification.Slack.WebhookUrl = "https://hooks.slack.com/services/T000/B000/ZZZZ"
	cnf.Notification.Webhook.Url = testWebhookURL

	sinks, _, err = buildAlertSinks(context.Background(), cnf, q)
	require.NoError(t, err)
	multi, ok := sinks.(MultiSink)
	require.True(t, ok)
	require.Len(t, multi, 3)
	assert.IsType(t, SlackSink{}, multi[1])
	assert.IsType(t, WebhookSink{}, multi[2])
}
