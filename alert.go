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
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/internal/notification"
	"github.com/blnkfinance/payrecon/model"
)

const EventReconciliationAlert = "reconciliation.alert"

// ReconciliationAlert is the payload delivered to every alert sink.
type ReconciliationAlert struct {
	PaymentID       int64                      `json:"payment_id"`
	OrderCode       *int64                     `json:"order_code,omitempty"`
	Amount          decimal.Decimal            `json:"amount"`
	InternalStatus  model.PaymentStatus        `json:"internal_status"`
	Status          model.ReconciliationStatus `json:"status"`
	DiscrepancyType model.DiscrepancyType      `json:"discrepancy_type,omitempty"`
	Message         string                     `json:"message"`
	DetectedAt      time.Time                  `json:"detected_at"`
}

func NewReconciliationAlert(payment model.PaymentRecord, result model.ReconciliationResult) ReconciliationAlert {
	return ReconciliationAlert{
		PaymentID:       payment.PaymentID,
		OrderCode:       payment.OrderCode,
		Amount:          payment.Amount,
		InternalStatus:  payment.Status,
		Status:          result.Status,
		DiscrepancyType: result.DiscrepancyType,
		Message:         result.Message,
		DetectedAt:      time.Now().UTC(),
	}
}

// safeRaise delivers an alert without letting a sink failure, or a sink
// panic, reach the caller. Sinks run on a context detached from the job and
// bounded by alertTimeout. It reports whether every sink accepted the alert.
func (r *Reconciler) safeRaise(ctx context.Context, payment model.PaymentRecord, result model.ReconciliationResult) (delivered bool) {
	defer func() {
		if rec := recover(); rec != nil {
			alertFailures.WithLabelValues("panic").Inc()
			logrus.WithField("payment_id", payment.PaymentID).Errorf("alert sink panicked: %v", rec)
			delivered = false
		}
	}()

	raiseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.alertTimeout)
	defer cancel()

	if err := r.alerts.Raise(raiseCtx, payment, result); err != nil {
		logrus.WithError(err).WithField("payment_id", payment.PaymentID).Error("failed to raise reconciliation alert")
		return false
	}
	return true
}

// LogSink writes alerts to the log.
type LogSink struct{}

func (LogSink) Raise(_ context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error {
	logrus.WithFields(logrus.Fields{
		"payment_id":       payment.PaymentID,
		"order_code":       orderCodeField(payment.OrderCode),
		"status":           result.Status,
		"discrepancy_type": result.DiscrepancyType,
	}).Warn("🚨 reconciliation alert: " + result.Message)
	return nil
}

// SlackSink queues alerts for delivery to Slack by the alert workers.
type SlackSink struct {
	Queue *Queue
}

func (s SlackSink) Raise(_ context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error {
	if err := s.Queue.SendSlackAlert(NewReconciliationAlert(payment, result)); err != nil {
		alertFailures.WithLabelValues("slack").Inc()
		return fmt.Errorf("slack alert: %w", err)
	}
	return nil
}

func slackAlertMessage(alert ReconciliationAlert) notification.Message {
	orderCode := "none"
	if alert.OrderCode != nil {
		orderCode = strconv.FormatInt(*alert.OrderCode, 10)
	}

	return notification.Message{
		Title: "Reconciliation Alert 🚨",
		Fields: []notification.Field{
			{Name: "Payment", Value: strconv.FormatInt(alert.PaymentID, 10)},
			{Name: "Order Code", Value: orderCode},
			{Name: "Result", Value: fmt.Sprintf("%s %s", alert.Status, alert.DiscrepancyType)},
			{Name: "Detail", Value: alert.Message},
		},
	}
}

// WebhookSink queues alerts for delivery to the configured webhook.
type WebhookSink struct {
	Queue *Queue
}

func (s WebhookSink) Raise(_ context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error {
	err := s.Queue.SendWebhook(NewWebhook{
		Event:   EventReconciliationAlert,
		Payload: NewReconciliationAlert(payment, result),
	})
	if err != nil {
		alertFailures.WithLabelValues("webhook").Inc()
		return fmt.Errorf("webhook alert: %w", err)
	}
	return nil
}

// PubSubSink publishes alerts to a Google Cloud Pub/Sub topic.
type PubSubSink struct {
	Topic *pubsub.Topic
}

func (s PubSubSink) Raise(ctx context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error {
	data, err := json.Marshal(NewReconciliationAlert(payment, result))
	if err != nil {
		return err
	}

	res := s.Topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":            EventReconciliationAlert,
			"discrepancy_type": string(result.DiscrepancyType),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		alertFailures.WithLabelValues("pubsub").Inc()
		return fmt.Errorf("pubsub alert: %w", err)
	}
	return nil
}

// MultiSink fans an alert out to every sink. Each sink is tried even when an
// earlier one fails.
type MultiSink []AlertSink

func (m MultiSink) Raise(ctx context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error {
	var errs []error
	for _, sink := range m {
		if err := raiseRecovered(ctx, sink, payment, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func raiseRecovered(ctx context.Context, sink AlertSink, payment model.PaymentRecord, result model.ReconciliationResult) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			alertFailures.WithLabelValues("panic").Inc()
			err = fmt.Errorf("alert sink %T panicked: %v", sink, rec)
		}
	}()
	return sink.Raise(ctx, payment, result)
}

// buildAlertSinks assembles the configured sinks. The log sink is always present.
func buildAlertSinks(ctx context.Context, cnf *config.Configuration, queue *Queue) (AlertSink, []func() error, error) {
	sinks := MultiSink{LogSink{}}
	var closers []func() error

	if cnf.Notification.Slack.WebhookUrl != "" && queue != nil {
		sinks = append(sinks, SlackSink{Queue: queue})
	}
	if cnf.Notification.Webhook.Url != "" && queue != nil {
		sinks = append(sinks, WebhookSink{Queue: queue})
	}

	ps := cnf.Notification.PubSub
	if ps.ProjectID != "" && ps.TopicID != "" {
		var opts []option.ClientOption
		if ps.CredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(ps.CredentialsJSON)))
		}
		client, err := pubsub.NewClient(ctx, ps.ProjectID, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating pubsub client: %w", err)
		}
		topic := client.Topic(ps.TopicID)
		sinks = append(sinks, PubSubSink{Topic: topic})
		closers = append(closers, func() error {
			topic.Stop()
			return client.Close()
		})
	}

	return sinks, closers, nil
}
