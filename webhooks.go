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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/internal/notification"
)

// NewWebhook is the body posted to the configured webhook URL.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

var webhookClient = &http.Client{Timeout: 15 * time.Second}

func processHTTP(ctx context.Context, conf config.WebhookConfig, data NewWebhook) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.Url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range conf.Headers {
		req.Header.Set(key, value)
	}

	resp, err := webhookClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status code %d", resp.StatusCode)
	}

	logrus.WithField("event", data.Event).Info("webhook notification sent")
	return nil
}

// SendWebhook enqueues a webhook delivery on the alert queue. It is a no-op
// when no webhook URL is configured.
func (q *Queue) SendWebhook(newWebhook NewWebhook) error {
	if !q.webhookEnabled {
		return nil
	}

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeAlertWebhook, payload, asynq.Queue(q.alertQueue), asynq.MaxRetry(5))
	info, err := q.Client.Enqueue(task)
	if err != nil {
		logrus.WithError(err).WithField("event", newWebhook.Event).Error("failed to enqueue webhook")
		return err
	}
	logrus.Debugf("webhook %s enqueued as %s", newWebhook.Event, info.ID)
	return nil
}

// ProcessWebhook delivers a queued webhook. A failed delivery is returned so
// asynq retries it.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("Error unmarshaling task payload: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	logrus.Infof("Processing webhook: %s", payload.Event)
	return processHTTP(ctx, conf.Notification.Webhook, payload)
}

// SendSlackAlert enqueues a Slack delivery of alert on the alert queue. It is
// a no-op when no Slack webhook is configured.
func (q *Queue) SendSlackAlert(alert ReconciliationAlert) error {
	if !q.slackEnabled {
		return nil
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeSlackAlert, payload, asynq.Queue(q.alertQueue), asynq.MaxRetry(3))
	info, err := q.Client.Enqueue(task)
	if err != nil {
		logrus.WithError(err).WithField("payment_id", alert.PaymentID).Error("failed to enqueue slack alert")
		return err
	}
	logrus.Debugf("slack alert for payment %d enqueued as %s", alert.PaymentID, info.ID)
	return nil
}

// ProcessSlackAlert posts a queued alert to Slack. A failed post is returned
// so asynq retries it.
func ProcessSlackAlert(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	webhookURL := conf.Notification.Slack.WebhookUrl
	if webhookURL == "" {
		return nil
	}

	var alert ReconciliationAlert
	if err := json.Unmarshal(task.Payload(), &alert); err != nil {
		logrus.Errorf("Error unmarshaling slack alert payload: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := notification.PostSlack(ctx, webhookURL, slackAlertMessage(alert)); err != nil {
		alertFailures.WithLabelValues("slack").Inc()
		return fmt.Errorf("slack alert for payment %d: %w", alert.PaymentID, err)
	}
	return nil
}
