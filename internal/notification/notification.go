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

package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/blnkfinance/payrecon/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Field is one labelled value rendered in a Slack message.
type Field struct {
	Name  string
	Value string
}

// Message is a Slack block message with a header and a list of fields.
type Message struct {
	Title  string
	Fields []Field
}

// WebhookSender delivers an event to the configured outbound webhook. It is
// registered by the root package so this package stays free of queue imports.
type WebhookSender func(event string, payload interface{}) error

var (
	webhookSender WebhookSender
	senderMu      sync.RWMutex

	httpClient = &http.Client{Timeout: 10 * time.Second}

	// retryPolicy controls Slack delivery retries.
	retryPolicy = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = 30 * time.Second
		return backoff.WithMaxRetries(b, 3)
	}
)

func RegisterWebhookSender(sender WebhookSender) {
	senderMu.Lock()
	defer senderMu.Unlock()
	webhookSender = sender
}

func registeredSender() WebhookSender {
	senderMu.RLock()
	defer senderMu.RUnlock()
	return webhookSender
}

func blocks(msg Message) map[string]interface{} {
	fields := make([]map[string]interface{}, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s:*\n%s", f.Name, f.Value),
		})
	}

	return map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type":  "plain_text",
					"text":  msg.Title,
					"emoji": true,
				},
			},
			{
				"type":   "section",
				"fields": fields,
			},
		},
	}
}

// PostSlack sends msg to a Slack incoming webhook. 5xx responses and transport
// errors are retried; 4xx responses are not.
func PostSlack(ctx context.Context, webhookURL string, msg Message) error {
	body, err := json.Marshal(blocks(msg))
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("slack returned status %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("slack returned status %d", resp.StatusCode))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(retryPolicy(), ctx))
}

func SlackNotification(err error) {
	conf, cErr := config.Fetch()
	if cErr != nil {
		logrus.Error(cErr)
		return
	}

	msg := Message{
		Title: fmt.Sprintf("Error From %s 🐞", conf.ProjectName),
		Fields: []Field{
			{Name: "Error", Value: err.Error()},
			{Name: "Time", Value: time.Now().Format(time.RFC822)},
		},
	}
	if sErr := PostSlack(context.Background(), conf.Notification.Slack.WebhookUrl, msg); sErr != nil {
		logrus.WithError(sErr).Error("failed to deliver slack error notification")
	}
}

// NotifyError logs systemError and forwards it to Slack and the registered
// webhook sender without blocking the caller.
func NotifyError(systemError error) {
	go notify(systemError)
}

func notify(systemError error) {
	logrus.Error(systemError)

	conf, err := config.Fetch()
	if err != nil {
		logrus.Error(err)
		return
	}

	if conf.Notification.Slack.WebhookUrl != "" {
		SlackNotification(systemError)
	}

	if sender := registeredSender(); sender != nil {
		payload := map[string]interface{}{
			"error":     systemError.Error(),
			"timestamp": time.Now().UTC(),
		}
		if err := sender("reconciliation.error", payload); err != nil {
			logrus.WithError(err).Error("failed to send error webhook")
		}
	}
}
