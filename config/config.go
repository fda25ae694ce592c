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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT                 = "5002"
	DEFAULT_GATEWAY_NAME         = "PAYOS"
	DEFAULT_GATEWAY_TIMEOUT      = 10
	DEFAULT_FULL_SWEEP_CRON      = "0 2 * * *"
	DEFAULT_RECENT_WINDOW_CRON   = "@every 30m"
	DEFAULT_RECENT_LOOKBACK_MINS = 120
	DEFAULT_TIMEZONE             = "Asia/Ho_Chi_Minh"
	DEFAULT_LOCK_TTL_SECONDS     = 7200
	DEFAULT_RECENT_LOCK_TTL_SECS = 1800
	DEFAULT_RECONCILIATION_QUEUE = "reconciliation"
	DEFAULT_ALERT_QUEUE          = "reconciliation_alerts"
	DEFAULT_DETAIL_WRITE_RETRIES = 3
	DEFAULT_MONITORING_PORT      = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"PAYRECON_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PAYRECON_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"PAYRECON_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYRECON_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PAYRECON_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PAYRECON_REDIS_SKIP_TLS_VERIFY"`
}

// GatewayConfig describes how to reach the payment gateway. Name doubles as the
// payment method tag used to select gateway-originated payments.
type GatewayConfig struct {
	Name           string `json:"name" envconfig:"PAYRECON_GATEWAY_NAME"`
	Endpoint       string `json:"endpoint" envconfig:"PAYRECON_GATEWAY_ENDPOINT"`
	ClientID       string `json:"client_id" envconfig:"PAYRECON_GATEWAY_CLIENT_ID"`
	APIKey         string `json:"api_key" envconfig:"PAYRECON_GATEWAY_API_KEY"`
	TimeoutSeconds int    `json:"timeout_seconds" envconfig:"PAYRECON_GATEWAY_TIMEOUT_SECONDS"`
}

type ReconciliationConfig struct {
	FullSweepCron         string `json:"full_sweep_cron" envconfig:"PAYRECON_FULL_SWEEP_CRON"`
	RecentWindowCron      string `json:"recent_window_cron" envconfig:"PAYRECON_RECENT_WINDOW_CRON"`
	RecentLookbackMinutes int    `json:"recent_lookback_minutes" envconfig:"PAYRECON_RECENT_LOOKBACK_MINUTES"`
	Timezone              string `json:"timezone" envconfig:"PAYRECON_TIMEZONE"`
	LockTTLSeconds        int    `json:"lock_ttl_seconds" envconfig:"PAYRECON_LOCK_TTL_SECONDS"`
	RecentLockTTLSeconds  int    `json:"recent_lock_ttl_seconds" envconfig:"PAYRECON_RECENT_LOCK_TTL_SECONDS"`
	Queue                 string `json:"queue" envconfig:"PAYRECON_RECONCILIATION_QUEUE"`
	AlertQueue            string `json:"alert_queue" envconfig:"PAYRECON_ALERT_QUEUE"`
	DetailWriteRetries    int    `json:"detail_write_retries" envconfig:"PAYRECON_DETAIL_WRITE_RETRIES"`
	MonitoringPort        string `json:"monitoring_port" envconfig:"PAYRECON_MONITORING_PORT"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PAYRECON_SLACK_WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"PAYRECON_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type PubSubConfig struct {
	ProjectID string `json:"project_id" envconfig:"PAYRECON_PUBSUB_PROJECT_ID"`
	TopicID   string `json:"topic_id" envconfig:"PAYRECON_PUBSUB_TOPIC_ID"`

	// CredentialsJSON is optional; application default credentials are used when empty.
	CredentialsJSON string `json:"credentials_json" envconfig:"PAYRECON_PUBSUB_CREDENTIALS_JSON"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
	PubSub  PubSubConfig  `json:"pubsub"`
}

type Configuration struct {
	ProjectName     string               `json:"project_name" envconfig:"PAYRECON_PROJECT_NAME"`
	Server          ServerConfig         `json:"server"`
	DataSource      DataSourceConfig     `json:"data_source"`
	Redis           RedisConfig          `json:"redis"`
	Gateway         GatewayConfig        `json:"gateway"`
	Reconciliation  ReconciliationConfig `json:"reconciliation"`
	Notification    Notification         `json:"notification"`
	EnableTelemetry bool                 `json:"enable_telemetry" envconfig:"PAYRECON_ENABLE_TELEMETRY"`
	OtelEndpoint    string               `json:"otel_endpoint" envconfig:"PAYRECON_OTEL_ENDPOINT"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("payrecon", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called payrecon.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Payment Reconciliation"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Gateway.Endpoint = strings.TrimRight(strings.TrimSpace(cnf.Gateway.Endpoint), "/")

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setGatewayDefaults()
	cnf.setReconciliationDefaults()

	return cnf.validate()
}

func (cnf *Configuration) setGatewayDefaults() {
	if cnf.Gateway.Name == "" {
		cnf.Gateway.Name = DEFAULT_GATEWAY_NAME
	}
	cnf.Gateway.Name = strings.ToUpper(strings.TrimSpace(cnf.Gateway.Name))
	if cnf.Gateway.TimeoutSeconds <= 0 {
		cnf.Gateway.TimeoutSeconds = DEFAULT_GATEWAY_TIMEOUT
	}
}

func (cnf *Configuration) setReconciliationDefaults() {
	r := &cnf.Reconciliation
	if r.FullSweepCron == "" {
		r.FullSweepCron = DEFAULT_FULL_SWEEP_CRON
	}
	if r.RecentWindowCron == "" {
		r.RecentWindowCron = DEFAULT_RECENT_WINDOW_CRON
	}
	if r.RecentLookbackMinutes <= 0 {
		r.RecentLookbackMinutes = DEFAULT_RECENT_LOOKBACK_MINS
	}
	if r.Timezone == "" {
		r.Timezone = DEFAULT_TIMEZONE
	}
	if r.LockTTLSeconds <= 0 {
		r.LockTTLSeconds = DEFAULT_LOCK_TTL_SECONDS
	}
	if r.RecentLockTTLSeconds <= 0 {
		r.RecentLockTTLSeconds = DEFAULT_RECENT_LOCK_TTL_SECS
	}
	if r.Queue == "" {
		r.Queue = DEFAULT_RECONCILIATION_QUEUE
	}
	if r.AlertQueue == "" {
		r.AlertQueue = DEFAULT_ALERT_QUEUE
	}
	if r.DetailWriteRetries <= 0 {
		r.DetailWriteRetries = DEFAULT_DETAIL_WRITE_RETRIES
	}
	if r.MonitoringPort == "" {
		r.MonitoringPort = DEFAULT_MONITORING_PORT
	}
}

func (cnf *Configuration) validate() error {
	err := validation.ValidateStruct(&cnf.Gateway,
		validation.Field(&cnf.Gateway.Endpoint, validation.Required.Error("gateway endpoint is required"), is.URL),
		validation.Field(&cnf.Gateway.ClientID, validation.Required.Error("gateway client id is required")),
		validation.Field(&cnf.Gateway.APIKey, validation.Required.Error("gateway api key is required")),
	)
	if err != nil {
		return err
	}

	return validation.ValidateStruct(&cnf.Reconciliation,
		validation.Field(&cnf.Reconciliation.Timezone, validation.By(func(value interface{}) error {
			_, err := time.LoadLocation(value.(string))
			return err
		})),
		validation.Field(&cnf.Reconciliation.RecentLookbackMinutes, validation.Max(24*60)),
	)
}

// Location returns the time zone used to compute calendar-day windows.
func (cnf *Configuration) Location() *time.Location {
	loc, err := time.LoadLocation(cnf.Reconciliation.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GatewayTimeout is the bound applied to every gateway query.
func (cnf *Configuration) GatewayTimeout() time.Duration {
	return time.Duration(cnf.Gateway.TimeoutSeconds) * time.Second
}

func (cnf *Configuration) RecentLookback() time.Duration {
	return time.Duration(cnf.Reconciliation.RecentLookbackMinutes) * time.Minute
}

func (cnf *Configuration) LockTTL() time.Duration {
	return time.Duration(cnf.Reconciliation.LockTTLSeconds) * time.Second
}

// RecentLockTTL bounds a recent-window run. It should not exceed the
// recent-window cadence so a crashed worker only costs one cycle.
func (cnf *Configuration) RecentLockTTL() time.Duration {
	return time.Duration(cnf.Reconciliation.RecentLockTTLSeconds) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
