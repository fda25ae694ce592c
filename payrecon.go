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
	"embed"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/database"
	"github.com/blnkfinance/payrecon/gateway"
	redis_db "github.com/blnkfinance/payrecon/internal/redis-db"
	"github.com/blnkfinance/payrecon/internal/notification"
	"github.com/blnkfinance/payrecon/model"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// PaymentSource yields gateway-originated payment records. It is read-only.
type PaymentSource interface {
	FindGatewayPaymentsByDate(ctx context.Context, source string, day time.Time) ([]model.PaymentRecord, error)
	FindGatewayPaymentsSince(ctx context.Context, source string, since time.Time) ([]model.PaymentRecord, error)
}

// GatewayQuery looks up the gateway's record for an order. A missing order is
// reported as model.ErrGatewayRecordNotFound or a nil record.
type GatewayQuery interface {
	QueryByReference(ctx context.Context, orderCode int64) (*model.GatewayRecord, error)
}

// RunLedger persists the audit trail of full-sweep runs.
type RunLedger interface {
	CreateRun(ctx context.Context, runDate time.Time, source string, candidateCount int) (string, error)
	AppendDetail(ctx context.Context, runID string, payment model.PaymentRecord, result model.ReconciliationResult) error
	FinalizeRun(ctx context.Context, runID string, matched, unmatched, discrepancy int, outcome model.RunOutcome) error
}

// AlertSink receives non-matched results from the recent-window job.
// Delivery is best effort.
type AlertSink interface {
	Raise(ctx context.Context, payment model.PaymentRecord, result model.ReconciliationResult) error
}

const (
	defaultAlertTimeout    = 5 * time.Second
	defaultFinalizeTimeout = 30 * time.Second
)

// Reconciler runs the two reconciliation cadences.
type Reconciler struct {
	payments PaymentSource
	ledger   RunLedger
	engine   *Engine
	alerts   AlertSink
	redis    redis.UniversalClient

	source          string
	location        *time.Location
	lookback        time.Duration
	markerTTL       time.Duration
	recentMarkerTTL time.Duration
	alertTimeout    time.Duration
	finalizeTimeout time.Duration
	detailRetries   int

	detailBackoff func() backoff.BackOff
	notify        func(error)
}

func NewReconciler(payments PaymentSource, ledger RunLedger, engine *Engine, alerts AlertSink, redisClient redis.UniversalClient, cnf *config.Configuration) *Reconciler {
	if alerts == nil {
		alerts = LogSink{}
	}
	return &Reconciler{
		payments:        payments,
		ledger:          ledger,
		engine:          engine,
		alerts:          alerts,
		redis:           redisClient,
		source:          cnf.Gateway.Name,
		location:        cnf.Location(),
		lookback:        cnf.RecentLookback(),
		markerTTL:       cnf.LockTTL(),
		recentMarkerTTL: cnf.RecentLockTTL(),
		alertTimeout:    defaultAlertTimeout,
		finalizeTimeout: defaultFinalizeTimeout,
		detailRetries:   cnf.Reconciliation.DetailWriteRetries,
		detailBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		notify: notification.NotifyError,
	}
}

// Payrecon wires the datasource, gateway client, queue and alert sinks.
type Payrecon struct {
	Reconciler *Reconciler
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	closers    []func() error
}

// NewPayrecon builds a Payrecon from the loaded configuration.
func NewPayrecon(db database.IDataSource) (*Payrecon, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewRedisClient(cnf.Redis.Dns, cnf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	queue := NewQueue(redisClient.AsynqOpt(), cnf)
	notification.RegisterWebhookSender(func(event string, payload interface{}) error {
		return queue.SendWebhook(NewWebhook{Event: event, Payload: payload})
	})

	p := &Payrecon{
		queue:      queue,
		redis:      redisClient.Client(),
		datasource: db,
		closers:    []func() error{queue.Close, redisClient.Client().Close},
	}

	sinks, closeSinks, err := buildAlertSinks(context.Background(), cnf, queue)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.closers = append(p.closers, closeSinks...)

	engine := NewEngine(gateway.NewPayOSClient(cnf.Gateway), cnf.GatewayTimeout())
	p.Reconciler = NewReconciler(db, db, engine, sinks, p.redis, cnf)
	return p, nil
}

func (p *Payrecon) Queue() *Queue {
	return p.queue
}

func (p *Payrecon) Close() error {
	var firstErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}
