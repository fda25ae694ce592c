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
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/database/mocks"
)

func optionValues(opts []asynq.Option) map[asynq.OptionType]interface{} {
	values := make(map[asynq.OptionType]interface{}, len(opts))
	for _, opt := range opts {
		values[opt.Type()] = opt.Value()
	}
	return values
}

func TestScheduledJobs(t *testing.T) {
	cnf := testConfig()
	jobs := ScheduledJobs(cnf)
	require.Len(t, jobs, 2)

	sweep, recent := jobs[0], jobs[1]
	assert.Equal(t, TypeFullSweep, sweep.Task.Type())
	assert.Equal(t, config.DEFAULT_FULL_SWEEP_CRON, sweep.Cronspec)
	assert.Equal(t, TypeRecentWindow, recent.Task.Type())
	assert.Equal(t, config.DEFAULT_RECENT_WINDOW_CRON, recent.Cronspec)

	opts := optionValues(sweep.Opts)
	assert.Equal(t, config.DEFAULT_RECONCILIATION_QUEUE, opts[asynq.QueueOpt])
	assert.Equal(t, 0, opts[asynq.MaxRetryOpt])
	assert.Equal(t, 60*time.Second, opts[asynq.TimeoutOpt])

	opts = optionValues(recent.Opts)
	assert.Equal(t, 0, opts[asynq.MaxRetryOpt])
	assert.Equal(t, 30*time.Second, opts[asynq.TimeoutOpt])
}

func TestNewScheduler(t *testing.T) {
	q, mr := newTestQueue(t, "")
	assert.Equal(t, map[string]int{config.DEFAULT_RECONCILIATION_QUEUE: 3, config.DEFAULT_ALERT_QUEUE: 1}, q.Queues())

	scheduler, err := NewScheduler(asynq.RedisClientOpt{Addr: mr.Addr()}, testConfig())
	require.NoError(t, err)
	require.NotNil(t, scheduler)

	cnf := testConfig()
	cnf.Reconciliation.FullSweepCron = "every other tuesday"
	_, err = NewScheduler(asynq.RedisClientOpt{Addr: mr.Addr()}, cnf)
	assert.ErrorContains(t, err, TypeFullSweep)
}

func TestHandleFullSweep_FailureIsNotRetried(t *testing.T) {
	ds := new(mocks.MockDataSource)
	ds.On("FindGatewayPaymentsByDate", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	r, _, _ := newTestReconciler(t, ds, new(MockGateway), nil)

	err := r.HandleFullSweep(context.Background(), asynq.NewTask(TypeFullSweep, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleRecentWindow(t *testing.T) {
	ds := new(mocks.MockDataSource)
	ds.On("FindGatewayPaymentsSince", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
	ds.On("FindGatewayPaymentsSince", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	r, _, _ := newTestReconciler(t, ds, new(MockGateway), nil)

	assert.NoError(t, r.HandleRecentWindow(context.Background(), asynq.NewTask(TypeRecentWindow, nil)))

	err := r.HandleRecentWindow(context.Background(), asynq.NewTask(TypeRecentWindow, nil))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRegisterHandlers(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r, _, _ := newTestReconciler(t, ds, new(MockGateway), nil)

	mux := asynq.NewServeMux()
	RegisterHandlers(mux, r)

	for _, taskType := range []string{TypeFullSweep, TypeRecentWindow, TypeAlertWebhook, TypeSlackAlert} {
		_, pattern := mux.Handler(asynq.NewTask(taskType, nil))
		assert.Equal(t, taskType, pattern)
	}
}
