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
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/payrecon/config"
)

const (
	TypeFullSweep    = "reconciliation:full_sweep"
	TypeRecentWindow = "reconciliation:recent_window"
	TypeAlertWebhook = "reconciliation:webhook"
	TypeSlackAlert   = "reconciliation:slack"
)

// Queue holds the asynq client used for webhook and Slack deliveries.
type Queue struct {
	Client *asynq.Client

	jobQueue       string
	alertQueue     string
	webhookEnabled bool
	slackEnabled   bool
}

func NewQueue(opt asynq.RedisClientOpt, conf *config.Configuration) *Queue {
	return &Queue{
		Client:         asynq.NewClient(opt),
		jobQueue:       conf.Reconciliation.Queue,
		alertQueue:     conf.Reconciliation.AlertQueue,
		webhookEnabled: conf.Notification.Webhook.Url != "",
		slackEnabled:   conf.Notification.Slack.WebhookUrl != "",
	}
}

// Queues returns the queue priorities for the worker server. Jobs run
// before alert deliveries.
func (q *Queue) Queues() map[string]int {
	return map[string]int{
		q.jobQueue:   3,
		q.alertQueue: 1,
	}
}

func (q *Queue) Close() error {
	return q.Client.Close()
}

// ScheduledJob is one periodic task registered with the scheduler.
type ScheduledJob struct {
	Cronspec string
	Task     *asynq.Task
	Opts     []asynq.Option
}

// ScheduledJobs lists the reconciliation cadences. Neither job is retried
// in-process; the next scheduled run is the retry.
func ScheduledJobs(conf *config.Configuration) []ScheduledJob {
	opts := func(timeout time.Duration) []asynq.Option {
		return []asynq.Option{
			asynq.Queue(conf.Reconciliation.Queue),
			asynq.MaxRetry(0),
			asynq.Timeout(timeout),
		}
	}

	return []ScheduledJob{
		{
			Cronspec: conf.Reconciliation.FullSweepCron,
			Task:     asynq.NewTask(TypeFullSweep, nil),
			Opts:     opts(conf.LockTTL()),
		},
		{
			Cronspec: conf.Reconciliation.RecentWindowCron,
			Task:     asynq.NewTask(TypeRecentWindow, nil),
			Opts:     opts(conf.RecentLockTTL()),
		},
	}
}

// NewScheduler registers every scheduled job. Cron expressions are evaluated
// in the configured reconciliation time zone.
func NewScheduler(opt asynq.RedisConnOpt, conf *config.Configuration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: conf.Location(),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logrus.WithError(err).Error("failed to enqueue scheduled reconciliation")
				return
			}
			logrus.Infof("scheduled reconciliation %s enqueued as %s", info.Type, info.ID)
		},
	})

	for _, job := range ScheduledJobs(conf) {
		if _, err := scheduler.Register(job.Cronspec, job.Task, job.Opts...); err != nil {
			return nil, fmt.Errorf("error registering %s with cron %q: %w", job.Task.Type(), job.Cronspec, err)
		}
	}
	return scheduler, nil
}

// RegisterHandlers binds the reconciliation task types to their handlers.
func RegisterHandlers(mux *asynq.ServeMux, r *Reconciler) {
	mux.HandleFunc(TypeFullSweep, r.HandleFullSweep)
	mux.HandleFunc(TypeRecentWindow, r.HandleRecentWindow)
	mux.HandleFunc(TypeAlertWebhook, ProcessWebhook)
	mux.HandleFunc(TypeSlackAlert, ProcessSlackAlert)
}

func (r *Reconciler) HandleFullSweep(ctx context.Context, _ *asynq.Task) error {
	if _, err := r.RunFullSweep(ctx, time.Now()); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (r *Reconciler) HandleRecentWindow(ctx context.Context, _ *asynq.Task) error {
	if _, err := r.RunRecentWindow(ctx, time.Now()); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}
