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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/blnkfinance/payrecon"
	"github.com/blnkfinance/payrecon/config"
	redis_db "github.com/blnkfinance/payrecon/internal/redis-db"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func redisConnOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return redis_db.AsynqOpt(redisOption), nil
}

func initializeWorkerServer(opt asynq.RedisClientOpt, queues map[string]int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithError(err).WithField("task", task.Type()).Error("reconciliation task failed")
		}),
	})
}

// startMonitoring serves the asynqmon dashboard for the reconciliation queues.
func startMonitoring(opt asynq.RedisClientOpt, port string) {
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", port)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
}

// workerCommands starts the scheduler that enqueues both reconciliation
// cadences together with the worker server that runs them.
func workerCommands(p *payreconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start reconciliation scheduler and workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := p.cnf

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			opt, err := redisConnOpt(conf)
			if err != nil {
				log.Fatal(err)
			}

			scheduler, err := payrecon.NewScheduler(opt, conf)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			srv := initializeWorkerServer(opt, p.payrecon.Queue().Queues())

			mux := asynq.NewServeMux()
			payrecon.RegisterHandlers(mux, p.payrecon.Reconciler)

			startMonitoring(opt, conf.Reconciliation.MonitoringPort)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
