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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/payrecon/api"
	"github.com/blnkfinance/payrecon/config"
	trace "github.com/blnkfinance/payrecon/internal/traces"
)

func initializeRouter(p *payreconInstance) (*gin.Engine, error) {
	a := api.NewAPI(p.payrecon)
	if a == nil {
		return nil, fmt.Errorf("error creating api: config not loaded")
	}
	return a.Router(), nil
}

// initializeObservability sets up tracing when telemetry is enabled. The
// returned shutdown is never nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}

	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName, cfg.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands starts the read-only reconciliation history API.
func serverCommands(p *payreconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "start the reconciliation history API",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			shutdown, err := initializeObservability(ctx, p.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			router, err := initializeRouter(p)
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, p.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
