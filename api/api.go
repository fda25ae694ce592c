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

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/payrecon"
	"github.com/blnkfinance/payrecon/api/middleware"
	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/model"
)

// History is the read side of the run ledger served by the API.
type History interface {
	ListRuns(ctx context.Context, from, to time.Time, limit, offset int) ([]*model.ReconciliationRun, error)
	GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error)
	GetRunDetails(ctx context.Context, runID string) ([]*model.ReconciliationDetail, error)
	AuditRun(ctx context.Context, runID string) (*payrecon.RunAudit, error)
}

type Api struct {
	history  History
	location *time.Location
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/reconciliations", a.ListReconciliations)
	router.GET("/reconciliations/:id", a.GetReconciliation)
	router.GET("/reconciliations/:id/details", a.GetReconciliationDetails)
	router.GET("/reconciliations/:id/audit", a.AuditReconciliation)
	return a.router
}

func NewAPI(h History) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}

	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(conf.ProjectName))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	return &Api{history: h, location: conf.Location(), router: r}
}
