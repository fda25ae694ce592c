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
	"time"

	"github.com/blnkfinance/payrecon/internal/apierror"
	"github.com/blnkfinance/payrecon/model"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// RunAudit compares a run header with the details actually recorded for it.
type RunAudit struct {
	Run        *model.ReconciliationRun `json:"run"`
	Recorded   model.RunTally           `json:"recorded"`
	Consistent bool                     `json:"consistent"`
}

// ListRuns returns runs dated within [from, to].
func (p *Payrecon) ListRuns(ctx context.Context, from, to time.Time, limit, offset int) ([]*model.ReconciliationRun, error) {
	if to.Before(from) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "'to' must not be before 'from'", nil)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return p.datasource.ListRuns(ctx, from, to, limit, offset)
}

func (p *Payrecon) GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	return p.datasource.GetRun(ctx, runID)
}

func (p *Payrecon) GetRunDetails(ctx context.Context, runID string) ([]*model.ReconciliationDetail, error) {
	if _, err := p.datasource.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return p.datasource.GetRunDetails(ctx, runID)
}

// AuditRun checks that a finalized run's tallies agree with its detail rows.
// Unfinalized runs are reported as inconsistent.
func (p *Payrecon) AuditRun(ctx context.Context, runID string) (*RunAudit, error) {
	run, err := p.datasource.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	recorded, err := p.datasource.TallyRunDetails(ctx, runID)
	if err != nil {
		return nil, err
	}

	header := model.RunTally{Matched: run.Matched, Unmatched: run.Unmatched, Discrepancy: run.Discrepancy}
	return &RunAudit{
		Run:        run,
		Recorded:   recorded,
		Consistent: run.IsFinalized() && header == recorded && recorded.Total() == run.TotalPayments,
	}, nil
}
