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

package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// defaultHistoryDays is the window used when no 'from' date is given.
const defaultHistoryDays = 7

// HistoryQuery is the query string accepted by the run history endpoint.
// Dates are calendar days formatted as YYYY-MM-DD.
type HistoryQuery struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q *HistoryQuery) ValidateHistoryQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.From, validation.Date(time.DateOnly).Error("must be formatted as YYYY-MM-DD")),
		validation.Field(&q.To, validation.Date(time.DateOnly).Error("must be formatted as YYYY-MM-DD")),
		validation.Field(&q.Limit, validation.Min(0)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// Range resolves the requested window. A missing 'to' means today in loc and a
// missing 'from' means a week before 'to'.
func (q *HistoryQuery) Range(now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	local := now.In(loc)
	to := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if q.To != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, q.To, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -defaultHistoryDays)
	if q.From != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, q.From, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("'to' must not be before 'from'")
	}
	return from, to, nil
}
