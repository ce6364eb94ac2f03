// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package benchmark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/rs/zerolog/log"
)

const (
	writeOperatorLabel = "UPDATE (heap access)"
)

var ErrMeasurementFailed = errors.New("measurement failed")

// Measurement is a result of a single query execution. Cost and
// operator label are available only for read queries.
type Measurement struct {
	ElapsedMS     float64
	PlannerCost   float64
	HasCost       bool
	OperatorLabel string
}

// Session is a database connection able to run and explain queries
type Session interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Explain(ctx context.Context, query string, args ...any) (backend.PlanSummary, error)
}

type Executor struct {
	db Session
}

// Measure runs a query once. Write queries are timed on the client side,
// read queries go through the analyze-and-explain facility of the database
// so the time is the server-side execution time.
// Any failure is reported as ErrMeasurementFailed.
func (e *Executor) Measure(ctx context.Context, q workload.Query) (Measurement, error) {
	if !q.IsRead() {
		t0 := time.Now()
		_, err := e.db.Exec(ctx, q.SQL, q.Args...)
		if err != nil {
			return Measurement{}, fmt.Errorf("%w: query %d: %w", ErrMeasurementFailed, q.ID, err)
		}
		ans := Measurement{
			ElapsedMS:     float64(time.Since(t0).Microseconds()) / 1000,
			OperatorLabel: writeOperatorLabel,
		}
		log.Debug().
			Int("queryId", q.ID).
			Str("kind", string(q.Kind)).
			Float64("elapsedMs", ans.ElapsedMS).
			Msg("measured query")
		return ans, nil
	}
	plan, err := e.db.Explain(ctx, q.SQL, q.Args...)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: query %d: %w", ErrMeasurementFailed, q.ID, err)
	}
	ans := Measurement{
		ElapsedMS:     plan.ExecutionTimeMS,
		PlannerCost:   plan.TotalCost,
		HasCost:       plan.HasCost,
		OperatorLabel: plan.OperatorLabel(),
	}
	log.Debug().
		Int("queryId", q.ID).
		Str("kind", string(q.Kind)).
		Float64("elapsedMs", ans.ElapsedMS).
		Float64("cost", ans.PlannerCost).
		Str("operator", ans.OperatorLabel).
		Msg("measured query")
	return ans, nil
}

func NewExecutor(db Session) *Executor {
	return &Executor{
		db: db,
	}
}
