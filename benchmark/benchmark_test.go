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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/stats"
	"github.com/czcorpus/idxprobe/testutil"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	plan    backend.PlanSummary
	err     error
	numExec int
}

func (fs *fakeSession) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	fs.numExec++
	return nil, fs.err
}

func (fs *fakeSession) Explain(ctx context.Context, query string, args ...any) (backend.PlanSummary, error) {
	return fs.plan, fs.err
}

func TestMeasureRead(t *testing.T) {
	sess := &fakeSession{
		plan: backend.PlanSummary{
			ExecutionTimeMS: 42.5,
			TotalCost:       1200,
			HasCost:         true,
			RootNode:        "Aggregate",
			ChildNode:       "Seq Scan",
		},
	}
	q := workload.NewGenerator(workload.NewRandomSource(1), 1).RangeScan()
	m, err := NewExecutor(sess).Measure(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 42.5, m.ElapsedMS)
	assert.Equal(t, 1200.0, m.PlannerCost)
	assert.True(t, m.HasCost)
	assert.Equal(t, "Aggregate -> Seq Scan", m.OperatorLabel)
	assert.Equal(t, 0, sess.numExec)
}

func TestMeasureWrite(t *testing.T) {
	sess := &fakeSession{}
	q := workload.NewGenerator(workload.NewRandomSource(1), 1).PointUpdate()
	m, err := NewExecutor(sess).Measure(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.numExec)
	assert.GreaterOrEqual(t, m.ElapsedMS, 0.0)
	assert.False(t, m.HasCost)
}

func TestMeasureFailure(t *testing.T) {
	sess := &fakeSession{err: errors.New("connection reset")}
	gen := workload.NewGenerator(workload.NewRandomSource(1), 1)
	for _, q := range []workload.Query{gen.JoinScan(), gen.PointUpdate()} {
		m, err := NewExecutor(sess).Measure(context.Background(), q)
		assert.ErrorIs(t, err, ErrMeasurementFailed)
		assert.Equal(t, Measurement{}, m)
	}
}

func TestMeasureOnSQLite(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 50)
	gen := workload.NewGenerator(workload.NewRandomSource(3), 1)
	exec := NewExecutor(sess)
	for _, q := range []workload.Query{gen.RangeScan(), gen.AggregationScan(), gen.JoinScan(), gen.PointUpdate()} {
		m, err := exec.Measure(context.Background(), q)
		require.NoError(t, err, q.Template)
		assert.NotEmpty(t, m.OperatorLabel)
	}
}

func TestScenarioRunner(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 50)
	comp := workload.NewComposer(workload.NewRandomSource(5), 1)
	var out bytes.Buffer
	runner := NewScenarioRunner(NewExecutor(sess), stats.NewCatalog(sess), &out, io.Discard)
	outcomes, err := runner.Run(context.Background(), comp.Scenarios())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.Equal(t, 0, o.NumFailed)
	}
	assert.Equal(t, 8, outcomes[0].NumQueries)
	assert.Equal(t, 16, strings.Count(out.String(), "Stats: Time="))
	assert.Contains(t, out.String(), "--- Set 3 (3 DML) | Query #3 [WRITE] ---")
	assert.Contains(t, out.String(), "-> lineitem: ")
}

func TestScenarioRunnerSkipsFailures(t *testing.T) {
	sess := &fakeSession{err: errors.New("syntax error")}
	comp := workload.NewComposer(workload.NewRandomSource(5), 1)
	var out bytes.Buffer
	runner := NewScenarioRunner(NewExecutor(sess), stats.NewCatalog(testutil.NewTPCHSession(t, 1)), &out, io.Discard)
	outcomes, err := runner.Run(context.Background(), comp.Scenarios()[2:])
	require.NoError(t, err)
	assert.Equal(t, 3, outcomes[0].NumFailed)
	assert.NotContains(t, out.String(), "Stats: Time=")
}

func TestScenarioRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	comp := workload.NewComposer(workload.NewRandomSource(5), 1)
	runner := NewScenarioRunner(NewExecutor(&fakeSession{}), stats.NewCatalog(testutil.NewTPCHSession(t, 1)), io.Discard, io.Discard)
	_, err := runner.Run(ctx, comp.Scenarios())
	assert.ErrorIs(t, err, context.Canceled)
}
