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

package dataset

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/czcorpus/idxprobe/benchmark"
	"github.com/czcorpus/idxprobe/experiment"
	"github.com/czcorpus/idxprobe/feats"
	"github.com/czcorpus/idxprobe/index"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidates = []index.Candidate{
	{Name: "idx_lineitem_shipdate", Table: "lineitem", Column: "l_shipdate"},
	{Name: "idx_orders_custkey", Table: "orders", Column: "o_custkey"},
}

func sampleResult() *experiment.Result {
	gen := workload.NewGenerator(workload.NewRandomSource(10), 1)
	q1 := gen.AggregationScan()
	q1.ID = 0
	q2 := gen.JoinScan()
	q2.ID = 3
	return &experiment.Result{
		Records: []*experiment.Record{
			{
				Query:         q1,
				DistinctCount: 2526,
				BaseTimeMS:    1234.567,
				Labels:        map[string]int{"idx_lineitem_shipdate": 1, "idx_orders_custkey": 0},
			},
			{
				Query:         q2,
				DistinctCount: 5,
				BaseTimeMS:    80.25,
				Labels:        map[string]int{"idx_lineitem_shipdate": 0, "idx_orders_custkey": 1},
			},
		},
	}
}

func TestHeader(t *testing.T) {
	ds := FromResult(&experiment.Result{}, candidates)
	assert.Equal(
		t,
		[]string{
			"query_id", "query_type", "table_lineitem", "table_orders", "table_customer",
			"join_count", "filter_range_width", "col_distinct_count", "base_time",
			"label_idx_lineitem_shipdate", "label_idx_orders_custkey",
		},
		ds.Header(),
	)
}

// failingDB rejects every measurement and every index operation
type failingDB struct {
	creates int
}

func (db *failingDB) Measure(ctx context.Context, q workload.Query) (benchmark.Measurement, error) {
	return benchmark.Measurement{}, benchmark.ErrMeasurementFailed
}

func (db *failingDB) DistinctEstimate(ctx context.Context, col workload.ColumnRef) float64 {
	return 0
}

func (db *failingDB) Create(ctx context.Context, c index.Candidate) error {
	db.creates++
	return index.ErrIndexOperation
}

func (db *failingDB) Drop(ctx context.Context, c index.Candidate) error {
	return nil
}

func TestEmptyResultWritesHeaderOnly(t *testing.T) {
	var buff bytes.Buffer
	ds := FromResult(&experiment.Result{}, candidates)
	require.NoError(t, ds.Write(&buff))
	lines := strings.Split(strings.TrimRight(buff.String(), "\n"), "\n")
	assert.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "query_id,query_type,"))
}

func TestNoSurvivorsWritesHeaderOnly(t *testing.T) {
	db := &failingDB{}
	pool := workload.NewComposer(workload.NewRandomSource(7), 1).Pool(4)
	engine := experiment.NewEngine(db, db, db, experiment.Options{
		Candidates: candidates,
		Quiet:      true,
	})
	res, err := engine.Run(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Summary.NumQueries)
	assert.Equal(t, 0, res.Summary.NumSurvived)
	assert.Equal(t, 0, db.creates)

	var buff bytes.Buffer
	require.NoError(t, FromResult(res, candidates).Write(&buff))
	lines := strings.Split(strings.TrimRight(buff.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "query_id,query_type,table_lineitem,table_orders,table_customer,"+
		"join_count,filter_range_width,col_distinct_count,base_time,"+
		"label_idx_lineitem_shipdate,label_idx_orders_custkey", lines[0])
}

func TestRoundTrip(t *testing.T) {
	ds := FromResult(sampleResult(), candidates)
	var buff bytes.Buffer
	require.NoError(t, ds.Write(&buff))
	ds2, err := Read(&buff)
	require.NoError(t, err)
	assert.Equal(t, ds.LabelColumns, ds2.LabelColumns)
	assert.Equal(t, ds.Rows, ds2.Rows)
	assert.Equal(t, 3, ds2.Rows[1].QueryID)
	assert.Equal(t, []int{0, 1}, ds2.Rows[1].Labels)
}

func TestRowValues(t *testing.T) {
	ds := FromResult(sampleResult(), candidates)
	var buff bytes.Buffer
	require.NoError(t, ds.Write(&buff))
	lines := strings.Split(strings.TrimRight(buff.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "3,1,1,1,1,2,0,5,80.25,0,1", lines[2])
}

func TestWriteRejectsInvalidRow(t *testing.T) {
	ds := &Dataset{
		LabelColumns: []string{"label_x"},
		Rows:         []Row{{QueryID: 1, Features: []float64{1, 2}, Labels: []int{0}}},
	}
	var buff bytes.Buffer
	assert.ErrorIs(t, ds.Write(&buff), ErrInvalidDataset)
}

func TestReadInvalid(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidDataset)
	_, err = Read(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func TestFileRoundTripAndLayout(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "training_data_sf1.csv")
	ds := FromResult(sampleResult(), candidates)
	require.NoError(t, ds.WriteFile(dataPath))
	layoutPath := LayoutPath(dataPath)
	assert.Equal(t, filepath.Join(dir, "training_data_sf1.layout.msgpack"), layoutPath)
	require.NoError(t, ds.Layout("run-1").Save(layoutPath))

	ds2, err := ReadFile(dataPath)
	require.NoError(t, err)
	assert.Equal(t, ds.Rows, ds2.Rows)

	layout, err := LoadLayout(layoutPath)
	require.NoError(t, err)
	assert.Equal(t, "run-1", layout.RunID)
	assert.Equal(t, ds.LabelColumns, layout.LabelColumns)
	assert.NoError(t, layout.Check(feats.Columns()))
	assert.ErrorIs(t, layout.Check([]string{"query_type", "join_count"}), ErrLayoutMismatch)
}
