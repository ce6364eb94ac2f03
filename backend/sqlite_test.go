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

package backend_test

import (
	"context"
	"testing"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/testutil"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteExplainRead(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 100)
	gen := workload.NewGenerator(workload.NewRandomSource(1), 1)
	ctx := context.Background()
	for _, q := range []workload.Query{gen.RangeScan(), gen.AggregationScan(), gen.JoinScan()} {
		ps, err := sess.Explain(ctx, q.SQL, q.Args...)
		require.NoError(t, err, q.Template)
		assert.NotEmpty(t, ps.RootNode)
		assert.False(t, ps.HasCost)
		assert.GreaterOrEqual(t, ps.ExecutionTimeMS, 0.0)
	}
}

func TestSQLiteExplainBrokenQuery(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	_, err := sess.Explain(context.Background(), "SELECT * FROM nonexistent WHERE a = ?", 1)
	assert.Error(t, err)
}

func TestSQLiteIndexLifecycle(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	ctx := context.Background()
	assert.NoError(t, sess.CreateIndex(ctx, "idx_lineitem_shipdate", "lineitem", "l_shipdate"))
	assert.NoError(t, sess.CreateIndex(ctx, "idx_lineitem_shipdate", "lineitem", "l_shipdate"))
	assert.True(t, testutil.IndexExists(t, sess, "idx_lineitem_shipdate"))

	assert.NoError(t, sess.DropIndex(ctx, "idx_lineitem_shipdate", "lineitem"))
	assert.NoError(t, sess.DropIndex(ctx, "idx_lineitem_shipdate", "lineitem"))
	assert.False(t, testutil.IndexExists(t, sess, "idx_lineitem_shipdate"))
}

func TestSQLiteRejectsBadIdentifiers(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	err := sess.CreateIndex(context.Background(), "x; DROP TABLE lineitem", "lineitem", "l_shipdate")
	assert.ErrorIs(t, err, backend.ErrInvalidIdentifier)
}

func TestSQLiteDistinctEstimate(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 100)
	ctx := context.Background()

	_, found, err := sess.DistinctEstimate(ctx, "lineitem", "l_orderkey")
	assert.NoError(t, err)
	assert.False(t, found)

	testutil.Analyze(t, sess)
	v, found, err := sess.DistinctEstimate(ctx, "lineitem", "l_orderkey")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Greater(t, v, 0.0)

	_, found, err = sess.DistinctEstimate(ctx, "lineitem", "l_shipdate")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteTableStats(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 50)
	ctx := context.Background()
	info, err := sess.TableStats(ctx, "orders")
	assert.NoError(t, err)
	assert.Equal(t, int64(50), info.RowEstimate)

	info, err = sess.TableStats(ctx, "nation")
	assert.NoError(t, err)
	assert.Equal(t, backend.TableInfo{}, info)
}

func TestSQLiteExecRebind(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	res, err := sess.Exec(
		context.Background(),
		"UPDATE lineitem SET l_quantity = l_quantity WHERE l_orderkey = ? AND l_linenumber = ?",
		1, 1,
	)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
