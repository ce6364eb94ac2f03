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

package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/testutil"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/stretchr/testify/assert"
)

type distinctResp struct {
	value float64
	found bool
	err   error
}

type fakeSource struct {
	distinct map[string]distinctResp
	tables   map[string]backend.TableInfo
	calls    int
}

func (fs *fakeSource) DistinctEstimate(ctx context.Context, table, column string) (float64, bool, error) {
	fs.calls++
	r := fs.distinct[table+"."+column]
	return r.value, r.found, r.err
}

func (fs *fakeSource) TableStats(ctx context.Context, table string) (backend.TableInfo, error) {
	fs.calls++
	if table == "broken" {
		return backend.TableInfo{}, errors.New("catalog unavailable")
	}
	return fs.tables[table], nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		distinct: map[string]distinctResp{
			"lineitem.l_shipdate":   {value: 2526, found: true},
			"lineitem.l_orderkey":   {value: -0.25, found: true},
			"lineitem.l_discount":   {value: 0, found: true},
			"customer.c_mktsegment": {found: false},
			"orders.o_orderdate":    {err: errors.New("permission denied")},
		},
		tables: map[string]backend.TableInfo{
			"lineitem": {RowEstimate: 59986052, TotalBytes: 10 * 1024 * 1024 * 1024},
		},
	}
}

func col(table, column string) workload.ColumnRef {
	return workload.ColumnRef{Table: table, Column: column}
}

func TestDistinctEstimateDefaults(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(newFakeSource())
	assert.Equal(t, 2526.0, cat.DistinctEstimate(ctx, col("lineitem", "l_shipdate")))
	assert.Equal(t, 100000.0, cat.DistinctEstimate(ctx, col("lineitem", "l_orderkey")))
	assert.Equal(t, 1000.0, cat.DistinctEstimate(ctx, col("lineitem", "l_discount")))
	assert.Equal(t, 1000.0, cat.DistinctEstimate(ctx, col("customer", "c_mktsegment")))
	assert.Equal(t, 0.0, cat.DistinctEstimate(ctx, col("orders", "o_orderdate")))
}

func TestDistinctEstimateIsCached(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	cat := NewCatalog(src)
	cat.DistinctEstimate(ctx, col("lineitem", "l_shipdate"))
	cat.DistinctEstimate(ctx, col("lineitem", "l_shipdate"))
	cat.DistinctEstimate(ctx, col("orders", "o_orderdate"))
	cat.DistinctEstimate(ctx, col("orders", "o_orderdate"))
	assert.Equal(t, 2, src.calls)
	cat.Reset()
	cat.DistinctEstimate(ctx, col("lineitem", "l_shipdate"))
	assert.Equal(t, 3, src.calls)
}

func TestTableStats(t *testing.T) {
	ctx := context.Background()
	cat := NewCatalog(newFakeSource())
	assert.Equal(t, int64(59986052), cat.TableStats(ctx, "lineitem").RowEstimate)
	assert.Equal(t, backend.TableInfo{}, cat.TableStats(ctx, "orders"))
	assert.Equal(t, backend.TableInfo{}, cat.TableStats(ctx, "broken"))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.5 KiB", HumanSize(1536))
	assert.Equal(t, "10 GiB", HumanSize(10*1024*1024*1024))
	assert.Equal(t, "0 B", HumanSize(0))
	assert.Equal(t, "0 B", HumanSize(-1))
}

func TestCatalogOnSQLite(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 40)
	cat := NewCatalog(sess)
	ctx := context.Background()
	// no statistics yet
	assert.Equal(t, 1000.0, cat.DistinctEstimate(ctx, col("lineitem", "l_orderkey")))
	assert.Equal(t, int64(40), cat.TableStats(ctx, "orders").RowEstimate)
}
