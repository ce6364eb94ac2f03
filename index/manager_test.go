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

package index

import (
	"context"
	"testing"

	"github.com/czcorpus/idxprobe/testutil"
	"github.com/stretchr/testify/assert"
)

var shipdateIdx = Candidate{Name: "idx_lineitem_shipdate", Table: "lineitem", Column: "l_shipdate"}

func TestCreateIsIdempotent(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	mgr := NewManager(sess)
	ctx := context.Background()
	assert.NoError(t, mgr.Create(ctx, shipdateIdx))
	assert.NoError(t, mgr.Create(ctx, shipdateIdx))
	assert.True(t, testutil.IndexExists(t, sess, shipdateIdx.Name))
}

func TestDropIsIdempotent(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	mgr := NewManager(sess)
	ctx := context.Background()
	assert.NoError(t, mgr.Drop(ctx, shipdateIdx))
	assert.NoError(t, mgr.Create(ctx, shipdateIdx))
	assert.NoError(t, mgr.Drop(ctx, shipdateIdx))
	assert.NoError(t, mgr.Drop(ctx, shipdateIdx))
	assert.False(t, testutil.IndexExists(t, sess, shipdateIdx.Name))
}

func TestCreateFailure(t *testing.T) {
	sess := testutil.NewTPCHSession(t, 10)
	mgr := NewManager(sess)
	err := mgr.Create(
		context.Background(),
		Candidate{Name: "idx_nation_name", Table: "nation", Column: "n_name"},
	)
	assert.ErrorIs(t, err, ErrIndexOperation)
}

func TestCandidateValidation(t *testing.T) {
	assert.NoError(t, shipdateIdx.Validate())
	assert.Equal(t, "label_idx_lineitem_shipdate", shipdateIdx.LabelColumn())
	assert.Error(t, Candidate{Name: "idx-1", Table: "lineitem", Column: "l_shipdate"}.Validate())
	assert.Error(t, ValidateAll([]Candidate{shipdateIdx, shipdateIdx}))
	assert.NoError(t, ValidateAll([]Candidate{
		shipdateIdx,
		{Name: "idx_orders_custkey", Table: "orders", Column: "o_custkey"},
	}))
}
