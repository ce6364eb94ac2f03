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

package feats

import (
	"context"

	"github.com/czcorpus/idxprobe/workload"
)

type DistinctReader interface {
	DistinctEstimate(ctx context.Context, col workload.ColumnRef) float64
}

// LiveExtractor creates features of new queries using current
// catalog statistics (i.e. the inference-time counterpart
// of the training data).
type LiveExtractor struct {
	catalog DistinctReader
}

func (le *LiveExtractor) Extract(ctx context.Context, q workload.Query) Record {
	var rec Record
	rec.ImportFrom(q, le.catalog.DistinctEstimate(ctx, q.FilterColumn))
	return rec
}

func NewLiveExtractor(catalog DistinctReader) *LiveExtractor {
	return &LiveExtractor{catalog: catalog}
}
