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

package experiment

import (
	"github.com/czcorpus/idxprobe/index"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/google/uuid"
)

// Record is a query which survived the baseline pass along with
// its baseline measurement and per-index labels.
type Record struct {
	Query workload.Query

	// DistinctCount is the distinct values estimate of the query's filter
	// column as read before any candidate index was created
	DistinctCount float64

	BaseTimeMS   float64
	BaseCost     float64
	BaseHasCost  bool
	BaseOperator string

	// Labels maps candidate index names to 0/1 where 1 means
	// the index made the query faster
	Labels map[string]int

	// IndexedTimes contains re-measured times with individual
	// candidate indexes present
	IndexedTimes map[string]float64
}

// LabelVector returns labels in the order of provided candidates
func (r *Record) LabelVector(candidates []index.Candidate) []int {
	ans := make([]int, len(candidates))
	for i, c := range candidates {
		ans[i] = r.Labels[c.Name]
	}
	return ans
}

func newRecord(q workload.Query, candidates []index.Candidate) *Record {
	labels := make(map[string]int, len(candidates))
	for _, c := range candidates {
		labels[c.Name] = 0
	}
	return &Record{
		Query:        q,
		Labels:       labels,
		IndexedTimes: make(map[string]float64),
	}
}

// IndexOutcome summarizes the labelling phase of a single candidate index
type IndexOutcome struct {
	Candidate index.Candidate

	// Created is true if the index was successfully created
	Created bool

	// Skipped is true if the index was not tried at all
	Skipped bool

	// Eligible is the number of records touching the index table
	Eligible int

	Remeasured int
	Improved   int
	DropFailed bool
}

type Summary struct {
	NumQueries  int
	NumSurvived int
	Indexes     []IndexOutcome
}

type Result struct {
	RunID   uuid.UUID
	Records []*Record
	Summary Summary
}
