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
	"encoding/json"
	"fmt"

	"github.com/czcorpus/idxprobe/workload"
)

const (
	ColQueryType        = "query_type"
	ColJoinCount        = "join_count"
	ColFilterRangeWidth = "filter_range_width"
	ColDistinctCount    = "col_distinct_count"
	tableColumnPrefix   = "table_"
)

// Columns returns names of feature columns in the order used by
// Record.AsVector. Both the training data and the inference-time
// features must follow this order.
func Columns() []string {
	ans := make([]string, 0, 4+len(workload.KnownTables))
	ans = append(ans, ColQueryType)
	for _, t := range workload.KnownTables {
		ans = append(ans, tableColumnPrefix+t)
	}
	ans = append(ans, ColJoinCount, ColFilterRangeWidth, ColDistinctCount)
	return ans
}

// Record contains features of a single query
type Record struct {

	// IsRead is 1 for read queries, 0 for writes
	IsRead int `json:"queryType"`

	// Tables contains 0/1 membership flags in the order
	// of workload.KnownTables
	Tables []int `json:"tables"`

	JoinCount        int     `json:"joinCount"`
	FilterRangeWidth float64 `json:"filterRangeWidth"`

	// DistinctCount is an estimate of the number of distinct
	// values of the query's filter column
	DistinctCount float64 `json:"distinctCount"`
}

func (rec Record) AsVector() []float64 {
	ans := make([]float64, 0, 4+len(rec.Tables))
	ans = append(ans, float64(rec.IsRead))
	for _, v := range rec.Tables {
		ans = append(ans, float64(v))
	}
	ans = append(ans, float64(rec.JoinCount), rec.FilterRangeWidth, rec.DistinctCount)
	return ans
}

func (rec *Record) ImportFrom(q workload.Query, distinctCount float64) {
	if q.IsRead() {
		rec.IsRead = 1
	}
	rec.Tables = make([]int, len(workload.KnownTables))
	for i, t := range workload.KnownTables {
		if q.TouchesTable(t) {
			rec.Tables[i] = 1
		}
	}
	rec.JoinCount = q.JoinCount
	rec.FilterRangeWidth = q.FilterRangeWidth
	rec.DistinctCount = distinctCount
}

func (rec Record) AsJSONString() string {
	ans, err := json.Marshal(rec)
	if err != nil {
		panic(fmt.Sprintf("failed to serialize feats.Record: %s", err))
	}
	return string(ans)
}

// Extract creates a feature vector of a query
func Extract(q workload.Query, distinctCount float64) []float64 {
	var rec Record
	rec.ImportFrom(q, distinctCount)
	return rec.AsVector()
}
