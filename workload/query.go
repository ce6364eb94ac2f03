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

package workload

import (
	"fmt"
	"slices"
)

const (
	TableLineitem = "lineitem"
	TableOrders   = "orders"
	TableCustomer = "customer"
)

// KnownTables lists all the tables our templates may touch. The order
// matters - it defines the order of table membership features.
var KnownTables = []string{TableLineitem, TableOrders, TableCustomer}

// Kind distinguishes queries measured via the planner's
// explain facility (reads) from the ones we just time (writes).
type Kind string

const (
	KindRead  Kind = "READ"
	KindWrite Kind = "WRITE"
)

// TemplateLabel identifies a query template (i.e. a query shape)
type TemplateLabel string

const (
	TemplateScanHeavy TemplateLabel = "SCAN_HEAVY"
	TemplateAggHeavy  TemplateLabel = "AGG_HEAVY"
	TemplateJoinHeavy TemplateLabel = "JOIN_HEAVY"
	TemplateDML       TemplateLabel = "DML"
)

func (tl TemplateLabel) Validate() error {
	switch tl {
	case TemplateScanHeavy, TemplateAggHeavy, TemplateJoinHeavy, TemplateDML:
		return nil
	}
	return fmt.Errorf("unknown query template %s", tl)
}

type ColumnRef struct {
	Table  string
	Column string
}

func (cr ColumnRef) String() string {
	return cr.Table + "." + cr.Column
}

// Query is a generated SQL statement along with all the metadata
// needed to derive its features without parsing the SQL.
// Once created, a Query is never modified.
type Query struct {

	// ID is the position of the query within its batch (or pool)
	ID int

	Kind Kind

	// SQL uses `?` placeholders, it is up to a concrete database
	// dialect to rebind them.
	SQL string

	Args []any

	// Tables contains all the tables the query reads from or writes to.
	// It is never empty.
	Tables []string

	JoinCount int

	// FilterRangeWidth is a unit-less proxy for selectivity of the main
	// range filter (0 if not applicable)
	FilterRangeWidth float64

	Template TemplateLabel

	// FilterColumn is the column we read the distinct values estimate for
	FilterColumn ColumnRef
}

func (q Query) TouchesTable(table string) bool {
	return slices.Contains(q.Tables, table)
}

func (q Query) IsRead() bool {
	return q.Kind == KindRead
}

func (q Query) withID(id int) Query {
	q.ID = id
	return q
}
