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

package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b BETWEEN ? AND ?"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b BETWEEN $2 AND $3", (&Postgres{}).Rebind(q))
	assert.Equal(t, q, (&MySQL{}).Rebind(q))
	assert.Equal(t, q, (&SQLite{}).Rebind(q))
	assert.Equal(t, "SELECT 1", (&Postgres{}).Rebind("SELECT 1"))
}

func TestValidIdent(t *testing.T) {
	assert.NoError(t, ValidIdent("idx_lineitem_shipdate"))
	assert.NoError(t, ValidIdent("_x1"))
	assert.ErrorIs(t, ValidIdent("1abc"), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidIdent("idx; DROP TABLE lineitem"), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidIdent(""), ErrInvalidIdentifier)
}

func TestQuoteIdent(t *testing.T) {
	v, err := (&Postgres{}).QuoteIdent("lineitem")
	assert.NoError(t, err)
	assert.Equal(t, `"lineitem"`, v)
	v, err = (&MySQL{}).QuoteIdent("lineitem")
	assert.NoError(t, err)
	assert.Equal(t, "`lineitem`", v)
	_, err = (&SQLite{}).QuoteIdent("line item")
	assert.Error(t, err)
}

func TestParsePgExplain(t *testing.T) {
	data := `[{"Plan": {"Node Type": "Aggregate", "Total Cost": 1234.5,
		"Plans": [{"Node Type": "Seq Scan", "Total Cost": 1000.1}, {"Node Type": "Hash"}]},
		"Planning Time": 0.2, "Execution Time": 81.25}]`
	ps, err := parsePgExplain([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 81.25, ps.ExecutionTimeMS)
	assert.Equal(t, 1234.5, ps.TotalCost)
	assert.True(t, ps.HasCost)
	assert.Equal(t, "Aggregate -> Seq Scan", ps.OperatorLabel())
}

func TestParsePgExplainLeafRoot(t *testing.T) {
	data := `[{"Plan": {"Node Type": "Seq Scan", "Total Cost": 10}, "Execution Time": 1.5}]`
	ps, err := parsePgExplain([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "Seq Scan", ps.OperatorLabel())
}

func TestParsePgExplainMissingTime(t *testing.T) {
	_, err := parsePgExplain([]byte(`[{"Plan": {"Node Type": "Seq Scan"}}]`))
	assert.Error(t, err)
	_, err = parsePgExplain([]byte(`[]`))
	assert.Error(t, err)
	_, err = parsePgExplain([]byte(`{foo`))
	assert.Error(t, err)
}

func TestParseMySQLExplain(t *testing.T) {
	data := `{"query_block": {"select_id": 1, "cost_info": {"query_cost": "2513.40"},
		"ordering_operation": {"using_filesort": true, "grouping_operation": {
			"nested_loop": [{"table": {"table_name": "customer", "access_type": "ALL"}},
				{"table": {"table_name": "orders", "access_type": "ref"}}]}}}}`
	ps, err := parseMySQLExplain([]byte(data))
	require.NoError(t, err)
	assert.True(t, ps.HasCost)
	assert.Equal(t, 2513.4, ps.TotalCost)
	assert.Equal(t, "Sort -> Aggregate", ps.OperatorLabel())
}

func TestParseMySQLExplainSingleTable(t *testing.T) {
	data := `{"query_block": {"cost_info": {"query_cost": 12.5},
		"table": {"table_name": "lineitem", "access_type": "range"}}}`
	ps, err := parseMySQLExplain([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 12.5, ps.TotalCost)
	assert.Equal(t, "Table Access (range)", ps.OperatorLabel())
}

func TestParseStat1(t *testing.T) {
	v, ok := parseStat1("600 3 1")
	assert.True(t, ok)
	assert.Equal(t, 200.0, v)
	_, ok = parseStat1("600")
	assert.False(t, ok)
	_, ok = parseStat1("600 0")
	assert.False(t, ok)
}

func TestSQLitePlanSummary(t *testing.T) {
	ps := sqlitePlanSummary([]sqlitePlanRow{
		{id: 3, parent: 0, detail: "SCAN customer"},
		{id: 5, parent: 0, detail: "SEARCH orders USING INTEGER PRIMARY KEY (rowid=?)"},
		{id: 7, parent: 3, detail: "USE TEMP B-TREE FOR GROUP BY"},
	})
	assert.Equal(t, "SCAN customer -> USE TEMP B-TREE FOR GROUP BY", ps.OperatorLabel())
	assert.False(t, ps.HasCost)
	assert.Equal(t, "", sqlitePlanSummary(nil).OperatorLabel())
}

func TestDSN(t *testing.T) {
	dsn, err := DBConf{
		Type: TypePostgres, Host: "localhost", Port: 5432,
		User: "postgres", Passwd: "it's", Name: "tpch_db_10", SSLMode: "disable",
	}.DSN()
	require.NoError(t, err)
	assert.Equal(
		t,
		`host='localhost' dbname='tpch_db_10' user='postgres' port=5432 password='it\'s' sslmode=disable`,
		dsn,
	)

	dsn, err = DBConf{Type: TypeMySQL, Host: "db", Port: 3306, User: "u", Passwd: "p", Name: "tpch"}.DSN()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "u:p@tcp(db:3306)/tpch"))

	dsn, err = DBConf{Type: TypeSQLite, Path: "/tmp/x.db"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/x.db", dsn)

	_, err = DBConf{Type: "oracle"}.DSN()
	assert.ErrorIs(t, err, ErrUnsupportedDB)
}

func TestDialectFor(t *testing.T) {
	for _, tp := range []string{TypePostgres, TypeMySQL, TypeSQLite} {
		d, err := DialectFor(tp)
		require.NoError(t, err)
		assert.Equal(t, tp, d.Name())
	}
	_, err := DialectFor("mssql")
	assert.ErrorIs(t, err, ErrUnsupportedDB)
}
