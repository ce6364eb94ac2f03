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
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type sqlitePlanRow struct {
	id     int
	parent int
	detail string
}

func sqlitePlanSummary(rows []sqlitePlanRow) PlanSummary {
	var ans PlanSummary
	if len(rows) == 0 {
		return ans
	}
	root := rows[0]
	ans.RootNode = root.detail
	for _, r := range rows[1:] {
		if r.parent == root.id {
			ans.ChildNode = r.detail
			break
		}
	}
	return ans
}

// parseStat1 extracts the number of distinct values of the first
// column of an index from the `stat` column of sqlite_stat1
// (format: "numRows avgRowsPerValue1 avgRowsPerValue2...")
func parseStat1(stat string) (float64, bool) {
	items := strings.Fields(stat)
	if len(items) < 2 {
		return 0, false
	}
	numRows, err := strconv.ParseFloat(items[0], 64)
	if err != nil {
		return 0, false
	}
	perValue, err := strconv.ParseFloat(items[1], 64)
	if err != nil || perValue <= 0 {
		return 0, false
	}
	return numRows / perValue, true
}

// SQLite is a dialect for local dry runs and tests. The engine reports
// neither cost nor execution time so only the plan shape comes from
// the planner, the time is measured.
type SQLite struct{}

func (lite *SQLite) Name() string {
	return TypeSQLite
}

func (lite *SQLite) Rebind(query string) string {
	return rebind(TypeSQLite, query)
}

func (lite *SQLite) QuoteIdent(ident string) (string, error) {
	if err := ValidIdent(ident); err != nil {
		return "", err
	}
	return `"` + ident + `"`, nil
}

func (lite *SQLite) tableExists(ctx context.Context, db Querier, tn string) (bool, error) {
	ans := db.QueryRowContext(
		ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tn)
	var nm sql.NullString
	err := ans.Scan(&nm)
	if err == sql.ErrNoRows {
		return false, nil

	} else if err != nil {
		return false, fmt.Errorf("failed to determine existence of table %s: %w", tn, err)
	}
	return true, nil
}

func (lite *SQLite) ExplainRead(ctx context.Context, db Querier, query string, args []any) (PlanSummary, error) {
	rows, err := db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
	}
	planRows := make([]sqlitePlanRow, 0, 8)
	for rows.Next() {
		var pr sqlitePlanRow
		var notUsed int
		if err := rows.Scan(&pr.id, &pr.parent, &notUsed, &pr.detail); err != nil {
			rows.Close()
			return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
		}
		planRows = append(planRows, pr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
	}
	ans := sqlitePlanSummary(planRows)
	ans.ExecutionTimeMS, err = timedRead(ctx, db, query, args)
	if err != nil {
		return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
	}
	return ans, nil
}

// DistinctEstimate reads sqlite_stat1 which is available only after
// ANALYZE and only for columns leading an index.
func (lite *SQLite) DistinctEstimate(ctx context.Context, db Querier, table, column string) (float64, bool, error) {
	ex, err := lite.tableExists(ctx, db, "sqlite_stat1")
	if err != nil {
		return 0, false, fmt.Errorf("failed to read distinct estimate of %s.%s: %w", table, column, err)
	}
	if !ex {
		return 0, false, nil
	}
	row := db.QueryRowContext(
		ctx,
		"SELECT s.stat FROM sqlite_stat1 AS s, pragma_index_info(s.idx) AS p "+
			"WHERE s.tbl = ? AND p.seqno = 0 AND p.name = ? LIMIT 1",
		table,
		column,
	)
	var stat sql.NullString
	err = row.Scan(&stat)
	if err == sql.ErrNoRows {
		return 0, false, nil

	} else if err != nil {
		return 0, false, fmt.Errorf("failed to read distinct estimate of %s.%s: %w", table, column, err)
	}
	if !stat.Valid {
		return 0, false, nil
	}
	v, ok := parseStat1(stat.String)
	return v, ok, nil
}

func (lite *SQLite) TableStats(ctx context.Context, db Querier, table string) (TableInfo, error) {
	qTable, err := lite.QuoteIdent(table)
	if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read stats of table: %w", err)
	}
	ex, err := lite.tableExists(ctx, db, table)
	if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read stats of table %s: %w", table, err)
	}
	if !ex {
		return TableInfo{}, nil
	}
	var ans TableInfo
	row := db.QueryRowContext(ctx, "SELECT count(*) FROM "+qTable)
	if err := row.Scan(&ans.RowEstimate); err != nil {
		return TableInfo{}, fmt.Errorf("failed to read stats of table %s: %w", table, err)
	}
	// dbstat is an optional compile-time feature of SQLite
	row = db.QueryRowContext(ctx, "SELECT SUM(pgsize) FROM dbstat WHERE name = ?", table)
	var size sql.NullInt64
	if err := row.Scan(&size); err != nil {
		log.Debug().Err(err).Str("table", table).Msg("table size not available")

	} else {
		ans.TotalBytes = size.Int64
	}
	return ans, nil
}

func (lite *SQLite) CreateIndex(ctx context.Context, db Querier, name, table, column string) error {
	idents, err := quoteAll(lite, name, table, column)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	_, err = db.ExecContext(
		ctx,
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idents[0], idents[1], idents[2]),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}

func (lite *SQLite) DropIndex(ctx context.Context, db Querier, name, table string) error {
	qName, err := lite.QuoteIdent(name)
	if err != nil {
		return fmt.Errorf("failed to drop index: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+qName); err != nil {
		return fmt.Errorf("failed to drop index %s: %w", name, err)
	}
	return nil
}
