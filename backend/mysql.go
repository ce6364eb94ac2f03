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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type myTableAccess struct {
	TableName  string `json:"table_name"`
	AccessType string `json:"access_type"`
}

type myQueryBlock struct {
	CostInfo *struct {
		QueryCost json.RawMessage `json:"query_cost"`
	} `json:"cost_info"`
	Ordering   *myQueryBlock  `json:"ordering_operation"`
	Grouping   *myQueryBlock  `json:"grouping_operation"`
	NestedLoop []myQueryBlock `json:"nested_loop"`
	Table      *myTableAccess `json:"table"`
}

// operators lists the plan operators from the top
// down the first branch
func (b *myQueryBlock) operators() []string {
	switch {
	case b.Ordering != nil:
		return append([]string{"Sort"}, b.Ordering.operators()...)
	case b.Grouping != nil:
		return append([]string{"Aggregate"}, b.Grouping.operators()...)
	case len(b.NestedLoop) > 0:
		return append([]string{"Nested Loop"}, b.NestedLoop[0].operators()...)
	case b.Table != nil:
		return []string{fmt.Sprintf("Table Access (%s)", b.Table.AccessType)}
	}
	return []string{}
}

func parseMySQLExplain(data []byte) (PlanSummary, error) {
	var doc struct {
		QueryBlock *myQueryBlock `json:"query_block"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return PlanSummary{}, fmt.Errorf("failed to parse plan: %w", err)
	}
	if doc.QueryBlock == nil {
		return PlanSummary{}, errors.New("failed to parse plan: missing query_block")
	}
	var ans PlanSummary
	if doc.QueryBlock.CostInfo != nil && len(doc.QueryBlock.CostInfo.QueryCost) > 0 {
		// older versions encode the cost as a string
		rawCost := strings.Trim(string(doc.QueryBlock.CostInfo.QueryCost), `"`)
		cost, err := strconv.ParseFloat(rawCost, 64)
		if err != nil {
			return PlanSummary{}, fmt.Errorf("failed to parse plan cost: %w", err)
		}
		ans.TotalCost = cost
		ans.HasCost = true
	}
	ops := doc.QueryBlock.operators()
	if len(ops) > 0 {
		ans.RootNode = ops[0]
	}
	if len(ops) > 1 {
		ans.ChildNode = ops[1]
	}
	return ans, nil
}

// MySQL is the MySQL 8 dialect. The engine's JSON explain output does not
// contain the execution time so the query is also executed and timed.
type MySQL struct{}

func (my *MySQL) Name() string {
	return TypeMySQL
}

func (my *MySQL) Rebind(query string) string {
	return rebind(TypeMySQL, query)
}

func (my *MySQL) QuoteIdent(ident string) (string, error) {
	if err := ValidIdent(ident); err != nil {
		return "", err
	}
	return "`" + ident + "`", nil
}

func (my *MySQL) ExplainRead(ctx context.Context, db Querier, query string, args []any) (PlanSummary, error) {
	row := db.QueryRowContext(ctx, "EXPLAIN FORMAT=JSON "+query, args...)
	var data []byte
	if err := row.Scan(&data); err != nil {
		return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
	}
	ans, err := parseMySQLExplain(data)
	if err != nil {
		return PlanSummary{}, err
	}
	ans.ExecutionTimeMS, err = timedRead(ctx, db, query, args)
	if err != nil {
		return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
	}
	return ans, nil
}

func (my *MySQL) DistinctEstimate(ctx context.Context, db Querier, table, column string) (float64, bool, error) {
	row := db.QueryRowContext(
		ctx,
		"SELECT CARDINALITY FROM information_schema.STATISTICS "+
			"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ? "+
			"AND SEQ_IN_INDEX = 1 ORDER BY CARDINALITY DESC LIMIT 1",
		table,
		column,
	)
	var v sql.NullFloat64
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil

	} else if err != nil {
		return 0, false, fmt.Errorf("failed to read cardinality of %s.%s: %w", table, column, err)
	}
	return v.Float64, v.Valid, nil
}

func (my *MySQL) TableStats(ctx context.Context, db Querier, table string) (TableInfo, error) {
	row := db.QueryRowContext(
		ctx,
		"SELECT TABLE_ROWS, DATA_LENGTH + INDEX_LENGTH FROM information_schema.TABLES "+
			"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?",
		table,
	)
	var rows, size sql.NullInt64
	err := row.Scan(&rows, &size)
	if err == sql.ErrNoRows {
		return TableInfo{}, nil

	} else if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read stats of table %s: %w", table, err)
	}
	return TableInfo{RowEstimate: rows.Int64, TotalBytes: size.Int64}, nil
}

func (my *MySQL) indexExists(ctx context.Context, db Querier, name, table string) (bool, error) {
	row := db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM information_schema.STATISTICS "+
			"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME = ?",
		table,
		name,
	)
	var cnt int
	if err := row.Scan(&cnt); err != nil {
		return false, fmt.Errorf("failed to determine existence of index %s: %w", name, err)
	}
	return cnt > 0, nil
}

func (my *MySQL) CreateIndex(ctx context.Context, db Querier, name, table, column string) error {
	idents, err := quoteAll(my, name, table, column)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	ex, err := my.indexExists(ctx, db, name, table)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if ex {
		return nil
	}
	if _, err := db.ExecContext(ctx, "SET SESSION max_execution_time = 0"); err != nil {
		return fmt.Errorf("failed to disable statement timeout: %w", err)
	}
	_, err = db.ExecContext(
		ctx,
		fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idents[0], idents[1], idents[2]),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}

func (my *MySQL) DropIndex(ctx context.Context, db Querier, name, table string) error {
	idents, err := quoteAll(my, name, table)
	if err != nil {
		return fmt.Errorf("failed to drop index: %w", err)
	}
	ex, err := my.indexExists(ctx, db, name, table)
	if err != nil {
		return fmt.Errorf("failed to drop index: %w", err)
	}
	if !ex {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP INDEX %s ON %s", idents[0], idents[1])); err != nil {
		return fmt.Errorf("failed to drop index %s: %w", name, err)
	}
	return nil
}
