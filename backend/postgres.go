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

	"github.com/lib/pq"
)

type pgPlanNode struct {
	NodeType  string       `json:"Node Type"`
	TotalCost float64      `json:"Total Cost"`
	Plans     []pgPlanNode `json:"Plans"`
}

type pgExplainEntry struct {
	Plan          pgPlanNode `json:"Plan"`
	ExecutionTime *float64   `json:"Execution Time"`
}

func parsePgExplain(data []byte) (PlanSummary, error) {
	var entries []pgExplainEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return PlanSummary{}, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(entries) == 0 {
		return PlanSummary{}, errors.New("failed to parse plan: empty explain output")
	}
	entry := entries[0]
	if entry.ExecutionTime == nil {
		return PlanSummary{}, errors.New("failed to parse plan: missing execution time")
	}
	ans := PlanSummary{
		ExecutionTimeMS: *entry.ExecutionTime,
		TotalCost:       entry.Plan.TotalCost,
		HasCost:         true,
		RootNode:        entry.Plan.NodeType,
	}
	if len(entry.Plan.Plans) > 0 {
		ans.ChildNode = entry.Plan.Plans[0].NodeType
	}
	return ans, nil
}

// Postgres is the PostgreSQL dialect
type Postgres struct{}

func (pg *Postgres) Name() string {
	return TypePostgres
}

func (pg *Postgres) Rebind(query string) string {
	return rebind(TypePostgres, query)
}

func (pg *Postgres) QuoteIdent(ident string) (string, error) {
	if err := ValidIdent(ident); err != nil {
		return "", err
	}
	return pq.QuoteIdentifier(ident), nil
}

func (pg *Postgres) ExplainRead(ctx context.Context, db Querier, query string, args []any) (PlanSummary, error) {
	row := db.QueryRowContext(
		ctx,
		"EXPLAIN (ANALYZE, COSTS, FORMAT JSON) "+pg.Rebind(query),
		args...,
	)
	var data []byte
	if err := row.Scan(&data); err != nil {
		return PlanSummary{}, fmt.Errorf("failed to explain query: %w", err)
	}
	return parsePgExplain(data)
}

func (pg *Postgres) DistinctEstimate(ctx context.Context, db Querier, table, column string) (float64, bool, error) {
	row := db.QueryRowContext(
		ctx,
		"SELECT n_distinct FROM pg_stats WHERE tablename = $1 AND attname = $2 LIMIT 1",
		table,
		column,
	)
	var v sql.NullFloat64
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil

	} else if err != nil {
		return 0, false, fmt.Errorf("failed to read n_distinct of %s.%s: %w", table, column, err)
	}
	return v.Float64, v.Valid, nil
}

func (pg *Postgres) TableStats(ctx context.Context, db Querier, table string) (TableInfo, error) {
	row := db.QueryRowContext(
		ctx,
		"SELECT reltuples::bigint, pg_total_relation_size(oid) FROM pg_class "+
			"WHERE relname = $1 AND relkind = 'r' LIMIT 1",
		table,
	)
	var ans TableInfo
	err := row.Scan(&ans.RowEstimate, &ans.TotalBytes)
	if err == sql.ErrNoRows {
		return TableInfo{}, nil

	} else if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read stats of table %s: %w", table, err)
	}
	// never analyzed tables report -1
	if ans.RowEstimate < 0 {
		ans.RowEstimate = 0
	}
	return ans, nil
}

func (pg *Postgres) CreateIndex(ctx context.Context, db Querier, name, table, column string) error {
	idents, err := quoteAll(pg, name, table, column)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if _, err := db.ExecContext(ctx, "SET statement_timeout = 0"); err != nil {
		return fmt.Errorf("failed to disable statement timeout: %w", err)
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

func (pg *Postgres) DropIndex(ctx context.Context, db Querier, name, table string) error {
	qName, err := pg.QuoteIdent(name)
	if err != nil {
		return fmt.Errorf("failed to drop index: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+qName); err != nil {
		return fmt.Errorf("failed to drop index %s: %w", name, err)
	}
	return nil
}
