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
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite3"
)

var (
	ErrConnection        = errors.New("database connection failure")
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")
	ErrUnsupportedDB     = errors.New("unsupported database type")

	identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Querier is the part of database/sql shared by *sql.DB,
// *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PlanSummary is everything we need from a query plan.
type PlanSummary struct {
	ExecutionTimeMS float64
	TotalCost       float64

	// HasCost is false for engines which do not report
	// planner cost
	HasCost bool

	RootNode  string
	ChildNode string
}

// OperatorLabel returns "Root -> Child" or just "Root" for
// plans without child nodes.
func (ps PlanSummary) OperatorLabel() string {
	if ps.ChildNode == "" {
		return ps.RootNode
	}
	return ps.RootNode + " -> " + ps.ChildNode
}

// TableInfo contains catalog information about a table size.
// Zero values mean "unknown".
type TableInfo struct {
	RowEstimate int64
	TotalBytes  int64
}

// Dialect bundles all the engine specific SQL. Queries passed to a dialect
// use `?` placeholders, identifiers are plain (validated, unquoted) names.
type Dialect interface {
	Name() string

	// Rebind converts `?` placeholders to the engine's native form
	Rebind(query string) string

	QuoteIdent(ident string) (string, error)

	// ExplainRead executes a read query and returns its plan summary
	// incl. the measured execution time.
	ExplainRead(ctx context.Context, db Querier, query string, args []any) (PlanSummary, error)

	// DistinctEstimate returns the catalog estimate of the number of distinct
	// values of a column. The `found` flag is false if there is no (usable)
	// catalog record. The raw value is returned, i.e. it may be negative
	// for engines reporting a fraction of rows.
	DistinctEstimate(ctx context.Context, db Querier, table, column string) (value float64, found bool, err error)

	TableStats(ctx context.Context, db Querier, table string) (TableInfo, error)

	// CreateIndex creates a single column index unless it already exists.
	// Any statement timeout must be disabled for the operation.
	CreateIndex(ctx context.Context, db Querier, name, table, column string) error

	// DropIndex removes an index if it exists.
	DropIndex(ctx context.Context, db Querier, name, table string) error
}

// ValidIdent tests whether an identifier is a plain SQL name
// we can safely quote.
func ValidIdent(ident string) error {
	if !identRegexp.MatchString(ident) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
	}
	return nil
}

// rebind converts `?` placeholders to the native form
// of a database/sql driver.
func rebind(driverName, query string) string {
	return sqlx.Rebind(sqlx.BindType(driverName), query)
}

func quoteAll(d Dialect, idents ...string) ([]string, error) {
	ans := make([]string, len(idents))
	for i, v := range idents {
		q, err := d.QuoteIdent(v)
		if err != nil {
			return []string{}, err
		}
		ans[i] = q
	}
	return ans, nil
}

// timedRead runs a query, reads all the result rows and returns
// the wall time of the whole round trip in milliseconds.
func timedRead(ctx context.Context, db Querier, query string, args []any) (float64, error) {
	t0 := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to run timed query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to run timed query: %w", err)
	}
	return float64(time.Since(t0).Microseconds()) / 1000, nil
}

// DialectFor returns a dialect for a configured database type
func DialectFor(dbType string) (Dialect, error) {
	switch dbType {
	case TypePostgres:
		return &Postgres{}, nil
	case TypeMySQL:
		return &MySQL{}, nil
	case TypeSQLite:
		return &SQLite{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDB, dbType)
}
