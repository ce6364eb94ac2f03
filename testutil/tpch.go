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

// Package testutil provides a small in-memory TPC-H like database
// for tests of the packages working with a live database.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/czcorpus/idxprobe/backend"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const (
	DefaultNumOrders = 300
	numCustomers     = 30
)

var (
	schema = []string{
		"CREATE TABLE customer (" +
			"c_custkey INTEGER PRIMARY KEY, " +
			"c_mktsegment TEXT NOT NULL" +
			")",
		"CREATE TABLE orders (" +
			"o_orderkey INTEGER PRIMARY KEY, " +
			"o_custkey INTEGER NOT NULL, " +
			"o_orderdate TEXT NOT NULL, " +
			"o_shippriority INTEGER NOT NULL" +
			")",
		"CREATE TABLE lineitem (" +
			"l_orderkey INTEGER NOT NULL, " +
			"l_linenumber INTEGER NOT NULL, " +
			"l_quantity REAL NOT NULL, " +
			"l_extendedprice REAL NOT NULL, " +
			"l_discount REAL NOT NULL, " +
			"l_tax REAL NOT NULL, " +
			"l_returnflag TEXT NOT NULL, " +
			"l_linestatus TEXT NOT NULL, " +
			"l_shipdate TEXT NOT NULL, " +
			"PRIMARY KEY (l_orderkey, l_linenumber)" +
			")",
	}

	segments  = []string{"BUILDING", "AUTOMOBILE", "MACHINERY", "HOUSEHOLD", "FURNITURE"}
	firstDate = time.Date(1993, 1, 1, 0, 0, 0, 0, time.UTC)
)

// LoadTPCH creates the tables and fills them with deterministic
// pseudo-random data.
func LoadTPCH(ctx context.Context, db backend.Querier, numOrders int) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create test schema: %w", err)
		}
	}
	rnd := rand.New(rand.NewPCG(1, 2))
	for i := 1; i <= numCustomers; i++ {
		_, err := db.ExecContext(
			ctx,
			"INSERT INTO customer (c_custkey, c_mktsegment) VALUES (?, ?)",
			i, segments[i%len(segments)],
		)
		if err != nil {
			return fmt.Errorf("failed to load test data: %w", err)
		}
	}
	for i := 1; i <= numOrders; i++ {
		orderDate := firstDate.AddDate(0, 0, rnd.IntN(2000))
		_, err := db.ExecContext(
			ctx,
			"INSERT INTO orders (o_orderkey, o_custkey, o_orderdate, o_shippriority) VALUES (?, ?, ?, 0)",
			i, 1+rnd.IntN(numCustomers), orderDate.Format("2006-01-02"),
		)
		if err != nil {
			return fmt.Errorf("failed to load test data: %w", err)
		}
		numLines := 1 + rnd.IntN(4)
		for ln := 1; ln <= numLines; ln++ {
			_, err := db.ExecContext(
				ctx,
				"INSERT INTO lineitem (l_orderkey, l_linenumber, l_quantity, l_extendedprice, "+
					"l_discount, l_tax, l_returnflag, l_linestatus, l_shipdate) "+
					"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
				i,
				ln,
				float64(1+rnd.IntN(50)),
				1000+rnd.Float64()*50000,
				float64(rnd.IntN(11))/100,
				float64(rnd.IntN(9))/100,
				[]string{"A", "N", "R"}[rnd.IntN(3)],
				[]string{"O", "F"}[rnd.IntN(2)],
				orderDate.AddDate(0, 0, 1+rnd.IntN(120)).Format("2006-01-02"),
			)
			if err != nil {
				return fmt.Errorf("failed to load test data: %w", err)
			}
		}
	}
	return nil
}

// NewTPCHSession opens a private in-memory SQLite database with loaded
// test data. The session is closed automatically once the test ends.
func NewTPCHSession(t testing.TB, numOrders int) *backend.Session {
	t.Helper()
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	sess, err := backend.NewSession(ctx, db, &backend.SQLite{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sess.Close()
	})
	require.NoError(t, LoadTPCH(ctx, sess.Conn(), numOrders))
	return sess
}

// Analyze collects planner statistics so catalog based
// estimates become available.
func Analyze(t testing.TB, sess *backend.Session) {
	t.Helper()
	_, err := sess.Exec(context.Background(), "ANALYZE")
	require.NoError(t, err)
}

// IndexExists tests for an index directly in the SQLite catalog
func IndexExists(t testing.TB, sess *backend.Session, name string) bool {
	t.Helper()
	row := sess.Conn().QueryRowContext(
		context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?",
		name,
	)
	var cnt int
	require.NoError(t, row.Scan(&cnt))
	return cnt > 0
}
