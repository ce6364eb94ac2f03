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
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type DBConf struct {
	Type    string `json:"type" yaml:"type"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	User    string `json:"user" yaml:"user"`
	Passwd  string `json:"passwd" yaml:"passwd"`
	Name    string `json:"db" yaml:"db"`
	SSLMode string `json:"sslMode" yaml:"sslMode"`

	// Path is used by sqlite3 only
	Path string `json:"path" yaml:"path"`
}

func pgQuoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// DSN creates a driver specific data source name
func (conf DBConf) DSN() (string, error) {
	switch conf.Type {
	case TypePostgres:
		chunks := []string{
			"host=" + pgQuoteValue(conf.Host),
			"dbname=" + pgQuoteValue(conf.Name),
			"user=" + pgQuoteValue(conf.User),
		}
		if conf.Port > 0 {
			chunks = append(chunks, fmt.Sprintf("port=%d", conf.Port))
		}
		if conf.Passwd != "" {
			chunks = append(chunks, "password="+pgQuoteValue(conf.Passwd))
		}
		if conf.SSLMode != "" {
			chunks = append(chunks, "sslmode="+conf.SSLMode)
		}
		return strings.Join(chunks, " "), nil
	case TypeMySQL:
		mconf := mysql.NewConfig()
		mconf.Net = "tcp"
		mconf.Addr = conf.Host
		if conf.Port > 0 {
			mconf.Addr = fmt.Sprintf("%s:%d", conf.Host, conf.Port)
		}
		mconf.User = conf.User
		mconf.Passwd = conf.Passwd
		mconf.DBName = conf.Name
		mconf.ParseTime = true
		mconf.Loc = time.Local
		return mconf.FormatDSN(), nil
	case TypeSQLite:
		return "file:" + conf.Path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDB, conf.Type)
}

// Session is a single dedicated database connection along with
// a dialect matching the database engine. All the operations of
// a run go through one Session so there are never any overlapping
// operations. A Session is not safe for concurrent use.
type Session struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect Dialect
}

func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Conn provides direct access to the underlying connection
func (s *Session) Conn() Querier {
	return s.conn
}

func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Session) Explain(ctx context.Context, query string, args ...any) (PlanSummary, error) {
	return s.dialect.ExplainRead(ctx, s.conn, query, args)
}

func (s *Session) DistinctEstimate(ctx context.Context, table, column string) (float64, bool, error) {
	return s.dialect.DistinctEstimate(ctx, s.conn, table, column)
}

func (s *Session) TableStats(ctx context.Context, table string) (TableInfo, error) {
	return s.dialect.TableStats(ctx, s.conn, table)
}

func (s *Session) CreateIndex(ctx context.Context, name, table, column string) error {
	return s.dialect.CreateIndex(ctx, s.conn, name, table, column)
}

func (s *Session) DropIndex(ctx context.Context, name, table string) error {
	return s.dialect.DropIndex(ctx, s.conn, name, table)
}

func (s *Session) Close() error {
	if err := s.conn.Close(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to close session: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// NewSession wraps an already open database. The function obtains
// a dedicated connection from the pool.
func NewSession(ctx context.Context, db *sql.DB, dialect Dialect) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &Session{
		db:      db,
		conn:    conn,
		dialect: dialect,
	}, nil
}

// Open connects to a configured database and verifies the connection.
// Any failure is reported as ErrConnection.
func Open(ctx context.Context, conf DBConf) (*Session, error) {
	dialect, err := DialectFor(conf.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	dsn, err := conf.DSN()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	db, err := sql.Open(conf.Type, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	sess, err := NewSession(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info().
		Str("type", conf.Type).
		Str("host", conf.Host).
		Str("db", conf.Name).
		Msg("connected to database")
	return sess, nil
}
