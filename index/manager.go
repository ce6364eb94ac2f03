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

package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrIndexOperation = errors.New("index operation failed")

type DDLExecutor interface {
	CreateIndex(ctx context.Context, name, table, column string) error
	DropIndex(ctx context.Context, name, table string) error
}

// Manager creates and removes candidate indexes. Both operations
// are idempotent so they can be safely repeated (e.g. after
// an interrupted run).
type Manager struct {
	db DDLExecutor
}

func (m *Manager) Create(ctx context.Context, c Candidate) error {
	t0 := time.Now()
	if err := m.db.CreateIndex(ctx, c.Name, c.Table, c.Column); err != nil {
		log.Error().Err(err).Str("index", c.Name).Msg("failed to create index")
		return fmt.Errorf("%w: create %s: %w", ErrIndexOperation, c.Name, err)
	}
	log.Info().
		Str("index", c.Name).
		Str("table", c.Table).
		Str("column", c.Column).
		Dur("took", time.Since(t0)).
		Msg("index ready")
	return nil
}

func (m *Manager) Drop(ctx context.Context, c Candidate) error {
	if err := m.db.DropIndex(ctx, c.Name, c.Table); err != nil {
		log.Error().Err(err).Str("index", c.Name).Msg("failed to drop index")
		return fmt.Errorf("%w: drop %s: %w", ErrIndexOperation, c.Name, err)
	}
	log.Info().Str("index", c.Name).Msg("index removed")
	return nil
}

func NewManager(db DDLExecutor) *Manager {
	return &Manager{db: db}
}
