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

package stats

import (
	"context"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const (
	// DfltFractionalDistinct is used when the catalog expresses the number
	// of distinct values as a (negative) fraction of the number of rows
	DfltFractionalDistinct = 100000

	// DfltMissingDistinct is used when there is no usable catalog record
	DfltMissingDistinct = 1000
)

// Source is a database providing planner statistics
type Source interface {
	DistinctEstimate(ctx context.Context, table, column string) (float64, bool, error)
	TableStats(ctx context.Context, table string) (backend.TableInfo, error)
}

// Catalog reads planner statistics and turns them into features.
// All the values are cached so within a run, each value is read
// just once. Lookup failures never propagate, a default is used
// instead.
type Catalog struct {
	src           Source
	distinctCache map[workload.ColumnRef]float64
	sizesCache    map[string]backend.TableInfo
}

// DistinctEstimate returns the estimated number of distinct values
// of a column:
//
//   - positive catalog value is returned as is
//   - negative value (fraction of rows) is replaced by DfltFractionalDistinct
//   - missing, NULL or zero value is replaced by DfltMissingDistinct
//   - in case of a lookup error, 0 is returned
func (c *Catalog) DistinctEstimate(ctx context.Context, col workload.ColumnRef) float64 {
	ans, cached := c.distinctCache[col]
	if cached {
		return ans
	}
	v, found, err := c.src.DistinctEstimate(ctx, col.Table, col.Column)
	switch {
	case err != nil:
		log.Error().Err(err).Str("column", col.String()).Msg("failed to fetch distinct values estimate")
		ans = 0
	case !found || v == 0:
		ans = DfltMissingDistinct
	case v < 0:
		ans = DfltFractionalDistinct
	default:
		ans = v
	}
	c.distinctCache[col] = ans
	return ans
}

// TableStats returns row estimate and total size of a table.
// Zero values are returned for unknown tables and on errors.
func (c *Catalog) TableStats(ctx context.Context, table string) backend.TableInfo {
	ans, cached := c.sizesCache[table]
	if cached {
		return ans
	}
	ans, err := c.src.TableStats(ctx, table)
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("failed to fetch table stats")
		ans = backend.TableInfo{}
	}
	c.sizesCache[table] = ans
	return ans
}

// Reset forgets all the cached values
func (c *Catalog) Reset() {
	c.distinctCache = make(map[workload.ColumnRef]float64)
	c.sizesCache = make(map[string]backend.TableInfo)
}

// HumanSize formats a number of bytes using binary units.
// Unknown (negative) sizes are reported as zero.
func HumanSize(numBytes int64) string {
	if numBytes < 0 {
		numBytes = 0
	}
	return humanize.IBytes(uint64(numBytes))
}

func NewCatalog(src Source) *Catalog {
	return &Catalog{
		src:           src,
		distinctCache: make(map[workload.ColumnRef]float64),
		sizesCache:    make(map[string]backend.TableInfo),
	}
}
