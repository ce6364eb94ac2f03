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
	"math"
	"math/rand/v2"
	"time"
)

const (
	dateLayout = "2006-01-02"

	scanWindowDays    = 5
	aggHorizonDays    = 2500
	aggMinOffsetDays  = 60
	aggMaxOffsetDays  = 120
	scanMinQuantity   = 20
	scanMaxQuantity   = 30
	scanMinDiscount   = 0.02
	scanMaxDiscount   = 0.09
	discountBandWidth = 0.01

	// orderKeysPerScaleUnit is the upper bound of sampled order keys
	// for scale factor 1
	orderKeysPerScaleUnit = 1500000
	maxLineNumber         = 4
)

var (
	shipDateFrom   = time.Date(1993, 1, 1, 0, 0, 0, 0, time.UTC)
	shipDateTo     = time.Date(1997, 12, 31, 0, 0, 0, 0, time.UTC)
	aggAnchorDate  = time.Date(1998, 12, 1, 0, 0, 0, 0, time.UTC)
	joinPivotDate  = time.Date(1995, 3, 15, 0, 0, 0, 0, time.UTC)
	marketSegments = []string{"BUILDING", "AUTOMOBILE", "MACHINERY", "HOUSEHOLD", "FURNITURE"}
)

const (
	rangeScanSQL = "SELECT sum(l_extendedprice * l_discount) AS revenue FROM lineitem " +
		"WHERE l_shipdate >= ? AND l_shipdate < ? " +
		"AND l_discount BETWEEN ? AND ? " +
		"AND l_quantity < ?"

	aggScanSQL = "SELECT l_returnflag, l_linestatus, sum(l_quantity) AS sum_qty, " +
		"sum(l_extendedprice) AS sum_base_price, " +
		"sum(l_extendedprice * (1 - l_discount)) AS sum_disc_price, " +
		"sum(l_extendedprice * (1 - l_discount) * (1 + l_tax)) AS sum_charge, " +
		"avg(l_quantity) AS avg_qty, avg(l_extendedprice) AS avg_price, " +
		"avg(l_discount) AS avg_disc, count(*) AS count_order " +
		"FROM lineitem WHERE l_shipdate <= ? " +
		"GROUP BY l_returnflag, l_linestatus ORDER BY l_returnflag, l_linestatus"

	joinScanSQL = "SELECT l_orderkey, sum(l_extendedprice * (1 - l_discount)) AS revenue, " +
		"o_orderdate, o_shippriority FROM customer, orders, lineitem " +
		"WHERE c_mktsegment = ? AND c_custkey = o_custkey AND l_orderkey = o_orderkey " +
		"AND o_orderdate < ? AND l_shipdate > ? " +
		"GROUP BY l_orderkey, o_orderdate, o_shippriority " +
		"ORDER BY revenue DESC, o_orderdate LIMIT 10"

	pointUpdateSQL = "UPDATE lineitem SET l_quantity = l_quantity " +
		"WHERE l_orderkey = ? AND l_linenumber = ?"
)

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Generator produces single queries of the supported shapes.
// All the randomness comes from the provided source so
// a fixed-seed source replays the same workload.
type Generator struct {
	rnd         *rand.Rand
	maxOrderKey int
}

func (g *Generator) randomShipDate() time.Time {
	days := int(shipDateTo.Sub(shipDateFrom).Hours() / 24)
	return shipDateFrom.AddDate(0, 0, g.rnd.IntN(days))
}

// RangeScan creates a "needle in a haystack" query with three
// narrow, independently selective predicates on lineitem.
func (g *Generator) RangeScan() Query {
	from := g.randomShipDate()
	qty := scanMinQuantity + g.rnd.IntN(scanMaxQuantity-scanMinQuantity+1)
	discount := roundCents(scanMinDiscount + g.rnd.Float64()*(scanMaxDiscount-scanMinDiscount))
	return Query{
		Kind: KindRead,
		SQL:  rangeScanSQL,
		Args: []any{
			from.Format(dateLayout),
			from.AddDate(0, 0, scanWindowDays).Format(dateLayout),
			roundCents(discount - discountBandWidth),
			roundCents(discount + discountBandWidth),
			qty,
		},
		Tables:           []string{TableLineitem},
		FilterRangeWidth: scanWindowDays,
		Template:         TemplateScanHeavy,
		FilterColumn:     ColumnRef{Table: TableLineitem, Column: "l_shipdate"},
	}
}

// AggregationScan creates a pricing summary report style query
// which groups almost the whole lineitem table.
func (g *Generator) AggregationScan() Query {
	offset := aggMinOffsetDays + g.rnd.IntN(aggMaxOffsetDays-aggMinOffsetDays+1)
	return Query{
		Kind:             KindRead,
		SQL:              aggScanSQL,
		Args:             []any{aggAnchorDate.AddDate(0, 0, -offset).Format(dateLayout)},
		Tables:           []string{TableLineitem},
		FilterRangeWidth: float64(aggHorizonDays - offset),
		Template:         TemplateAggHeavy,
		FilterColumn:     ColumnRef{Table: TableLineitem, Column: "l_shipdate"},
	}
}

// JoinScan creates a shipping priority style query joining
// customer, orders and lineitem.
func (g *Generator) JoinScan() Query {
	segment := marketSegments[g.rnd.IntN(len(marketSegments))]
	pivot := joinPivotDate.Format(dateLayout)
	return Query{
		Kind:         KindRead,
		SQL:          joinScanSQL,
		Args:         []any{segment, pivot, pivot},
		Tables:       []string{TableCustomer, TableOrders, TableLineitem},
		JoinCount:    2,
		Template:     TemplateJoinHeavy,
		FilterColumn: ColumnRef{Table: TableCustomer, Column: "c_mktsegment"},
	}
}

// PointUpdate creates a primary key update which does not change
// any data but still goes through the write path (incl. maintenance
// of all the indexes defined on lineitem).
func (g *Generator) PointUpdate() Query {
	return Query{
		Kind: KindWrite,
		SQL:  pointUpdateSQL,
		Args: []any{
			1 + g.rnd.IntN(g.maxOrderKey),
			1 + g.rnd.IntN(maxLineNumber),
		},
		Tables:       []string{TableLineitem},
		Template:     TemplateDML,
		// all lineitem-first queries share the l_shipdate estimate
		FilterColumn: ColumnRef{Table: TableLineitem, Column: "l_shipdate"},
	}
}

// RandomRead picks one of the read templates with uniform probability
func (g *Generator) RandomRead() Query {
	switch g.rnd.IntN(3) {
	case 0:
		return g.RangeScan()
	case 1:
		return g.AggregationScan()
	default:
		return g.JoinScan()
	}
}

// ByTemplate generates a query of the specified shape
func (g *Generator) ByTemplate(tl TemplateLabel) (Query, error) {
	if err := tl.Validate(); err != nil {
		return Query{}, err
	}
	switch tl {
	case TemplateScanHeavy:
		return g.RangeScan(), nil
	case TemplateAggHeavy:
		return g.AggregationScan(), nil
	case TemplateJoinHeavy:
		return g.JoinScan(), nil
	default:
		return g.PointUpdate(), nil
	}
}

// NewGenerator creates a query generator. The scaleFactor is used
// to derive key ranges for point updates (values < 1 are treated as 1).
func NewGenerator(rnd *rand.Rand, scaleFactor int) *Generator {
	if scaleFactor < 1 {
		scaleFactor = 1
	}
	return &Generator{
		rnd:         rnd,
		maxOrderKey: orderKeysPerScaleUnit * scaleFactor,
	}
}
