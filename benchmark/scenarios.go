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

package benchmark

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/stats"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const (
	logSQLPrefixLen = 150
)

type TableStatsReader interface {
	TableStats(ctx context.Context, table string) backend.TableInfo
}

type ScenarioOutcome struct {
	Name       string
	NumQueries int
	NumFailed  int
	TotalMS    float64
}

// ScenarioRunner executes fixed workload sets once and writes
// a human readable execution log.
type ScenarioRunner struct {
	executor *Executor
	catalog  TableStatsReader
	out      io.Writer
	progress io.Writer
}

func abbreviateSQL(sql string) string {
	if len(sql) <= logSQLPrefixLen {
		return sql
	}
	return sql[:logSQLPrefixLen] + "..."
}

func (sr *ScenarioRunner) writeEntry(
	ctx context.Context,
	setName string,
	q workload.Query,
	m Measurement,
) error {
	var buff strings.Builder
	fmt.Fprintf(&buff, "--- %s | Query #%d [%s] ---\n", setName, q.ID+1, q.Kind)
	fmt.Fprintf(&buff, "SQL: %s\n", abbreviateSQL(q.SQL))
	fmt.Fprintf(&buff, "Args: %v\n", q.Args)
	cost := "n/a"
	if m.HasCost {
		cost = fmt.Sprintf("%.2f", m.PlannerCost)
	}
	fmt.Fprintf(&buff, "Stats: Time=%.2fms | Cost=%s | Method=%s\n", m.ElapsedMS, cost, m.OperatorLabel)
	fmt.Fprintf(&buff, "Meta: Tables=%v | JoinCount=%d\n", q.Tables, q.JoinCount)
	for _, tbl := range q.Tables {
		info := sr.catalog.TableStats(ctx, tbl)
		fmt.Fprintf(&buff, "   -> %s: %d rows, %s\n", tbl, info.RowEstimate, stats.HumanSize(info.TotalBytes))
	}
	buff.WriteString(strings.Repeat("-", 50) + "\n")
	_, err := io.WriteString(sr.out, buff.String())
	return err
}

// Run executes all the scenarios one by one. Queries which
// fail are logged and skipped, only a failure to write the log
// (or a cancelled context) stops the run.
func (sr *ScenarioRunner) Run(ctx context.Context, scenarios []workload.Scenario) ([]ScenarioOutcome, error) {
	_, err := fmt.Fprintf(sr.out, "EXECUTION LOG - %s\n\n", time.Now().Format("2006-01-02 15:04"))
	if err != nil {
		return []ScenarioOutcome{}, fmt.Errorf("failed to write execution log: %w", err)
	}
	ans := make([]ScenarioOutcome, 0, len(scenarios))
	for _, sc := range scenarios {
		outcome := ScenarioOutcome{Name: sc.Name, NumQueries: len(sc.Queries)}
		bar := progressbar.NewOptions(
			len(sc.Queries),
			progressbar.OptionSetDescription(sc.Name),
			progressbar.OptionSetWriter(sr.progress),
		)
		for _, q := range sc.Queries {
			if err := ctx.Err(); err != nil {
				return ans, err
			}
			m, err := sr.executor.Measure(ctx, q)
			bar.Add(1)
			if err != nil {
				log.Error().
					Err(err).
					Str("scenario", sc.Name).
					Int("queryId", q.ID).
					Msg("failed to measure scenario query, skipping to the next")
				outcome.NumFailed++
				continue
			}
			outcome.TotalMS += m.ElapsedMS
			if err := sr.writeEntry(ctx, sc.Name, q, m); err != nil {
				return ans, fmt.Errorf("failed to write execution log: %w", err)
			}
		}
		bar.Finish()
		log.Info().
			Str("scenario", sc.Name).
			Int("numQueries", outcome.NumQueries).
			Int("numFailed", outcome.NumFailed).
			Float64("totalMs", outcome.TotalMS).
			Msg("scenario finished")
		ans = append(ans, outcome)
	}
	return ans, nil
}

// NewScenarioRunner creates a runner writing its log to `out`. Progress
// is reported to `progress` (use io.Discard to disable it).
func NewScenarioRunner(
	executor *Executor,
	catalog TableStatsReader,
	out io.Writer,
	progress io.Writer,
) *ScenarioRunner {
	return &ScenarioRunner{
		executor: executor,
		catalog:  catalog,
		out:      out,
		progress: progress,
	}
}
