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

package experiment

import (
	"context"
	"io"
	"os"

	"github.com/czcorpus/idxprobe/benchmark"
	"github.com/czcorpus/idxprobe/index"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const (
	DfltImprovementThreshold = 1.0
)

type Measurer interface {
	Measure(ctx context.Context, q workload.Query) (benchmark.Measurement, error)
}

type CatalogReader interface {
	DistinctEstimate(ctx context.Context, col workload.ColumnRef) float64
}

type IndexManager interface {
	Create(ctx context.Context, c index.Candidate) error
	Drop(ctx context.Context, c index.Candidate) error
}

type Options struct {
	Candidates []index.Candidate

	// ImprovementThreshold - a query is labelled as improved by an index
	// if indexedTime < baseTime * ImprovementThreshold
	ImprovementThreshold float64

	// Quiet disables progress bars
	Quiet bool
}

// Engine runs index impact experiments. For each query, a baseline time
// is measured without any candidate index. Then the candidate indexes
// are tried strictly one at a time and the queries touching the index
// table are re-measured.
type Engine struct {
	measurer Measurer
	catalog  CatalogReader
	indexes  IndexManager
	opts     Options
}

func (e *Engine) progressWriter() io.Writer {
	if e.opts.Quiet {
		return io.Discard
	}
	return os.Stderr
}

func (e *Engine) newBar(n int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		n,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(e.progressWriter()),
		progressbar.OptionClearOnFinish(),
	)
}

// dropAll removes any candidate index possibly left behind by
// an earlier (interrupted) run so the baseline runs without them.
func (e *Engine) dropAll(ctx context.Context) {
	for _, c := range e.opts.Candidates {
		if err := e.indexes.Drop(ctx, c); err != nil {
			log.Warn().Err(err).Str("index", c.Name).Msg("failed to clean up candidate index before the run")
		}
	}
}

func (e *Engine) baseline(ctx context.Context, pool []workload.Query) ([]*Record, error) {
	records := make([]*Record, 0, len(pool))
	bar := e.newBar(len(pool), "baseline")
	for _, q := range pool {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		m, err := e.measurer.Measure(ctx, q)
		bar.Add(1)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			log.Warn().
				Err(err).
				Int("queryId", q.ID).
				Str("template", string(q.Template)).
				Msg("failed to measure baseline, removing query from the pool")
			continue
		}
		rec := newRecord(q, e.opts.Candidates)
		rec.BaseTimeMS = m.ElapsedMS
		rec.BaseCost = m.PlannerCost
		rec.BaseHasCost = m.HasCost
		rec.BaseOperator = m.OperatorLabel
		rec.DistinctCount = e.catalog.DistinctEstimate(ctx, q.FilterColumn)
		records = append(records, rec)
		log.Debug().
			Int("queryId", q.ID).
			Float64("baseTimeMs", rec.BaseTimeMS).
			Float64("distinctCount", rec.DistinctCount).
			Msg("baseline measured")
	}
	bar.Finish()
	return records, nil
}

// dropWithRetry drops an index, in case of a failure, one more
// attempt is made. The function ignores cancellation of the provided
// context as a created index must never be left behind.
func (e *Engine) dropWithRetry(ctx context.Context, c index.Candidate) bool {
	ctx = context.WithoutCancel(ctx)
	if err := e.indexes.Drop(ctx, c); err != nil {
		log.Warn().Err(err).Str("index", c.Name).Msg("failed to drop index, retrying")
		if err := e.indexes.Drop(ctx, c); err != nil {
			log.Error().Err(err).Str("index", c.Name).Msg("failed to drop index")
			return false
		}
	}
	return true
}

func (e *Engine) labelIndex(ctx context.Context, c index.Candidate, records []*Record) (IndexOutcome, error) {
	outcome := IndexOutcome{Candidate: c}
	eligible := make([]*Record, 0, len(records))
	for _, rec := range records {
		if rec.Query.TouchesTable(c.Table) {
			eligible = append(eligible, rec)
		}
	}
	outcome.Eligible = len(eligible)
	if len(eligible) == 0 {
		log.Info().Str("index", c.Name).Msg("no query touches the index table, skipping")
		outcome.Skipped = true
		return outcome, nil
	}

	if err := e.indexes.Create(ctx, c); err != nil {
		log.Warn().Err(err).Str("index", c.Name).Msg("skipping labels of index")
		outcome.DropFailed = !e.dropWithRetry(ctx, c)
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		return outcome, nil
	}
	outcome.Created = true

	bar := e.newBar(len(eligible), c.Name)
	for _, rec := range eligible {
		if ctx.Err() != nil {
			break
		}
		m, err := e.measurer.Measure(ctx, rec.Query)
		bar.Add(1)
		if err != nil {
			log.Warn().
				Err(err).
				Int("queryId", rec.Query.ID).
				Str("index", c.Name).
				Msg("failed to re-measure query, keeping label 0")
			continue
		}
		outcome.Remeasured++
		rec.IndexedTimes[c.Name] = m.ElapsedMS
		if m.ElapsedMS < rec.BaseTimeMS*e.opts.ImprovementThreshold {
			rec.Labels[c.Name] = 1
			outcome.Improved++
		}
		log.Debug().
			Int("queryId", rec.Query.ID).
			Str("index", c.Name).
			Float64("baseTimeMs", rec.BaseTimeMS).
			Float64("indexedTimeMs", m.ElapsedMS).
			Int("label", rec.Labels[c.Name]).
			Msg("query re-measured")
	}
	bar.Finish()

	outcome.DropFailed = !e.dropWithRetry(ctx, c)
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}
	log.Info().
		Str("index", c.Name).
		Int("eligible", outcome.Eligible).
		Int("remeasured", outcome.Remeasured).
		Int("improved", outcome.Improved).
		Msg("index phase finished")
	return outcome, nil
}

// Run performs the whole experiment for a pool of queries. Failures
// of individual measurements and index operations are logged and
// reflected in the result summary, only a cancelled context stops
// the run. In such case, any active candidate index is removed first
// and the partial result is returned along with the context error.
// Labels of the unfinished candidates are not valid in a partial result.
func (e *Engine) Run(ctx context.Context, pool []workload.Query) (*Result, error) {
	result := &Result{
		RunID:   uuid.New(),
		Records: []*Record{},
		Summary: Summary{
			NumQueries: len(pool),
			Indexes:    []IndexOutcome{},
		},
	}
	log.Info().
		Str("runId", result.RunID.String()).
		Int("numQueries", len(pool)).
		Int("numCandidates", len(e.opts.Candidates)).
		Float64("threshold", e.opts.ImprovementThreshold).
		Msg("starting index impact experiment")

	if len(pool) == 0 {
		log.Warn().Msg("empty query pool, nothing to do")
		return result, nil
	}
	e.dropAll(ctx)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	records, err := e.baseline(ctx, pool)
	result.Records = records
	result.Summary.NumSurvived = len(records)
	if err != nil {
		return result, err
	}
	log.Info().
		Int("numQueries", len(pool)).
		Int("numSurvived", len(records)).
		Msg("baseline pass finished")
	if len(records) == 0 {
		log.Warn().Msg("no query survived the baseline pass")
		return result, nil
	}

	for i, c := range e.opts.Candidates {
		outcome, err := e.labelIndex(ctx, c, records)
		result.Summary.Indexes = append(result.Summary.Indexes, outcome)
		if err != nil {
			return result, err
		}
		if outcome.DropFailed {
			// with a stale index in the database, any further
			// measurement would be confounded
			log.Error().
				Str("index", c.Name).
				Msg("candidate index could not be removed, skipping all the remaining indexes")
			for _, rc := range e.opts.Candidates[i+1:] {
				result.Summary.Indexes = append(
					result.Summary.Indexes,
					IndexOutcome{Candidate: rc, Skipped: true},
				)
			}
			break
		}
	}
	return result, nil
}

func NewEngine(measurer Measurer, catalog CatalogReader, indexes IndexManager, opts Options) *Engine {
	if opts.ImprovementThreshold <= 0 {
		opts.ImprovementThreshold = DfltImprovementThreshold
	}
	return &Engine{
		measurer: measurer,
		catalog:  catalog,
		indexes:  indexes,
		opts:     opts,
	}
}
