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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/benchmark"
	"github.com/czcorpus/idxprobe/cnf"
	"github.com/czcorpus/idxprobe/dataset"
	"github.com/czcorpus/idxprobe/experiment"
	"github.com/czcorpus/idxprobe/feats"
	"github.com/czcorpus/idxprobe/index"
	"github.com/czcorpus/idxprobe/stats"
	"github.com/czcorpus/idxprobe/workload"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

const (
	errColor  = color.FgHiRed
	headColor = color.FgHiCyan
)

func openSession(ctx context.Context, conf *cnf.Conf) *backend.Session {
	sess, err := backend.Open(ctx, conf.DB)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorConnectionFailed)
	}
	return sess
}

func closeSession(sess *backend.Session) {
	if err := sess.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database session")
	}
}

func printSummary(res *experiment.Result) {
	color.New(headColor).Fprintf(os.Stdout, "\nrun %s\n", res.RunID)
	fmt.Fprintf(
		os.Stdout,
		"queries: %d, with baseline: %d\n",
		res.Summary.NumQueries, res.Summary.NumSurvived,
	)
	for _, outcome := range res.Summary.Indexes {
		var status string
		switch {
		case outcome.Skipped:
			status = "skipped"
		case !outcome.Created:
			status = "not created"
		default:
			status = fmt.Sprintf(
				"improved %d of %d (re-measured %d)",
				outcome.Improved, outcome.Eligible, outcome.Remeasured,
			)
		}
		if outcome.DropFailed {
			status += ", DROP FAILED"
		}
		fmt.Fprintf(os.Stdout, "  %-28s %s\n", outcome.Candidate.String(), status)
	}
}

func runActionCollect(ctx context.Context, conf *cnf.Conf, quiet bool) {
	sess := openSession(ctx, conf)
	defer closeSession(sess)

	composer := workload.NewComposer(workload.NewRandomSource(conf.RandomSeed), conf.ScaleFactor)
	pool := composer.Pool(conf.QueryCount)
	log.Info().
		Int("numQueries", len(pool)).
		Int("numCandidates", len(conf.CandidateIndexes)).
		Msg("generated query pool")

	engine := experiment.NewEngine(
		benchmark.NewExecutor(sess),
		stats.NewCatalog(sess),
		index.NewManager(sess),
		experiment.Options{
			Candidates:           conf.CandidateIndexes,
			ImprovementThreshold: conf.ImprovementThreshold,
			Quiet:                quiet,
		},
	)
	res, err := engine.Run(ctx, pool)
	if err != nil {
		if errors.Is(err, context.Canceled) && res != nil {
			printSummary(res)
			color.New(errColor).Fprintln(os.Stderr, "interrupted, no dataset written")

		} else {
			color.New(errColor).Fprintln(os.Stderr, err)
		}
		os.Exit(exitErrorExperimentFailed)
	}

	ds := dataset.FromResult(res, conf.CandidateIndexes)
	if err := ds.WriteFile(conf.DataFile); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToSaveData)
	}
	if err := ds.Layout(res.RunID.String()).Save(conf.LayoutFile); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToSaveData)
	}
	printSummary(res)
	fmt.Fprintf(os.Stdout, "dataset: %s\nlayout:  %s\n", conf.DataFile, conf.LayoutFile)
}

func runActionWorkload(ctx context.Context, conf *cnf.Conf) {
	sess := openSession(ctx, conf)
	defer closeSession(sess)

	logFile, err := os.Create(conf.WorkloadLogPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, fmt.Errorf("failed to create execution log: %w", err))
		os.Exit(exitErrorFailedToSaveData)
	}
	defer logFile.Close()

	composer := workload.NewComposer(workload.NewRandomSource(conf.RandomSeed), conf.ScaleFactor)
	runner := benchmark.NewScenarioRunner(
		benchmark.NewExecutor(sess),
		stats.NewCatalog(sess),
		logFile,
		os.Stderr,
	)
	outcomes, err := runner.Run(ctx, composer.Scenarios())
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorExperimentFailed)
	}
	for _, o := range outcomes {
		fmt.Fprintf(
			os.Stdout,
			"%-28s queries: %d, failed: %d, total time: %.2fms\n",
			o.Name, o.NumQueries, o.NumFailed, o.TotalMS,
		)
	}
	fmt.Fprintf(os.Stdout, "execution log: %s\n", conf.WorkloadLogPath)
}

func runActionFeatures(ctx context.Context, conf *cnf.Conf, tpl workload.TemplateLabel, checkLayout bool) {
	if checkLayout {
		layout, err := dataset.LoadLayout(conf.LayoutFile)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorLayoutMismatch)
		}
		if err := layout.Check(feats.Columns()); err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorLayoutMismatch)
		}
	}

	gen := workload.NewGenerator(workload.NewRandomSource(conf.RandomSeed), conf.ScaleFactor)
	var q workload.Query
	if tpl == "" {
		q = gen.RandomRead()

	} else {
		var err error
		q, err = gen.ByTemplate(tpl)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorGeneralFailure)
		}
	}

	sess := openSession(ctx, conf)
	defer closeSession(sess)

	extractor := feats.NewLiveExtractor(stats.NewCatalog(sess))
	rec := extractor.Extract(ctx, q)

	color.New(headColor).Fprintf(os.Stdout, "[%s] %s\n", q.Template, q.SQL)
	fmt.Fprintf(os.Stdout, "args: %v\n\n", q.Args)
	fmt.Fprintln(os.Stdout, strings.Join(feats.Columns(), ","))
	vals := rec.AsVector()
	strVals := make([]string, len(vals))
	for i, v := range vals {
		strVals[i] = fmt.Sprintf("%g", v)
	}
	fmt.Fprintln(os.Stdout, strings.Join(strVals, ","))
	fmt.Fprintln(os.Stdout, rec.AsJSONString())
}
