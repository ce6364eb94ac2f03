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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/idxprobe/cnf"
	"github.com/czcorpus/idxprobe/workload"
)

const (
	actionCollect  = "collect"
	actionWorkload = "workload"
	actionFeatures = "features"
	actionVersion  = "version"
	actionHelp     = "help"

	exitErrorGeneralFailure = iota
	exitErrorConnectionFailed
	exitErrorExperimentFailed
	exitErrorFailedToSaveData
	exitErrorLayoutMismatch
)

var (
	version   string
	buildDate string
	gitCommit string
)

// VersionInfo provides a detailed information about the actual build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

func topLevelUsage() {
	fmt.Fprintf(os.Stderr, "IDXPROBE - measuring impact of secondary indexes on SQL queries\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun index experiments and create a labelled dataset\n", actionCollect)
	fmt.Fprintf(os.Stderr, "\t%s\t\trun the three standard workload sets and write an execution log\n", actionWorkload)
	fmt.Fprintf(os.Stderr, "\t%s\t\tgenerate a query and show its live features\n", actionFeatures)
	fmt.Fprintf(os.Stderr, "\nUse `idxprobe help ACTION` for information about a specific action\n\n")
}

func newCmdHelp() *flag.FlagSet {
	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)
	cmdHelp.Usage = func() {
		topLevelUsage()
		cmdHelp.PrintDefaults()
	}
	return cmdHelp
}

func setup(confPath string) *cnf.Conf {
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	cnf.ValidateAndDefaults(conf)
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func runActionVersion(ver VersionInfo) {
	fmt.Fprintln(os.Stderr, "idxprobe version: ", ver)
}

func main() {
	version := VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)
	cmdVersion.Usage = func() {
		cmdVersion.PrintDefaults()
	}

	cmdHelp := newCmdHelp()

	cmdCollect := flag.NewFlagSet(actionCollect, flag.ExitOnError)
	collectSeed := cmdCollect.Uint64("seed", 0, "random seed for workload generation (overrides the configured one, 0 = use config)")
	collectQueries := cmdCollect.Int("queries", 0, "number of queries in the pool (overrides the configured one)")
	collectQuiet := cmdCollect.Bool("quiet", false, "do not show progress bars")
	cmdCollect.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionCollect)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdCollect.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nGenerate a pool of queries, measure the impact of each candidate index and write a labelled dataset\n")
	}

	cmdWorkload := flag.NewFlagSet(actionWorkload, flag.ExitOnError)
	workloadSeed := cmdWorkload.Uint64("seed", 0, "random seed for workload generation (overrides the configured one, 0 = use config)")
	cmdWorkload.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionWorkload)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdWorkload.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun the standard workload sets once and write an execution log\n")
	}

	cmdFeatures := flag.NewFlagSet(actionFeatures, flag.ExitOnError)
	featuresTemplate := cmdFeatures.String(
		"template",
		"",
		fmt.Sprintf(
			"query template (%s, %s, %s, %s), default is a random read query",
			workload.TemplateScanHeavy, workload.TemplateAggHeavy,
			workload.TemplateJoinHeavy, workload.TemplateDML,
		),
	)
	featuresNoCheck := cmdFeatures.Bool("no-layout-check", false, "do not verify the features against a stored dataset layout")
	cmdFeatures.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionFeatures)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdFeatures.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nGenerate a query and print its features as seen by a classifier\n")
	}

	action := actionHelp
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch action {
	case actionHelp:
		var subj string
		if len(os.Args) > 2 {
			cmdHelp.Parse(os.Args[2:])
			subj = cmdHelp.Arg(0)
		}
		if subj == "" {
			topLevelUsage()
			return
		}
		switch subj {
		case actionCollect:
			cmdCollect.Usage()
		case actionWorkload:
			cmdWorkload.Usage()
		case actionFeatures:
			cmdFeatures.Usage()
		case actionVersion:
			cmdVersion.Usage()
		default:
			cmdHelp.Usage()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		runActionVersion(version)
	case actionCollect:
		cmdCollect.Parse(os.Args[2:])
		conf := setup(cmdCollect.Arg(0))
		if *collectSeed > 0 {
			conf.RandomSeed = *collectSeed
		}
		if *collectQueries > 0 {
			conf.QueryCount = *collectQueries
		}
		runActionCollect(ctx, conf, *collectQuiet)
	case actionWorkload:
		cmdWorkload.Parse(os.Args[2:])
		conf := setup(cmdWorkload.Arg(0))
		if *workloadSeed > 0 {
			conf.RandomSeed = *workloadSeed
		}
		runActionWorkload(ctx, conf)
	case actionFeatures:
		cmdFeatures.Parse(os.Args[2:])
		conf := setup(cmdFeatures.Arg(0))
		runActionFeatures(ctx, conf, workload.TemplateLabel(*featuresTemplate), !*featuresNoCheck)
	default:
		fmt.Fprintf(os.Stderr, "Unknown action, please use 'help' to get more information\n")
		os.Exit(exitErrorGeneralFailure)
	}
}
