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

package cnf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/czcorpus/cnc-gokit/fs"
	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/idxprobe/backend"
	"github.com/czcorpus/idxprobe/dataset"
	"github.com/czcorpus/idxprobe/index"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	dfltScaleFactor          = 10
	dfltQueryCount           = 50
	dfltImprovementThreshold = 1.0
	dfltWorkloadLogPath      = "project_execution_log.txt"
	dfltDBHost               = "localhost"
	dfltDBUser               = "postgres"
	dfltPgPort               = 5432
	dfltMySQLPort            = 3306

	EnvDBPassword = "IDXPROBE_DB_PASSWORD"
)

// DefaultCandidates are single column indexes we consider
// potentially useful for the generated TPC-H workload
var DefaultCandidates = []index.Candidate{
	{Name: "idx_lineitem_shipdate", Table: "lineitem", Column: "l_shipdate"},
	{Name: "idx_lineitem_discount", Table: "lineitem", Column: "l_discount"},
	{Name: "idx_lineitem_quantity", Table: "lineitem", Column: "l_quantity"},
	{Name: "idx_orders_orderdate", Table: "orders", Column: "o_orderdate"},
	{Name: "idx_customer_mktsegment", Table: "customer", Column: "c_mktsegment"},
	{Name: "idx_orders_custkey", Table: "orders", Column: "o_custkey"},
}

type Conf struct {
	srcPath     string
	Logging     logging.LoggingConf `json:"logging" yaml:"logging"`
	DB          backend.DBConf      `json:"db" yaml:"db"`
	ScaleFactor int                 `json:"scaleFactor" yaml:"scaleFactor"`

	// QueryCount is the size of the generated query pool
	QueryCount int `json:"queryCount" yaml:"queryCount"`

	DataFile        string `json:"dataFile" yaml:"dataFile"`
	LayoutFile      string `json:"layoutFile" yaml:"layoutFile"`
	WorkloadLogPath string `json:"workloadLogPath" yaml:"workloadLogPath"`

	CandidateIndexes []index.Candidate `json:"candidateIndexes" yaml:"candidateIndexes"`

	// ImprovementThreshold is the ratio of indexed to baseline time
	// below which a query is considered improved by an index.
	// E.g. 1.0 means any improvement counts, 0.9 means the query
	// must be at least 10% faster.
	ImprovementThreshold float64 `json:"improvementThreshold" yaml:"improvementThreshold"`

	// RandomSeed allows replaying a workload. Zero means
	// a random seed.
	RandomSeed uint64 `json:"randomSeed" yaml:"randomSeed"`
}

func (conf *Conf) SrcPath() string {
	return conf.srcPath
}

func unmarshalByExt(path string, data []byte, conf *Conf) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, conf); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, conf); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	return nil
}

// loadEnv loads an optional .env file located next to the config
// file. Already defined environment variables are not overwritten.
func loadEnv(confPath string) {
	envPath := filepath.Join(filepath.Dir(confPath), ".env")
	isFile, err := fs.IsFile(envPath)
	if err != nil {
		log.Warn().Err(err).Str("path", envPath).Msg("failed to test .env file")
		return
	}
	if !isFile {
		return
	}
	if err := godotenv.Load(envPath); err != nil {
		log.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		return
	}
	log.Info().Str("path", envPath).Msg("loaded .env file")
}

// Load reads a JSON or YAML (by file extension) configuration.
func Load(path string) (*Conf, error) {
	if path == "" {
		return nil, fmt.Errorf("cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	var conf Conf
	conf.srcPath = path
	if err := unmarshalByExt(path, rawData, &conf); err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	loadEnv(path)
	if pwd := os.Getenv(EnvDBPassword); pwd != "" {
		if conf.DB.Passwd != "" {
			log.Warn().Msgf("both db.passwd and %s are set, using the latter", EnvDBPassword)
		}
		conf.DB.Passwd = pwd
	}
	return &conf, nil
}

// LoadConfig is like Load but any error is fatal
func LoadConfig(path string) *Conf {
	conf, err := Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return conf
}

// Validate tests values which cannot be replaced by defaults
func Validate(conf *Conf) error {
	if conf.ScaleFactor < 0 {
		return fmt.Errorf("invalid scaleFactor %d", conf.ScaleFactor)
	}
	if conf.QueryCount < 0 {
		return fmt.Errorf("invalid queryCount %d", conf.QueryCount)
	}
	if conf.ImprovementThreshold < 0 {
		return fmt.Errorf("invalid improvementThreshold %01.2f", conf.ImprovementThreshold)
	}
	if _, err := backend.DialectFor(conf.DB.Type); err != nil {
		return fmt.Errorf("invalid db.type: %w", err)
	}
	if conf.DB.Type == backend.TypeSQLite && conf.DB.Path == "" {
		return fmt.Errorf("db.path must be specified for %s", backend.TypeSQLite)
	}
	if err := index.ValidateAll(conf.CandidateIndexes); err != nil {
		return err
	}
	return nil
}

func applyDBDefaults(conf *Conf) {
	if conf.DB.Type == "" {
		conf.DB.Type = backend.TypePostgres
		log.Warn().Str("type", conf.DB.Type).Msg("db.type not specified, using default")
	}
	if conf.DB.Type == backend.TypeSQLite {
		return
	}
	if conf.DB.Host == "" {
		conf.DB.Host = dfltDBHost
		log.Warn().Str("host", conf.DB.Host).Msg("db.host not specified, using default")
	}
	if conf.DB.Port == 0 {
		conf.DB.Port = dfltPgPort
		if conf.DB.Type == backend.TypeMySQL {
			conf.DB.Port = dfltMySQLPort
		}
		log.Warn().Int("port", conf.DB.Port).Msg("db.port not specified, using default")
	}
	if conf.DB.User == "" {
		conf.DB.User = dfltDBUser
		log.Warn().Str("user", conf.DB.User).Msg("db.user not specified, using default")
	}
	if conf.DB.Name == "" {
		if conf.ScaleFactor == 10 {
			conf.DB.Name = "tpch_db_10"

		} else {
			conf.DB.Name = "tpch_db"
		}
		log.Warn().Str("db", conf.DB.Name).Msg("db.db not specified, using default")
	}
	if conf.DB.Type == backend.TypePostgres && conf.DB.SSLMode == "" {
		conf.DB.SSLMode = "disable"
		log.Warn().Str("sslMode", conf.DB.SSLMode).Msg("db.sslMode not specified, using default")
	}
}

// ApplyDefaults fills in defaults for all the missing values
func ApplyDefaults(conf *Conf) {
	if conf.ScaleFactor == 0 {
		conf.ScaleFactor = dfltScaleFactor
		log.Warn().Msgf("scaleFactor not specified, using default: %d", dfltScaleFactor)
	}
	if conf.QueryCount == 0 {
		conf.QueryCount = dfltQueryCount
		log.Warn().Msgf("queryCount not specified, using default: %d", dfltQueryCount)
	}
	applyDBDefaults(conf)
	if conf.DataFile == "" {
		conf.DataFile = fmt.Sprintf("training_data_sf%d.csv", conf.ScaleFactor)
		log.Warn().Str("path", conf.DataFile).Msg("dataFile not specified, using default")
	}
	if conf.LayoutFile == "" {
		conf.LayoutFile = dataset.LayoutPath(conf.DataFile)
		log.Warn().Str("path", conf.LayoutFile).Msg("layoutFile not specified, using default")
	}
	if conf.WorkloadLogPath == "" {
		conf.WorkloadLogPath = dfltWorkloadLogPath
		log.Warn().Str("path", conf.WorkloadLogPath).Msg("workloadLogPath not specified, using default")
	}
	if len(conf.CandidateIndexes) == 0 {
		conf.CandidateIndexes = make([]index.Candidate, len(DefaultCandidates))
		copy(conf.CandidateIndexes, DefaultCandidates)
		log.Warn().Int("numIndexes", len(DefaultCandidates)).Msg("candidateIndexes not specified, using defaults")
	}
	if conf.ImprovementThreshold == 0 {
		conf.ImprovementThreshold = dfltImprovementThreshold
		log.Warn().Msgf("improvementThreshold not specified, using default: %01.2f", dfltImprovementThreshold)
	}
}

// ValidateAndDefaults fills in defaults for all the missing values
// and then validates the configuration. Any problem is fatal.
func ValidateAndDefaults(conf *Conf) {
	ApplyDefaults(conf)
	if err := Validate(conf); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
}
