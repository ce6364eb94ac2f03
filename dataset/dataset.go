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

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/czcorpus/idxprobe/experiment"
	"github.com/czcorpus/idxprobe/feats"
	"github.com/czcorpus/idxprobe/index"
)

const (
	ColQueryID  = "query_id"
	ColBaseTime = "base_time"
)

var ErrInvalidDataset = errors.New("invalid dataset")

// Row is a single training example
type Row struct {
	QueryID    int
	Features   []float64
	BaseTimeMS float64
	Labels     []int
}

// Dataset is a labelled dataset with a fixed column layout
type Dataset struct {
	LabelColumns []string
	Rows         []Row
}

// Header returns all the column names in the order they are written
func (ds *Dataset) Header() []string {
	cols := feats.Columns()
	ans := make([]string, 0, len(cols)+len(ds.LabelColumns)+2)
	ans = append(ans, ColQueryID)
	ans = append(ans, cols...)
	ans = append(ans, ColBaseTime)
	ans = append(ans, ds.LabelColumns...)
	return ans
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write writes the header and then all the rows as CSV
func (ds *Dataset) Write(w io.Writer) error {
	numFeats := len(feats.Columns())
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Header()); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	for _, row := range ds.Rows {
		if len(row.Features) != numFeats || len(row.Labels) != len(ds.LabelColumns) {
			return fmt.Errorf("failed to write dataset: %w: row %d does not match the layout", ErrInvalidDataset, row.QueryID)
		}
		rec := make([]string, 0, len(row.Features)+len(row.Labels)+2)
		rec = append(rec, strconv.Itoa(row.QueryID))
		for _, v := range row.Features {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(row.BaseTimeMS))
		for _, v := range row.Labels {
			rec = append(rec, strconv.Itoa(v))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write dataset: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

func (ds *Dataset) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save dataset to a file: %w", err)
	}
	if err := ds.Write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to save dataset to a file: %w", err)
	}
	return nil
}

// FromResult creates a dataset out of experiment records. Label columns
// follow the order of candidates.
func FromResult(res *experiment.Result, candidates []index.Candidate) *Dataset {
	ds := &Dataset{
		LabelColumns: make([]string, len(candidates)),
		Rows:         make([]Row, 0, len(res.Records)),
	}
	for i, c := range candidates {
		ds.LabelColumns[i] = c.LabelColumn()
	}
	for _, rec := range res.Records {
		ds.Rows = append(ds.Rows, Row{
			QueryID:    rec.Query.ID,
			Features:   feats.Extract(rec.Query, rec.DistinctCount),
			BaseTimeMS: rec.BaseTimeMS,
			Labels:     rec.LabelVector(candidates),
		})
	}
	return ds
}

// Read parses a dataset written by Dataset.Write
func Read(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("failed to read dataset: %w: missing header", ErrInvalidDataset)

	} else if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	featCols := feats.Columns()
	numFixed := len(featCols) + 2
	if len(header) < numFixed ||
		header[0] != ColQueryID ||
		!slices.Equal(header[1:len(featCols)+1], featCols) ||
		header[len(featCols)+1] != ColBaseTime {
		return nil, fmt.Errorf("failed to read dataset: %w: unexpected header", ErrInvalidDataset)
	}
	ds := &Dataset{
		LabelColumns: slices.Clone(header[numFixed:]),
		Rows:         []Row{},
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break

		} else if err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}
		row := Row{
			Features: make([]float64, len(featCols)),
			Labels:   make([]int, len(ds.LabelColumns)),
		}
		if row.QueryID, err = strconv.Atoi(rec[0]); err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}
		for i := range featCols {
			if row.Features[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
				return nil, fmt.Errorf("failed to read dataset: %w", err)
			}
		}
		if row.BaseTimeMS, err = strconv.ParseFloat(rec[len(featCols)+1], 64); err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}
		for i := range ds.LabelColumns {
			if row.Labels[i], err = strconv.Atoi(rec[numFixed+i]); err != nil {
				return nil, fmt.Errorf("failed to read dataset: %w", err)
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func ReadFile(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()
	return Read(file)
}
