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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/czcorpus/idxprobe/feats"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrLayoutMismatch = errors.New("feature layout mismatch")

// Layout describes columns of a dataset so a consumer (e.g. a trained
// classifier) can verify its inputs are ordered the same way as
// the training data.
type Layout struct {
	RunID          string   `msgpack:"runId"`
	FeatureColumns []string `msgpack:"featureColumns"`
	LabelColumns   []string `msgpack:"labelColumns"`
}

// Check verifies that provided feature columns follow the layout
func (l Layout) Check(featureColumns []string) error {
	if !slices.Equal(l.FeatureColumns, featureColumns) {
		return fmt.Errorf(
			"%w: expected [%s], got [%s]",
			ErrLayoutMismatch,
			strings.Join(l.FeatureColumns, ", "),
			strings.Join(featureColumns, ", "),
		)
	}
	return nil
}

func (l Layout) Save(path string) error {
	data, err := msgpack.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to save dataset layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save dataset layout: %w", err)
	}
	return nil
}

func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to load dataset layout: %w", err)
	}
	var ans Layout
	if err := msgpack.Unmarshal(data, &ans); err != nil {
		return Layout{}, fmt.Errorf("failed to load dataset layout: %w", err)
	}
	return ans, nil
}

// LayoutPath derives the default layout file path from a dataset path
func LayoutPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".layout.msgpack"
}

func (ds *Dataset) Layout(runID string) Layout {
	return Layout{
		RunID:          runID,
		FeatureColumns: feats.Columns(),
		LabelColumns:   slices.Clone(ds.LabelColumns),
	}
}
