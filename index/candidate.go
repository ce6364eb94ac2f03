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
	"fmt"

	"github.com/czcorpus/idxprobe/backend"
)

const (
	LabelColumnPrefix = "label_"
)

// Candidate is a single column secondary index we test
// for its impact on queries.
type Candidate struct {
	Name   string `json:"name" yaml:"name"`
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// LabelColumn returns the name of the dataset column
// storing labels for this index
func (c Candidate) LabelColumn() string {
	return LabelColumnPrefix + c.Name
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s ON %s (%s)", c.Name, c.Table, c.Column)
}

func (c Candidate) Validate() error {
	for _, v := range []string{c.Name, c.Table, c.Column} {
		if err := backend.ValidIdent(v); err != nil {
			return fmt.Errorf("invalid candidate index %s: %w", c.Name, err)
		}
	}
	return nil
}

// ValidateAll checks each candidate along with uniqueness of names
func ValidateAll(candidates []Candidate) error {
	names := make(map[string]bool)
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			return err
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate candidate index %s", c.Name)
		}
		names[c.Name] = true
	}
	return nil
}
