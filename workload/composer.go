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
	"math/rand/v2"
	"time"
)

const (
	setNumReads  = 5
	setNumWrites = 3
)

// Scenario is a named fixed-shape batch of queries
type Scenario struct {
	Name    string
	Queries []Query
}

// Composer builds batches and pools of queries. It shares a single
// random source among all the generated queries so within a run,
// nothing is generated twice from the same random state.
type Composer struct {
	rnd *rand.Rand
	gen *Generator
}

func numbered(queries []Query) []Query {
	for i := range queries {
		queries[i] = queries[i].withID(i)
	}
	return queries
}

func (c *Composer) Generator() *Generator {
	return c.gen
}

func (c *Composer) mixed() []Query {
	ans := make([]Query, 0, setNumReads+setNumWrites)
	for i := 0; i < setNumReads; i++ {
		ans = append(ans, c.gen.RandomRead())
	}
	for i := 0; i < setNumWrites; i++ {
		ans = append(ans, c.gen.PointUpdate())
	}
	c.rnd.Shuffle(len(ans), func(i, j int) {
		ans[i], ans[j] = ans[j], ans[i]
	})
	return ans
}

func (c *Composer) reads() []Query {
	ans := make([]Query, setNumReads)
	for i := range ans {
		ans[i] = c.gen.RandomRead()
	}
	return ans
}

func (c *Composer) writes() []Query {
	ans := make([]Query, setNumWrites)
	for i := range ans {
		ans[i] = c.gen.PointUpdate()
	}
	return ans
}

// MixedSet returns 5 reads and 3 writes in random order
func (c *Composer) MixedSet() []Query {
	return numbered(c.mixed())
}

// ReadSet returns 5 reads
func (c *Composer) ReadSet() []Query {
	return numbered(c.reads())
}

// WriteSet returns 3 writes
func (c *Composer) WriteSet() []Query {
	return numbered(c.writes())
}

// Pool creates exactly `size` queries by concatenating mixed
// and read-only sets. Query IDs are the positions within the pool.
func (c *Composer) Pool(size int) []Query {
	if size <= 0 {
		return []Query{}
	}
	ans := make([]Query, 0, size+setNumReads*2+setNumWrites)
	for len(ans) < size {
		ans = append(ans, c.mixed()...)
		ans = append(ans, c.reads()...)
	}
	return numbered(ans[:size])
}

// Scenarios returns the three standard sets, each
// numbered separately.
func (c *Composer) Scenarios() []Scenario {
	return []Scenario{
		{Name: "Set 1 (5 SELECT + 3 DML)", Queries: c.MixedSet()},
		{Name: "Set 2 (5 SELECT)", Queries: c.ReadSet()},
		{Name: "Set 3 (3 DML)", Queries: c.WriteSet()},
	}
}

// NewComposer creates a composer driven by the provided random source.
func NewComposer(rnd *rand.Rand, scaleFactor int) *Composer {
	return &Composer{
		rnd: rnd,
		gen: NewGenerator(rnd, scaleFactor),
	}
}

// NewRandomSource creates a random source for a run. With seed == 0,
// the source is seeded from the current time and the workload
// is not expected to be reproducible.
func NewRandomSource(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
