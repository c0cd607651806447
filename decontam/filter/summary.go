// Copyright © 2024-2026 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package filter

// Summary holds the counts of a run. Units are reads for single-end input
// and read pairs for paired-end input.
type Summary struct {
	TotalReads   int            `json:"total_reads"`
	RemovedReads int            `json:"removed_reads"`
	KeptReads    int            `json:"kept_reads"`
	PerReference map[string]int `json:"per_reference_counts"`
}

// Aggregator accumulates counts during the filtering pass.
type Aggregator struct {
	total, removed int
	refs           map[string]int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{refs: make(map[string]int, 8)}
}

// Add counts one read or pair. ref is the reference of a removed one.
func (a *Aggregator) Add(removed bool, ref string) {
	a.total++
	if removed {
		a.removed++
		a.refs[ref]++
	}
}

// Summary returns a copy of the counts, so later additions do not change it.
func (a *Aggregator) Summary() *Summary {
	refs := make(map[string]int, len(a.refs))
	for k, v := range a.refs {
		refs[k] = v
	}
	return &Summary{
		TotalReads:   a.total,
		RemovedReads: a.removed,
		KeptReads:    a.total - a.removed,
		PerReference: refs,
	}
}
