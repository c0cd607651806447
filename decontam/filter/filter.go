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

// Package filter decides which reads are contaminants and tallies
// the outcome of a run.
package filter

import (
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/decontam/decontam/sam"
)

// Default thresholds.
const (
	DefaultPct  = 0.5
	DefaultFrac = 0.6
)

// Thresholds are the minimum percent identity and aligned-length fraction
// of a contaminant alignment. Both bounds are inclusive.
type Thresholds struct {
	Pct  float64
	Frac float64
}

// NewThresholds checks the values and returns the thresholds.
func NewThresholds(pct, frac float64) (Thresholds, error) {
	if err := config.ValidateThresholds(pct, frac); err != nil {
		return Thresholds{}, err
	}
	return Thresholds{Pct: pct, Frac: frac}, nil
}

// IsContaminant tells whether an alignment meets both thresholds.
// Unmapped records never do.
func (t Thresholds) IsContaminant(r *sam.Record) bool {
	return r.Mapped && r.Identity >= t.Pct && r.AlignedFraction >= t.Frac
}

// hit of a read
type hit struct {
	mates     uint8  // bit 0: single-end/unpaired, bit 1: mate 1, bit 2: mate 2
	reference string // the first reference a contaminant alignment hit
}

// Hits are the reads with at least one contaminant alignment.
// Only flagged reads are stored.
type Hits struct {
	t Thresholds
	m map[string]*hit
}

// NewHits returns an empty collection.
func NewHits(t Thresholds) *Hits {
	return &Hits{t: t, m: make(map[string]*hit, 1024)}
}

// Add evaluates a record and reports whether it flags its read.
func (h *Hits) Add(r *sam.Record) bool {
	if !h.t.IsContaminant(r) {
		return false
	}

	v, ok := h.m[r.ReadName]
	if !ok {
		v = &hit{reference: r.Reference}
		h.m[r.ReadName] = v
	}
	v.mates |= 1 << uint(r.Mate)
	return true
}

// Len returns the number of flagged read names.
func (h *Hits) Len() int { return len(h.m) }

// Contaminant tells whether the read, or either mate of the pair, with the
// given name is flagged, and returns the reference it hit.
// Reads missing from the alignments are clean.
func (h *Hits) Contaminant(name string) (string, bool) {
	v, ok := h.m[sam.NormalizeName(name)]
	if !ok {
		return "", false
	}
	return v.reference, true
}

// MateFlagged tells whether a particular mate (0, 1, or 2) of a read is flagged.
func (h *Hits) MateFlagged(name string, mate int) bool {
	v, ok := h.m[sam.NormalizeName(name)]
	return ok && v.mates&(1<<uint(mate)) != 0
}
