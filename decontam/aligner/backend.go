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

// Package aligner manages reference indexes and produces alignment
// streams with bwa, bowtie2, or a precomputed SAM file.
package aligner

import (
	"fmt"

	"github.com/shenwei356/decontam/decontam/config"
)

// Reads are the input FASTQ files of a run.
type Reads struct {
	Forward string
	Reverse string // empty for single-end reads
}

// Paired tells whether reverse reads are given.
func (r Reads) Paired() bool { return r.Reverse != "" }

// Backend aligns reads against the index of one organism.
type Backend interface {
	// Name returns the method name, e.g., bwa.
	Name() string

	// IndexExists checks whether a complete index is on disk.
	IndexExists() (bool, error)

	// MakeIndex builds the index. It does nothing if the index exists.
	MakeIndex() error

	// Run starts the alignment and returns the stream of SAM lines.
	// Every call runs the backend again.
	Run(reads Reads) (*Stream, error)
}

// New returns the backend of the configured method for an organism.
func New(cfg *config.Config, organism string) (Backend, error) {
	if organism == "" {
		return nil, &config.ConfigurationError{Field: "organism", Msg: "empty"}
	}

	switch cfg.Method {
	case config.MethodBwa:
		return NewBwa(cfg, organism), nil
	case config.MethodBowtie2:
		return NewBowtie2(cfg, organism), nil
	case config.MethodSamFile:
		return NewSamFile(cfg), nil
	}
	return nil, &config.ConfigurationError{Field: "method", Msg: fmt.Sprintf("unknown method: %q", cfg.Method)}
}
