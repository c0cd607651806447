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

package aligner

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/xopen"
)

// SamFile reads alignments from an existing SAM file, e.g., for re-filtering
// with other thresholds. It never runs an aligner and needs no index.
type SamFile struct {
	path string
}

// NewSamFile returns a backend reading cfg.SamPath.
func NewSamFile(cfg *config.Config) *SamFile {
	return &SamFile{path: cfg.SamPath}
}

func (s *SamFile) Name() string { return config.MethodSamFile }

// Path returns the SAM file.
func (s *SamFile) Path() string { return s.path }

func (s *SamFile) IndexExists() (bool, error) { return true, nil }

func (s *SamFile) MakeIndex() error { return nil }

// Run opens the SAM file, plain or compressed.
func (s *SamFile) Run(_ Reads) (*Stream, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, &AlignmentExecutionError{Tool: config.MethodSamFile, Err: err}
	}
	if info.Size() == 0 {
		return newFileStream(config.MethodSamFile, io.NopCloser(strings.NewReader(""))), nil
	}

	fh, err := xopen.Ropen(s.path)
	if err != nil {
		return nil, &AlignmentExecutionError{Tool: config.MethodSamFile, Err: errors.Wrap(err, s.path)}
	}
	return newFileStream(config.MethodSamFile, fh), nil
}
