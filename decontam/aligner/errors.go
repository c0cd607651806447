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
	"bytes"
	"fmt"
)

// IndexBuildError means the index of an organism could not be built.
// No partial index is left at the final index location.
type IndexBuildError struct {
	Tool     string
	Organism string
	Err      error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("failed to build %s index for %s: %s", e.Tool, e.Organism, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

// AlignmentExecutionError means the aligner exited abnormally.
type AlignmentExecutionError struct {
	Tool   string
	Args   []string
	Err    error
	Stderr string // the last lines of the standard error
}

func (e *AlignmentExecutionError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed: %s", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %s\n%s", e.Tool, e.Err, e.Stderr)
}

func (e *AlignmentExecutionError) Unwrap() error { return e.Err }

// the number of stderr lines kept in errors
var stderrTailLines = 20

func tail(b []byte, n int) string {
	b = bytes.TrimRight(b, "\r\n")
	i := len(b)
	for ; n > 0 && i > 0; n-- {
		j := bytes.LastIndexByte(b[:i], '\n')
		if j < 0 {
			return string(b)
		}
		i = j
	}
	if i == 0 {
		return string(b)
	}
	return string(b[i+1:])
}
