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
	"os/exec"
	"strconv"

	"github.com/shenwei356/decontam/decontam/config"
)

var bwaIndexExts = [][]string{{".amb", ".ann", ".bwt", ".pac", ".sa"}}

// Bwa aligns reads with bwa mem.
type Bwa struct {
	ref reference
}

// NewBwa returns a bwa backend.
func NewBwa(cfg *config.Config, organism string) *Bwa {
	return &Bwa{ref: reference{cfg: cfg, organism: organism, tool: config.MethodBwa, exts: bwaIndexExts}}
}

func (b *Bwa) Name() string { return config.MethodBwa }

// Prefix returns the index prefix passed to bwa.
func (b *Bwa) Prefix() string { return b.ref.Prefix() }

func (b *Bwa) IndexExists() (bool, error) { return b.ref.exists() }

func (b *Bwa) MakeIndex() error {
	return b.ref.build(func(genome, prefix string) *exec.Cmd {
		return exec.Command(b.ref.cfg.BwaPath, "index", "-p", prefix, genome)
	})
}

func (b *Bwa) args(reads Reads) []string {
	args := []string{"mem", "-M", "-t", strconv.Itoa(b.ref.cfg.NumThreads), b.ref.Prefix(), reads.Forward}
	if reads.Paired() {
		args = append(args, reads.Reverse)
	}
	return args
}

func (b *Bwa) Run(reads Reads) (*Stream, error) {
	return startCommand(config.MethodBwa, b.ref.cfg.BwaPath, b.args(reads)...)
}
