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
	"path/filepath"
	"strconv"

	"github.com/shenwei356/decontam/decontam/config"
)

// small and large indexes
var bowtie2IndexExts = [][]string{
	{".1.bt2", ".2.bt2", ".3.bt2", ".4.bt2", ".rev.1.bt2", ".rev.2.bt2"},
	{".1.bt2l", ".2.bt2l", ".3.bt2l", ".4.bt2l", ".rev.1.bt2l", ".rev.2.bt2l"},
}

// Bowtie2 aligns reads with bowtie2 in local mode, so partially aligned
// reads are soft-clipped instead of forced end to end.
type Bowtie2 struct {
	ref reference
}

// NewBowtie2 returns a bowtie2 backend.
func NewBowtie2(cfg *config.Config, organism string) *Bowtie2 {
	return &Bowtie2{ref: reference{cfg: cfg, organism: organism, tool: config.MethodBowtie2, exts: bowtie2IndexExts}}
}

func (b *Bowtie2) Name() string { return config.MethodBowtie2 }

// Prefix returns the index prefix passed to bowtie2.
func (b *Bowtie2) Prefix() string { return b.ref.Prefix() }

func (b *Bowtie2) IndexExists() (bool, error) { return b.ref.exists() }

// builder returns bowtie2-build next to the bowtie2 executable.
func (b *Bowtie2) builder() string {
	exe := b.ref.cfg.Bowtie2Path
	if filepath.Base(exe) == exe {
		return exe + "-build"
	}
	return filepath.Join(filepath.Dir(exe), filepath.Base(exe)+"-build")
}

func (b *Bowtie2) MakeIndex() error {
	return b.ref.build(func(genome, prefix string) *exec.Cmd {
		return exec.Command(b.builder(), "--threads", strconv.Itoa(b.ref.cfg.NumThreads), genome, prefix)
	})
}

func (b *Bowtie2) args(reads Reads) []string {
	args := []string{"--local", "-p", strconv.Itoa(b.ref.cfg.NumThreads), "-x", b.ref.Prefix()}
	if reads.Paired() {
		return append(args, "-1", reads.Forward, "-2", reads.Reverse)
	}
	return append(args, "-U", reads.Forward)
}

func (b *Bowtie2) Run(reads Reads) (*Stream, error) {
	return startCommand(config.MethodBowtie2, b.ref.cfg.Bowtie2Path, b.args(reads)...)
}
