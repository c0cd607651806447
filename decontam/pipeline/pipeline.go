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

// Package pipeline runs a decontamination: alignment, filtering, and
// writing of the clean reads.
package pipeline

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/decontam/decontam/aligner"
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/decontam/decontam/filter"
	"github.com/shenwei356/decontam/decontam/sam"
	"github.com/shenwei356/go-logging"
)

// Program information.
const (
	Program = "decontam"
	Version = "0.2.0"
)

var log = logging.MustGetLogger(Program)

// malformed SAM lines reported one by one
var maxParseWarnings = 10

// Report is the result of a run handed back to the caller.
type Report struct {
	Program string          `json:"program"`
	Version string          `json:"version"`
	Config  *config.Config  `json:"config"`
	Data    *filter.Summary `json:"data"`
}

// Tool removes contaminant reads with one backend.
type Tool struct {
	Config  *config.Config
	Backend aligner.Backend

	// Progress, if not nil, is called after each read or pair is written or dropped.
	Progress func()
}

// NewTool returns a tool with the backend selected by the configuration.
func NewTool(cfg *config.Config, organism string) (*Tool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := aligner.New(cfg, organism)
	if err != nil {
		return nil, err
	}
	return &Tool{Config: cfg, Backend: backend}, nil
}

// IndexExists checks the index of the backend.
func (t *Tool) IndexExists() (bool, error) {
	return t.Backend.IndexExists()
}

// MakeIndex builds the index of the backend if missing.
func (t *Tool) MakeIndex() error {
	return t.Backend.MakeIndex()
}

// Outputs returns the output files of a run.
// The clean reads keep the base names of the inputs.
type Outputs struct {
	Forward string
	Reverse string
	Sam     string // retained alignments, if kept
}

// OutputsOf returns the output files for the reads.
func (t *Tool) OutputsOf(reads aligner.Reads, outDir string) Outputs {
	o := Outputs{Forward: filepath.Join(outDir, filepath.Base(reads.Forward))}
	if reads.Paired() {
		o.Reverse = filepath.Join(outDir, filepath.Base(reads.Reverse))
	}
	if t.Config.KeepSamFile {
		name, _, _ := filepathTrimExtension(filepath.Base(reads.Forward), nil)
		o.Sam = filepath.Join(outDir, name+".sam")
	}
	return o
}

// Decontaminate aligns the reads, drops the contaminant ones, and writes
// the rest to outDir in input order. reverse is empty for single-end reads.
// On error, no summary is returned and the files created are removed.
func (t *Tool) Decontaminate(forward, reverse, outDir string, pct, frac float64) (*Report, error) {
	th, err := filter.NewThresholds(pct, frac)
	if err != nil {
		return nil, err
	}

	reads := aligner.Reads{Forward: forward, Reverse: reverse}
	outs := t.OutputsOf(reads, outDir)
	if err = checkPaths(reads, outs); err != nil {
		return nil, err
	}

	if err = makeOutDir(outDir); err != nil {
		return nil, err
	}

	created := make([]string, 0, 3)
	defer func() {
		if err != nil {
			for _, file := range created {
				os.Remove(file)
			}
		}
	}()

	var hits *filter.Hits
	hits, err = t.align(reads, th, outs.Sam, &created)
	if err != nil {
		return nil, err
	}

	var summary *filter.Summary
	summary, err = t.write(reads, hits, outs, &created)
	if err != nil {
		return nil, err
	}

	cfg := *t.Config
	return &Report{
		Program: Program,
		Version: Version,
		Config:  &cfg,
		Data:    summary,
	}, nil
}

func checkPaths(reads aligner.Reads, outs Outputs) error {
	inputs := []string{filepath.Clean(reads.Forward)}
	if reads.Paired() {
		inputs = append(inputs, filepath.Clean(reads.Reverse))
		if filepath.Clean(outs.Forward) == filepath.Clean(outs.Reverse) {
			return fmt.Errorf("forward and reverse reads should have different file names: %s", outs.Forward)
		}
	}
	for _, out := range []string{outs.Forward, outs.Reverse} {
		if out == "" {
			continue
		}
		for _, in := range inputs {
			if filepath.Clean(out) == in {
				return fmt.Errorf("output file should not be one of the input files: %s", out)
			}
		}
	}
	return nil
}

// align runs the backend and collects the contaminant reads.
func (t *Tool) align(reads aligner.Reads, th filter.Thresholds, samFile string, created *[]string) (*filter.Hits, error) {
	// re-filtering a retained file in place
	if sf, ok := t.Backend.(*aligner.SamFile); ok && samFile != "" &&
		filepath.Clean(samFile) == filepath.Clean(sf.Path()) {
		samFile = ""
	}

	s, err := t.Backend.Run(reads)
	if err != nil {
		return nil, err
	}

	var fh *os.File
	var bw *bufio.Writer
	if samFile != "" {
		fh, err = os.Create(samFile)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "create retained alignment file")
		}
		*created = append(*created, samFile)
		bw = bufio.NewWriterSize(fh, os.Getpagesize())
		s.Tee(bw)
	}

	hits := filter.NewHits(th)
	var line []byte
	var r *sam.Record
	var records, malformed int
	for {
		line, err = s.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			s.Close()
			if fh != nil {
				fh.Close()
			}
			return nil, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		r, err = sam.Parse(line)
		if err != nil {
			if err == sam.ErrHeader {
				continue
			}
			malformed++
			if malformed <= maxParseWarnings {
				log.Warningf("%s, skipped", err)
			}
			continue
		}
		records++
		hits.Add(r)
	}

	err = s.Close()
	if fh != nil {
		if e := bw.Flush(); err == nil && e != nil {
			err = errors.Wrap(e, samFile)
		}
		if e := fh.Close(); err == nil && e != nil {
			err = errors.Wrap(e, samFile)
		}
	}
	if err != nil {
		return nil, err
	}

	if malformed > maxParseWarnings {
		log.Warningf("%d malformed alignment lines skipped in total", malformed)
	}
	log.Debugf("%d alignment records parsed, %d reads flagged", records, hits.Len())
	return hits, nil
}

// write streams the reads and writes the clean ones.
func (t *Tool) write(in aligner.Reads, hits *filter.Hits, outs Outputs, created *[]string) (*filter.Summary, error) {
	r1, err := openReads(in.Forward)
	if err != nil {
		return nil, err
	}
	defer r1.Close()

	w1, err := createOutput(outs.Forward)
	if err != nil {
		return nil, err
	}
	*created = append(*created, outs.Forward)
	defer w1.Close()

	var r2 *reads
	var w2 *output
	if in.Paired() {
		r2, err = openReads(in.Reverse)
		if err != nil {
			return nil, err
		}
		defer r2.Close()

		w2, err = createOutput(outs.Reverse)
		if err != nil {
			return nil, err
		}
		*created = append(*created, outs.Reverse)
		defer w2.Close()
	}

	agg := filter.NewAggregator()
	var byMate mateTally
	var n int
	for {
		rec1, err1 := r1.Next()
		if err1 != nil && err1 != io.EOF {
			return nil, err1
		}

		if r2 == nil {
			if err1 == io.EOF {
				break
			}
		} else {
			rec2, err2 := r2.Next()
			if err2 != nil && err2 != io.EOF {
				return nil, err2
			}
			if err1 == io.EOF && err2 == io.EOF {
				break
			}
			if err1 == io.EOF || err2 == io.EOF {
				return nil, fmt.Errorf("unequal numbers of forward and reverse reads after %d pairs", n)
			}

			if sam.NormalizeName(string(rec1.ID)) != sam.NormalizeName(string(rec2.ID)) {
				return nil, fmt.Errorf("mate names do not match at pair %d: %s, %s", n+1, rec1.ID, rec2.ID)
			}

			ref, removed := hits.Contaminant(string(rec1.ID))
			agg.Add(removed, ref)
			if removed {
				byMate.add(hits, string(rec1.ID))
			} else {
				if _, err = w1.Write(rec1.Format(0)); err != nil {
					return nil, err
				}
				if _, err = w2.Write(rec2.Format(0)); err != nil {
					return nil, err
				}
			}
			n++
			if t.Progress != nil {
				t.Progress()
			}
			continue
		}

		ref, removed := hits.Contaminant(string(rec1.ID))
		agg.Add(removed, ref)
		if !removed {
			if _, err = w1.Write(rec1.Format(0)); err != nil {
				return nil, err
			}
		}
		n++
		if t.Progress != nil {
			t.Progress()
		}
	}

	if err = w1.Close(); err != nil {
		return nil, err
	}
	if w2 != nil {
		if err = w2.Close(); err != nil {
			return nil, err
		}
	}

	if r2 != nil {
		log.Debugf("removed pairs flagged by mate 1 only: %d, mate 2 only: %d, both: %d, unpaired records: %d",
			byMate.mate1, byMate.mate2, byMate.both, byMate.unpaired)
	}
	return agg.Summary(), nil
}

// mateTally counts which mates got removed pairs flagged.
type mateTally struct {
	mate1, mate2, both, unpaired int
}

func (m *mateTally) add(hits *filter.Hits, name string) {
	f1, f2 := hits.MateFlagged(name, 1), hits.MateFlagged(name, 2)
	switch {
	case f1 && f2:
		m.both++
	case f1:
		m.mate1++
	case f2:
		m.mate2++
	default:
		m.unpaired++
	}
}
