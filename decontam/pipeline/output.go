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

package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/util/pathutil"
)

var defaultExts = []string{".gz", ".xz", ".zst", ".bz2"}

// filepathTrimExtension splits a file name into the name, the format
// extension, and the compression extension.
func filepathTrimExtension(file string, suffixes []string) (string, string, string) {
	if suffixes == nil {
		suffixes = defaultExts
	}

	var e, e1, e2 string
	f := strings.ToLower(file)
	for _, s := range suffixes {
		e = s
		if strings.HasSuffix(f, e) {
			e2 = e
			file = file[0 : len(file)-len(e)]
			break
		}
	}

	e1 = filepath.Ext(file)
	name := file[0 : len(file)-len(e1)]

	return name, e1, e2
}

// makeOutDir creates the output directory if it does not exist.
func makeOutDir(outDir string) error {
	existed, err := pathutil.DirExists(outDir)
	if err != nil {
		return errors.Wrap(err, outDir)
	}
	if existed {
		return nil
	}
	return errors.Wrap(os.MkdirAll(outDir, 0777), outDir)
}

// output is a buffered output file, gzipped if the name ends with ".gz".
type output struct {
	file string
	fh   *os.File
	gw   io.WriteCloser
	w    *bufio.Writer

	closed bool
}

func createOutput(file string) (*output, error) {
	fh, err := os.Create(file)
	if err != nil {
		return nil, err
	}

	o := &output{file: file, fh: fh}
	if strings.HasSuffix(strings.ToLower(file), ".gz") {
		gw, err := pgzip.NewWriterLevel(fh, pgzip.DefaultCompression)
		if err != nil {
			fh.Close()
			return nil, err
		}
		o.gw = gw
		o.w = bufio.NewWriterSize(gw, os.Getpagesize())
	} else {
		o.w = bufio.NewWriterSize(fh, os.Getpagesize())
	}
	return o, nil
}

func (o *output) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

func (o *output) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	err := o.w.Flush()
	if o.gw != nil {
		if e := o.gw.Close(); err == nil {
			err = e
		}
	}
	if e := o.fh.Close(); err == nil {
		err = e
	}
	return errors.Wrap(err, o.file)
}

// reads is a FASTQ reader, empty files included.
type reads struct {
	file string
	r    *fastx.Reader
}

func openReads(file string) (*reads, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reads file is a directory: %s", file)
	}

	rs := &reads{file: file}
	if info.Size() == 0 {
		return rs, nil
	}
	rs.r, err = fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return rs, nil
}

// Next returns the next record, or io.EOF.
func (rs *reads) Next() (*fastx.Record, error) {
	if rs.r == nil {
		return nil, io.EOF
	}
	record, err := rs.r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, rs.file)
	}
	return record, nil
}

func (rs *reads) Close() {
	if rs.r != nil {
		rs.r.Close()
	}
}
