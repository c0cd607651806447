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
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/iafan/cwalk"
	"github.com/pkg/errors"
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/util/pathutil"
)

// TmpDirExt is the path extension of an index being built.
const TmpDirExt = ".tmp"

// reference is the on-disk location of an organism index for one tool:
//
//	<index_dir>/<tool>/<organism>/<organism>.*
type reference struct {
	cfg      *config.Config
	organism string
	tool     string

	// alternative sets of index file extensions, any complete set is an index
	exts [][]string
}

// Dir returns the directory of the index.
func (r *reference) Dir() string {
	return filepath.Join(r.cfg.IndexDir, r.tool, r.organism)
}

// Prefix returns the path prefix of the index files.
func (r *reference) Prefix() string {
	return filepath.Join(r.Dir(), r.organism)
}

func (r *reference) exists() (bool, error) {
	prefix := r.Prefix()
	var ok bool
	var err error
	for _, set := range r.exts {
		complete := true
		for _, ext := range set {
			ok, err = pathutil.Exists(prefix + ext)
			if err != nil {
				return false, errors.Wrap(err, prefix+ext)
			}
			if !ok {
				complete = false
				break
			}
		}
		if complete {
			return true, nil
		}
	}
	return false, nil
}

// build creates the index in a temporary directory and moves it into
// place once the tool succeeds. An existing index is left untouched.
func (r *reference) build(newCmd func(genome, prefix string) *exec.Cmd) error {
	existed, err := r.exists()
	if err != nil {
		return r.buildError(err)
	}
	if existed {
		return nil
	}

	genome, err := r.locateGenome()
	if err != nil {
		return r.buildError(err)
	}

	dir := r.Dir()
	tmpDir := filepath.Clean(dir) + TmpDirExt
	if err = os.RemoveAll(tmpDir); err != nil {
		return r.buildError(err)
	}
	if err = os.MkdirAll(tmpDir, 0777); err != nil {
		return r.buildError(err)
	}

	cmd := newCmd(genome, filepath.Join(tmpDir, r.organism))
	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr
	cmd.Stdout = stderr
	if err = cmd.Run(); err != nil {
		os.RemoveAll(tmpDir)
		return r.buildError(fmt.Errorf("%s: %s\n%s", cmd.Path, err, tail(stderr.Bytes(), stderrTailLines)))
	}

	// leftovers of an incomplete index
	if err = os.RemoveAll(dir); err != nil {
		os.RemoveAll(tmpDir)
		return r.buildError(err)
	}
	if err = os.Rename(tmpDir, dir); err != nil {
		os.RemoveAll(tmpDir)
		return r.buildError(err)
	}

	return nil
}

func (r *reference) buildError(err error) error {
	return &IndexBuildError{Tool: r.tool, Organism: r.organism, Err: err}
}

// locateGenome returns the sequence file of the organism: genome_fp if
// given, or the first file named <organism>.{fa,fasta,fna}[.gz] under
// genome_dir.
func (r *reference) locateGenome() (string, error) {
	if r.cfg.GenomePath != "" {
		ok, err := pathutil.Exists(r.cfg.GenomePath)
		if err != nil {
			return "", errors.Wrap(err, r.cfg.GenomePath)
		}
		if !ok {
			return "", fmt.Errorf("genome file not found: %s", r.cfg.GenomePath)
		}
		return r.cfg.GenomePath, nil
	}

	if r.cfg.GenomeDir == "" {
		return "", fmt.Errorf("neither genome_fp nor genome_dir given for %s", r.organism)
	}
	isDir, err := pathutil.IsDir(r.cfg.GenomeDir)
	if err != nil || !isDir {
		return "", fmt.Errorf("genome directory not found: %s", r.cfg.GenomeDir)
	}

	pattern := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(r.organism) + `\.(fa|fasta|fna)(\.gz)?$`)
	files, err := getFileListFromDir(r.cfg.GenomeDir, pattern, r.cfg.NumThreads)
	if err != nil {
		return "", errors.Wrapf(err, "walking dir: %s", r.cfg.GenomeDir)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no sequence file of %s found in %s", r.organism, r.cfg.GenomeDir)
	}
	sort.Strings(files)
	return files[0], nil
}

func getFileListFromDir(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	if threads < 1 {
		threads = 1
	}
	files := make([]string, 0, 8)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}

	return files, nil
}
