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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
)

// Alignment methods.
const (
	MethodBwa     = "bwa"
	MethodBowtie2 = "bowtie2"
	MethodSamFile = "samfile"
)

// Config is the fully-resolved configuration of a run.
// The field tags follow the keys of the per-organism dotfiles.
type Config struct {
	Method      string `json:"method" toml:"method"`
	BwaPath     string `json:"bwa_fp" toml:"bwa_fp"`
	Bowtie2Path string `json:"bowtie2_fp" toml:"bowtie2_fp"`
	NumThreads  int    `json:"num_threads" toml:"num_threads"`

	SamPath     string `json:"sam_fp,omitempty" toml:"sam_fp"`
	KeepSamFile bool   `json:"keep_sam_file" toml:"keep_sam_file"`

	IndexDir   string `json:"index_dir" toml:"index_dir"`
	GenomeDir  string `json:"genome_dir" toml:"genome_dir"`
	GenomePath string `json:"genome_fp,omitempty" toml:"genome_fp"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Method:      MethodBwa,
		BwaPath:     "bwa",
		Bowtie2Path: "bowtie2",
		NumThreads:  8,
		IndexDir:    "~/.decontam/index",
		GenomeDir:   "~/.decontam/genomes",
	}
}

// DefaultFile returns the dotfile consulted for an organism
// when no configuration file is given.
func DefaultFile(organism string) (string, error) {
	return homedir.Expand(fmt.Sprintf("~/.decontam_%s.json", organism))
}

// Load overlays a user configuration file on the defaults.
// An empty file falls back to the organism dotfile, if it exists.
// Files ending with ".toml" are parsed as TOML, others as JSON.
func Load(file string, organism string) (*Config, error) {
	cfg := Default()

	if file == "" {
		dotfile, err := DefaultFile(organism)
		if err != nil {
			return nil, err
		}
		existed, err := pathutil.Exists(dotfile)
		if err != nil {
			return nil, errors.Wrap(err, dotfile)
		}
		if !existed {
			return cfg, cfg.expand()
		}
		file = dotfile
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	if strings.HasSuffix(strings.ToLower(file), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ConfigurationError{Field: "config-file", Msg: fmt.Sprintf("%s: %s", file, err)}
	}

	return cfg, cfg.expand()
}

func (cfg *Config) expand() error {
	var err error
	for _, p := range []*string{&cfg.IndexDir, &cfg.GenomeDir, &cfg.GenomePath, &cfg.SamPath} {
		if *p == "" {
			continue
		}
		v := *p
		if v, err = homedir.Expand(v); err != nil {
			return errors.Wrapf(err, "expand path: %s", *p)
		}
		*p = filepath.Clean(v)
	}
	return nil
}

// Executable returns the aligner executable of the configured method.
func (cfg *Config) Executable() string {
	switch cfg.Method {
	case MethodBwa:
		return cfg.BwaPath
	case MethodBowtie2:
		return cfg.Bowtie2Path
	}
	return ""
}

// Validate checks the invariants of the configuration.
func (cfg *Config) Validate() error {
	if cfg.NumThreads < 1 {
		return &ConfigurationError{Field: "num_threads", Msg: fmt.Sprintf("should be positive, given: %d", cfg.NumThreads)}
	}

	switch cfg.Method {
	case MethodSamFile:
		if cfg.SamPath == "" {
			return &ConfigurationError{Field: "sam_fp", Msg: "required by method samfile"}
		}
		return nil
	case MethodBwa, MethodBowtie2:
		exe := cfg.Executable()
		if exe == "" {
			return &ConfigurationError{Field: cfg.Method + "_fp", Msg: "executable not set"}
		}
		if _, err := exec.LookPath(exe); err != nil {
			return &ConfigurationError{Field: cfg.Method + "_fp", Msg: err.Error()}
		}
		if cfg.IndexDir == "" {
			return &ConfigurationError{Field: "index_dir", Msg: "required by method " + cfg.Method}
		}
		return nil
	}

	return &ConfigurationError{Field: "method", Msg: fmt.Sprintf("unknown method: %q, available: bwa, bowtie2, samfile", cfg.Method)}
}

// ValidateThresholds checks that both thresholds are fractions in [0, 1].
func ValidateThresholds(pct, frac float64) error {
	if !(pct >= 0 && pct <= 1) {
		return &ConfigurationError{Field: "pct", Msg: fmt.Sprintf("should be in range of [0, 1], given: %v", pct)}
	}
	if !(frac >= 0 && frac <= 1) {
		return &ConfigurationError{Field: "frac", Msg: fmt.Sprintf("should be in range of [0, 1], given: %v", frac)}
	}
	return nil
}

// ConfigurationError reports a bad configuration value.
// It is always raised before any alignment work starts.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %s: %s", e.Field, e.Msg)
}
