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

package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

// Options contains the global flags
type Options struct {
	NumCPUs int // 0 for the value in the config file
	Verbose bool

	LogFile  string
	Log2File bool
}

func getOptions(cmd *cobra.Command) *Options {
	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: getFlagNonNegativeInt(cmd, "threads"),
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",
	}
}

// loadConfig reads the config file, or the default one of the organism,
// and applies the global flags.
func loadConfig(file string, organism string, opt *Options) *config.Config {
	cfg, err := config.Load(file, organism)
	checkError(err)
	if opt.NumCPUs > 0 {
		cfg.NumThreads = opt.NumCPUs
	}
	return cfg
}

func checkFiles(files ...string) {
	for _, file := range files {
		if file == "" {
			continue
		}
		ok, err := pathutil.Exists(file)
		checkError(errors.Wrap(err, file))
		if !ok {
			checkError(fmt.Errorf("file not found: %s", file))
		}
	}
}
