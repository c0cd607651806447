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
	"os"
	"time"

	"github.com/shenwei356/decontam/decontam/pipeline"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the aligner index of a reference organism",
	Long: `Build the aligner index of a reference organism

Attentions:
  1. The index is saved in <index_dir>/<method>/<organism>/ and reused
     by later runs. An existing index is never rebuilt, delete the
     directory to rebuild it.
  2. Concurrent builds of the same index are not coordinated.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		outputLog := opt.Verbose || opt.Log2File
		timeStart := time.Now()
		defer func() {
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		organism := getFlagRequiredString(cmd, "organism", "")
		cfg := loadConfig(getFlagString(cmd, "config-file"), organism, opt)

		tool, err := pipeline.NewTool(cfg, organism)
		checkError(err)

		existed, err := tool.IndexExists()
		checkError(err)
		if existed {
			if outputLog {
				log.Infof("%s index for %s exists in %s", cfg.Method, organism, cfg.IndexDir)
			}
			return
		}

		if outputLog {
			log.Infof("Decontam v%s", VERSION)
			log.Info()
			log.Infof("building %s index for %s ...", cfg.Method, organism)
		}

		checkError(tool.MakeIndex())

		if outputLog {
			log.Infof("finished building index in %s", time.Since(timeStart))
			log.Infof("index saved in: %s", cfg.IndexDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("config-file", "c", "",
		formatFlagUsage(`Config file, JSON or TOML. ~/.decontam_<organism>.json is used if not given.`))
	indexCmd.Flags().StringP("organism", "", "",
		formatFlagUsage(`Reference organism, e.g., human, phix.`))

	indexCmd.SetUsageTemplate(usageTemplate(""))
}
