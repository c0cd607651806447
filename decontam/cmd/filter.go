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
	"encoding/json"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/decontam/decontam/filter"
	"github.com/shenwei356/decontam/decontam/pipeline"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Remove contaminant reads from FASTQ files",
	Long: `Remove contaminant reads from FASTQ files

A read is a contaminant when one of its alignments to the reference genome
has a percent identity >= --pct and an aligned-length fraction >= --frac.
For paired-end reads, a pair is removed if either mate is a contaminant.

Configuration:
  1. Values in the config file (JSON, or TOML with a ".toml" suffix) override
     the defaults. Without --config-file, ~/.decontam_<organism>.json is used
     if it exists.
  2. Keys: method (bwa, bowtie2, samfile), bwa_fp, bowtie2_fp, num_threads,
     index_dir, genome_dir, genome_fp.
  3. The index is built if missing, from genome_fp or the file
     <organism>.{fa,fasta,fna}[.gz] in genome_dir.

Output:
  1. Clean reads are saved in --output-dir with the input file names.
  2. A JSON summary with the counts of total, removed, and kept reads.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		outputLog := opt.Verbose || opt.Log2File
		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------
		// flags

		organism := getFlagRequiredString(cmd, "organism", "")
		fwd := getFlagRequiredString(cmd, "forward-reads", "1")
		rev := getFlagString(cmd, "reverse-reads")
		samFile := getFlagString(cmd, "sam-file")
		summaryFile := getFlagRequiredString(cmd, "summary-file", "s")
		outDir := getFlagRequiredString(cmd, "output-dir", "o")
		pct := getFlagFloat64(cmd, "pct")
		frac := getFlagFloat64(cmd, "frac")

		checkError(config.ValidateThresholds(pct, frac))
		checkFiles(fwd, rev, samFile)

		cfg := loadConfig(getFlagString(cmd, "config-file"), organism, opt)
		if samFile != "" {
			cfg.Method = config.MethodSamFile
			cfg.SamPath = samFile
		}
		cfg.KeepSamFile = getFlagBool(cmd, "keep-sam-file")

		tool, err := pipeline.NewTool(cfg, organism)
		checkError(err)

		if outputLog {
			log.Infof("Decontam v%s", VERSION)
			log.Info()
			log.Infof("organism: %s, method: %s, threads: %d", organism, cfg.Method, cfg.NumThreads)
			log.Infof("thresholds: percent identity >= %v, aligned fraction >= %v", pct, frac)
			if rev != "" {
				log.Infof("input: paired-end reads: %s, %s", fwd, rev)
			} else {
				log.Infof("input: single-end reads: %s", fwd)
			}
			log.Info()
		}

		// ---------------------------------------------------------------
		// index

		existed, err := tool.IndexExists()
		checkError(err)
		if !existed {
			if outputLog {
				log.Infof("building %s index for %s ...", cfg.Method, organism)
			}
			checkError(tool.MakeIndex())
		}

		// ---------------------------------------------------------------
		// filtering

		if outputLog {
			log.Info("aligning and filtering reads ...")
		}

		var pbs *mpb.Progress
		var bar *mpb.Bar
		if opt.Verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(0,
				mpb.PrependDecorators(
					decor.Name("processed reads: ", decor.WC{W: len("processed reads: "), C: decor.DindentRight}),
					decor.CurrentNoUnit("%d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.Name("elapsed: ", decor.WC{W: len("elapsed: ")}),
					decor.Elapsed(decor.ET_STYLE_GO),
					decor.OnComplete(decor.Name(""), ". done"),
				),
			)
			tool.Progress = bar.Increment
		}

		report, err := tool.Decontaminate(fwd, rev, outDir, pct, frac)
		if bar != nil {
			if err != nil {
				bar.Abort(false)
			} else {
				bar.SetTotal(-1, true)
			}
			pbs.Wait()
		}
		checkError(err)

		checkError(saveSummary(summaryFile, report))

		if outputLog {
			logSummary(report.Data, rev != "")
			log.Infof("clean reads saved to: %s", outDir)
			log.Infof("summary saved to: %s", summaryFile)
		}
	},
}

func saveSummary(file string, report *pipeline.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "summary")
	}
	data = append(data, '\n')
	return errors.Wrap(os.WriteFile(file, data, 0644), file)
}

func logSummary(s *filter.Summary, paired bool) {
	unit := "reads"
	if paired {
		unit = "read pairs"
	}
	var pct float64
	if s.TotalReads > 0 {
		pct = float64(s.RemovedReads) / float64(s.TotalReads) * 100
	}
	log.Infof("%s %s in total, %s (%.4f%%) removed, %s kept",
		humanize.Comma(int64(s.TotalReads)), unit,
		humanize.Comma(int64(s.RemovedReads)), pct,
		humanize.Comma(int64(s.KeptReads)))
	for ref, n := range s.PerReference {
		log.Infof("  %s: %s", ref, humanize.Comma(int64(n)))
	}
}

func init() {
	RootCmd.AddCommand(filterCmd)

	// -----------------------------  input  -----------------------------

	filterCmd.Flags().StringP("forward-reads", "1", "",
		formatFlagUsage(`FASTQ file of forward reads.`))
	filterCmd.Flags().StringP("reverse-reads", "2", "",
		formatFlagUsage(`FASTQ file of reverse reads.`))
	filterCmd.Flags().StringP("config-file", "c", "",
		formatFlagUsage(`Config file, JSON or TOML.`))
	filterCmd.Flags().StringP("organism", "", "",
		formatFlagUsage(`Reference organism to filter from, e.g., human, phix.`))
	filterCmd.Flags().StringP("sam-file", "", "",
		formatFlagUsage(`File of alignments to the reference (SAM format). It switches the method to "samfile".`))

	// -----------------------------  filter  -----------------------------

	filterCmd.Flags().Float64P("pct", "", filter.DefaultPct,
		formatFlagUsage(`Minimum percent identity of a contaminant alignment, in [0, 1].`))
	filterCmd.Flags().Float64P("frac", "", filter.DefaultFrac,
		formatFlagUsage(`Minimum fraction of the read length in a contaminant alignment, in [0, 1].`))

	// -----------------------------  output  -----------------------------

	filterCmd.Flags().StringP("output-dir", "o", "",
		formatFlagUsage(`Output directory.`))
	filterCmd.Flags().StringP("summary-file", "s", "",
		formatFlagUsage(`Summary file (JSON).`))
	filterCmd.Flags().BoolP("keep-sam-file", "", false,
		formatFlagUsage(`Write the SAM file to the output directory.`))

	filterCmd.SetUsageTemplate(usageTemplate(""))
}
