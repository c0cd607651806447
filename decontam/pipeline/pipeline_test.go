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
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/decontam/decontam/aligner"
	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/decontam/decontam/filter"
	"github.com/shenwei356/decontam/decontam/sam"
)

func writeFile(t *testing.T, file, data string) string {
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func fastq(names ...string) string {
	var b strings.Builder
	for _, name := range names {
		b.WriteString("@" + name + "\nACGTACGTAC\n+\nIIIIIIIIII\n")
	}
	return b.String()
}

// readIDs returns the IDs of the records in a FASTQ file.
func readIDs(t *testing.T, file string) []string {
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 0, 4)
	for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		if i%4 == 0 {
			ids = append(ids, strings.Fields(line[1:])[0])
		}
	}
	return ids
}

func samTool(t *testing.T, samFile string) *Tool {
	cfg := config.Default()
	cfg.Method = config.MethodSamFile
	cfg.SamPath = samFile
	// never executed
	cfg.BwaPath = "/no/such/bwa"
	cfg.Bowtie2Path = "/no/such/bowtie2"

	tool, err := NewTool(cfg, "human")
	if err != nil {
		t.Fatal(err)
	}
	return tool
}

const singleSam = "@HD\tVN:1.6\tSO:unsorted\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	// identity 0.9, coverage 0.8
	"r1\t0\tchr1\t1\t60\t10S40M\t*\t0\t0\t*\t*\tNM:i:4\n" +
	// identity 0.3, coverage 0.9
	"r2\t0\tchr1\t1\t60\t10S90M\t*\t0\t0\t*\t*\tNM:i:63\n" +
	"this line is broken\n" +
	"\n" +
	"r4\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\t*\n" +
	// exactly at the thresholds
	"r5\t0\tchrM\t1\t60\t4S6M\t*\t0\t0\t*\t*\tNM:i:3\n"

func TestDecontaminateSingleEnd(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), singleSam)
	fq := writeFile(t, filepath.Join(dir, "sample.fastq"), fastq("r1", "r2", "r3", "r4", "r5", "r6"))
	outDir := filepath.Join(dir, "out")

	tool := samTool(t, samFile)
	var progress int
	tool.Progress = func() { progress++ }

	report, err := tool.Decontaminate(fq, "", outDir, 0.5, 0.6)
	if err != nil {
		t.Fatal(err)
	}

	s := report.Data
	if s.TotalReads != 6 || s.RemovedReads != 2 || s.KeptReads != 4 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.KeptReads+s.RemovedReads != s.TotalReads {
		t.Errorf("kept + removed != total")
	}
	if !reflect.DeepEqual(s.PerReference, map[string]int{"chr1": 1, "chrM": 1}) {
		t.Errorf("unexpected per-reference counts: %v", s.PerReference)
	}
	if progress != 6 {
		t.Errorf("progress called %d times", progress)
	}

	ids := readIDs(t, filepath.Join(outDir, "sample.fastq"))
	if !reflect.DeepEqual(ids, []string{"r2", "r3", "r4", "r6"}) {
		t.Errorf("unexpected kept reads: %v", ids)
	}

	if report.Program != Program || report.Version != Version || report.Config.Method != config.MethodSamFile {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, err = os.Stat(filepath.Join(outDir, "sample.sam")); !os.IsNotExist(err) {
		t.Errorf("alignments should not be retained")
	}
}

func TestDecontaminatePaired(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"),
		// p1: only mate 2 is a contaminant
		"p1\t65\tchr1\t1\t60\t10S2M\t=\t1\t0\t*\t*\tNM:i:0\n"+
			"p1\t129\tchr1\t1\t60\t10M\t=\t1\t0\t*\t*\tNM:i:0\n"+
			// p2: both clean
			"p2\t77\t*\t0\t0\t*\t*\t0\t0\t*\t*\n"+
			"p2\t141\t*\t0\t0\t*\t*\t0\t0\t*\t*\n"+
			// p3: mate 1 is a contaminant
			"p3\t65\tphiX\t1\t60\t10M\t=\t1\t0\t*\t*\tNM:i:1\n"+
			"p3\t129\tphiX\t1\t60\t1M9S\t=\t1\t0\t*\t*\tNM:i:0\n")
	fq1 := writeFile(t, filepath.Join(dir, "s_R1.fq"), fastq("p1/1", "p2/1", "p3/1", "p4/1"))
	fq2 := writeFile(t, filepath.Join(dir, "s_R2.fq"), fastq("p1/2", "p2/2", "p3/2", "p4/2"))
	outDir := filepath.Join(dir, "out")

	report, err := samTool(t, samFile).Decontaminate(fq1, fq2, outDir, 0.5, 0.6)
	if err != nil {
		t.Fatal(err)
	}

	s := report.Data
	if s.TotalReads != 4 || s.RemovedReads != 2 || s.KeptReads != 2 {
		t.Errorf("unexpected summary: %+v", s)
	}

	// neither mate of a removed pair is written
	ids1 := readIDs(t, filepath.Join(outDir, "s_R1.fq"))
	ids2 := readIDs(t, filepath.Join(outDir, "s_R2.fq"))
	if !reflect.DeepEqual(ids1, []string{"p2/1", "p4/1"}) || !reflect.DeepEqual(ids2, []string{"p2/2", "p4/2"}) {
		t.Errorf("unexpected kept reads: %v %v", ids1, ids2)
	}
}

func TestMateNamesMismatch(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), "")
	fq1 := writeFile(t, filepath.Join(dir, "s_R1.fq"), fastq("p1/1", "p2/1"))
	fq2 := writeFile(t, filepath.Join(dir, "s_R2.fq"), fastq("p1/2", "p3/2"))
	outDir := filepath.Join(dir, "out")

	report, err := samTool(t, samFile).Decontaminate(fq1, fq2, outDir, 0.5, 0.6)
	if err == nil || report != nil {
		t.Fatalf("error expected for mismatched mates")
	}
	for _, file := range []string{"s_R1.fq", "s_R2.fq"} {
		if _, err = os.Stat(filepath.Join(outDir, file)); !os.IsNotExist(err) {
			t.Errorf("partial output left: %s", file)
		}
	}

	// unequal numbers of reads
	fq2 = writeFile(t, filepath.Join(dir, "s_R2.fq"), fastq("p1/2"))
	if _, err = samTool(t, samFile).Decontaminate(fq1, fq2, outDir, 0.5, 0.6); err == nil {
		t.Errorf("error expected for unequal numbers of reads")
	}
}

func TestEmptyInput(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), "")
	fq := writeFile(t, filepath.Join(dir, "empty.fq"), "")
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0777); err != nil { // existing directories are reused
		t.Fatal(err)
	}

	report, err := samTool(t, samFile).Decontaminate(fq, "", outDir, 0.5, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	s := report.Data
	if s.TotalReads != 0 || s.RemovedReads != 0 || s.KeptReads != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}

	info, err := os.Stat(filepath.Join(outDir, "empty.fq"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("output should be empty")
	}
}

func TestKeepSamFile(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), singleSam)
	fq := writeFile(t, filepath.Join(dir, "sample.fastq.gz"), "")
	outDir := filepath.Join(dir, "out")

	tool := samTool(t, samFile)
	tool.Config.KeepSamFile = true

	if _, err := tool.Decontaminate(fq, "", outDir, 0.5, 0.6); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "sample.sam"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != singleSam {
		t.Errorf("retained alignments differ from the input")
	}
}

func TestKeepSamFileInPlace(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0777); err != nil {
		t.Fatal(err)
	}
	// the retained file of an earlier run, re-filtered with other thresholds
	samFile := writeFile(t, filepath.Join(outDir, "sample.sam"), singleSam)
	fq := writeFile(t, filepath.Join(dir, "sample.fq"), fastq("r1", "r2", "r3", "r4", "r5", "r6"))

	tool := samTool(t, samFile)
	tool.Config.KeepSamFile = true

	report, err := tool.Decontaminate(fq, "", outDir, 0.95, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if report.Data.TotalReads != 6 || report.Data.RemovedReads != 0 {
		t.Errorf("unexpected summary: %+v", report.Data)
	}

	data, err := os.ReadFile(samFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != singleSam {
		t.Errorf("alignment file changed while being read")
	}
}

func TestValidateSeqUntouched(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), singleSam)
	fq := writeFile(t, filepath.Join(dir, "s.fq"), fastq("r1", "r2"))

	old := seq.ValidateSeq
	defer func() { seq.ValidateSeq = old }()
	seq.ValidateSeq = true

	if _, err := samTool(t, samFile).Decontaminate(fq, "", filepath.Join(dir, "out"), 0.5, 0.6); err != nil {
		t.Fatal(err)
	}
	if !seq.ValidateSeq {
		t.Errorf("seq.ValidateSeq changed by Decontaminate")
	}
}

func TestMateTally(t *testing.T) {
	hits := filter.NewHits(filter.Thresholds{Pct: 0.5, Frac: 0.5})
	for _, r := range []*sam.Record{
		{ReadName: "a", Mapped: true, Identity: 1, AlignedFraction: 1, Mate: 1},
		{ReadName: "b", Mapped: true, Identity: 1, AlignedFraction: 1, Mate: 2},
		{ReadName: "c", Mapped: true, Identity: 1, AlignedFraction: 1, Mate: 1},
		{ReadName: "c", Mapped: true, Identity: 1, AlignedFraction: 1, Mate: 2},
		{ReadName: "d", Mapped: true, Identity: 1, AlignedFraction: 1},
	} {
		hits.Add(r)
	}

	var m mateTally
	for _, name := range []string{"a/1", "b/1", "c/1", "d"} {
		m.add(hits, name)
	}
	if m != (mateTally{mate1: 1, mate2: 1, both: 1, unpaired: 1}) {
		t.Errorf("unexpected tally: %+v", m)
	}
}

func TestInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), singleSam)
	fq := writeFile(t, filepath.Join(dir, "sample.fastq"), fastq("r1"))
	outDir := filepath.Join(dir, "out")

	for _, v := range [][2]float64{{1.5, 0.6}, {0.5, -0.1}} {
		_, err := samTool(t, samFile).Decontaminate(fq, "", outDir, v[0], v[1])
		var cerr *config.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("%v: expected a configuration error, got: %v", v, err)
		}
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("no work should be done with invalid thresholds")
	}
}

func TestOutputIsInput(t *testing.T) {
	dir := t.TempDir()
	samFile := writeFile(t, filepath.Join(dir, "in.sam"), "")
	fq := writeFile(t, filepath.Join(dir, "sample.fastq"), fastq("r1"))

	if _, err := samTool(t, samFile).Decontaminate(fq, "", dir, 0.5, 0.6); err == nil {
		t.Errorf("error expected when overwriting the input")
	}
}

func fakeBwa(t *testing.T, dir, body string) *Tool {
	exe := filepath.Join(dir, "bwa")
	writeFile(t, exe, "#!/bin/sh\n"+body)
	if err := os.Chmod(exe, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.BwaPath = exe
	cfg.IndexDir = filepath.Join(dir, "index")
	cfg.KeepSamFile = true

	tool, err := NewTool(cfg, "phix")
	if err != nil {
		t.Fatal(err)
	}
	return tool
}

func TestDecontaminateBwa(t *testing.T) {
	dir := t.TempDir()
	tool := fakeBwa(t, dir, `printf 'r1\t0\tphiX\t1\t60\t10M\t*\t0\t0\t*\t*\tNM:i:0\n'
printf 'r2\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\n'
`)
	if _, ok := tool.Backend.(*aligner.Bwa); !ok {
		t.Fatalf("unexpected backend: %s", tool.Backend.Name())
	}
	fq := writeFile(t, filepath.Join(dir, "sample.fq"), fastq("r1", "r2"))
	outDir := filepath.Join(dir, "out")

	report, err := tool.Decontaminate(fq, "", outDir, 0.5, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if report.Data.RemovedReads != 1 || report.Data.KeptReads != 1 || report.Config.Method != config.MethodBwa {
		t.Errorf("unexpected report: %+v %+v", report, report.Data)
	}
	if ids := readIDs(t, filepath.Join(outDir, "sample.fq")); !reflect.DeepEqual(ids, []string{"r2"}) {
		t.Errorf("unexpected kept reads: %v", ids)
	}
	if _, err = os.Stat(filepath.Join(outDir, "sample.sam")); err != nil {
		t.Errorf("alignments should be retained: %s", err)
	}
}

func TestAlignmentFailure(t *testing.T) {
	dir := t.TempDir()
	tool := fakeBwa(t, dir, `printf 'r1\t0\tphiX\t1\t60\t10M\t*\t0\t0\t*\t*\tNM:i:0\n'
echo "[E::bwa_idx_load_from_disk] fail to locate the index files" >&2
exit 1
`)
	fq := writeFile(t, filepath.Join(dir, "sample.fq"), fastq("r1", "r2"))
	outDir := filepath.Join(dir, "out")

	report, err := tool.Decontaminate(fq, "", outDir, 0.5, 0.6)
	var aerr *aligner.AlignmentExecutionError
	if !errors.As(err, &aerr) || report != nil {
		t.Fatalf("expected an alignment execution error, got: %v", err)
	}
	for _, file := range []string{"sample.fq", "sample.sam"} {
		if _, err = os.Stat(filepath.Join(outDir, file)); !os.IsNotExist(err) {
			t.Errorf("partial output left: %s", file)
		}
	}
}

func TestFilepathTrimExtension(t *testing.T) {
	for file, name := range map[string]string{
		"a.fastq.gz": "a",
		"a_R1.fq":    "a_R1",
		"a":          "a",
		"a.b.fa.xz":  "a.b",
	} {
		if n, _, _ := filepathTrimExtension(file, nil); n != name {
			t.Errorf("%s: expected: %s, result: %s", file, name, n)
		}
	}
}
