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
	"path/filepath"
	"testing"

	"github.com/shenwei356/decontam/decontam/config"
	"github.com/shenwei356/decontam/decontam/filter"
	"github.com/shenwei356/decontam/decontam/pipeline"
)

func TestSaveSummary(t *testing.T) {
	cfg := config.Default()
	cfg.Method = config.MethodSamFile
	cfg.SamPath = "a.sam"

	report := &pipeline.Report{
		Program: pipeline.Program,
		Version: pipeline.Version,
		Config:  cfg,
		Data: &filter.Summary{
			TotalReads:   3,
			RemovedReads: 1,
			KeptReads:    2,
			PerReference: map[string]int{"chr1": 1},
		},
	}

	file := filepath.Join(t.TempDir(), "summary.json")
	if err := saveSummary(file, report); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var v struct {
		Program string                 `json:"program"`
		Version string                 `json:"version"`
		Config  map[string]interface{} `json:"config"`
		Data    map[string]interface{} `json:"data"`
	}
	if err = json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}

	if v.Program != "decontam" || v.Version != VERSION {
		t.Errorf("unexpected program info: %s %s", v.Program, v.Version)
	}
	if v.Config["method"] != "samfile" || v.Config["sam_fp"] != "a.sam" {
		t.Errorf("unexpected config: %v", v.Config)
	}
	if v.Data["total_reads"] != 3.0 || v.Data["removed_reads"] != 1.0 || v.Data["kept_reads"] != 2.0 {
		t.Errorf("unexpected data: %v", v.Data)
	}
}
