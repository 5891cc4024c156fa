package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/annebeks/prepsim/internal/export"
	"github.com/annebeks/prepsim/internal/models"
)

// writeTable writes a raw CSV where run r has susceptible = base - week*(r+1).
func writeTable(t *testing.T, dir, mode string, base, runs, weeks int) string {
	t.Helper()
	series := make([][]models.Snapshot, runs)
	for r := range series {
		for w := 0; w <= weeks; w++ {
			s := base - w*(r+1)
			series[r] = append(series[r], models.Snapshot{Susceptible: s, Acute: 100 - s})
		}
	}
	meta := export.Meta{Mode: mode, PrEP: 0.5, Weeks: weeks, Nodes: 100, NetworkSeed: 67, Iterations: runs, Time: time.Now()}
	path, err := export.WriteRawFile(dir, meta, series)
	if err != nil {
		t.Fatalf("writing %s table: %v", mode, err)
	}
	return path
}

func TestCompareCmd_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	a := writeTable(t, tmpDir, "standard", 90, 3, 10)
	b := writeTable(t, tmpDir, "targeted_f", 95, 3, 8)

	out := mustExecute(t, "compare", a, b, "--every", "4", "--json")
	var cmp comparison
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		t.Fatalf("compare --json output is not JSON: %v\n%s", err, out)
	}

	if cmp.State != "susceptible" {
		t.Errorf("default state = %q, want susceptible", cmp.State)
	}
	if cmp.Baseline.Mode != "standard" || cmp.Candidate.Mode != "targeted_f" || cmp.Baseline.Runs != 3 {
		t.Errorf("unexpected sides: %+v / %+v", cmp.Baseline, cmp.Candidate)
	}

	// Common range is weeks 0..8; sampled every 4 weeks.
	var weeks []int
	for _, w := range cmp.Weeks {
		weeks = append(weeks, w.Week)
	}
	if len(weeks) != 3 || weeks[0] != 0 || weeks[1] != 4 || weeks[2] != 8 {
		t.Fatalf("sampled weeks = %v, want [0 4 8]", weeks)
	}

	// Week 4: runs lose 4, 8, 12 -> baseline 86, 82, 78.
	w4 := cmp.Weeks[1]
	if w4.Baseline.Median != 82 || w4.Baseline.Q1 != 80 || w4.Baseline.Q3 != 84 {
		t.Errorf("unexpected baseline band at week 4: %+v", w4.Baseline)
	}
	if w4.Candidate.Median != 87 {
		t.Errorf("candidate median at week 4 = %v, want 87", w4.Candidate.Median)
	}
}

func TestCompareCmd_Table(t *testing.T) {
	tmpDir := t.TempDir()
	a := writeTable(t, tmpDir, "standard", 90, 2, 2)
	b := writeTable(t, tmpDir, "targeted_m", 90, 2, 2)

	out := mustExecute(t, "compare", a, b, "--state", "acute")
	if !strings.Contains(out, "State: acute") || !strings.Contains(out, "WEEK") {
		t.Errorf("unexpected table output:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 8 {
		t.Errorf("expected 8 lines (3 header, blank, column header, 3 weeks), got %d:\n%s", lines, out)
	}
}

func TestCompareCmd_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	a := writeTable(t, tmpDir, "standard", 90, 2, 2)

	tests := []struct {
		name string
		args []string
	}{
		{"one file", []string{"compare", a}},
		{"unknown state", []string{"compare", a, a, "--state", "zombie"}},
		{"zero every", []string{"compare", a, a, "--every", "0"}},
		{"missing file", []string{"compare", a, a + ".missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
