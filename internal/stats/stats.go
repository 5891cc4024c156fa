// Package stats summarises ensembles of trajectories week by week: median,
// interquartile band and mean of each state count across runs.
package stats

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/annebeks/prepsim/internal/models"
)

// ErrNoRuns is returned when there is nothing to summarise.
var ErrNoRuns = errors.New("no runs to summarise")

// Band is the spread of one quantity across runs at one week.
type Band struct {
	Median float64 `json:"median"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// IQR returns Q3 - Q1.
func (b Band) IQR() float64 { return b.Q3 - b.Q1 }

// Quantile returns the p-quantile of values using linear interpolation
// between closest ranks (h = (n-1)p), matching the common "type 7"
// definition. values need not be sorted and is not modified.
func Quantile(p float64, values []float64) float64 {
	if len(values) == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return quantileSorted(p, sorted)
}

func quantileSorted(p float64, sorted []float64) float64 {
	p = min(max(p, 0), 1)
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Summarize returns the band of values.
func Summarize(values []float64) Band {
	if len(values) == 0 {
		nan := math.NaN()
		return Band{Median: nan, Q1: nan, Q3: nan, Mean: nan, Min: nan, Max: nan}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Band{
		Median: quantileSorted(0.5, sorted),
		Q1:     quantileSorted(0.25, sorted),
		Q3:     quantileSorted(0.75, sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
	}
}

// Summary holds one band per week for every state.
type Summary struct {
	Runs  int                     `json:"runs"`
	Weeks int                     `json:"weeks"`
	Bands map[models.State][]Band `json:"-"`
}

// State returns the weekly bands of s.
func (s Summary) State(st models.State) []Band { return s.Bands[st] }

// ByKey returns bands keyed by state key (e.g. "susceptible"), for encoding.
func (s Summary) ByKey() map[string][]Band {
	out := make(map[string][]Band, len(s.Bands))
	for st, bands := range s.Bands {
		out[st.String()] = bands
	}
	return out
}

// Column extracts one state's count per run at every week, truncated to the
// shortest run: out[week][run].
func Column(series [][]models.Snapshot, st models.State) [][]float64 {
	weeks := shortest(series)
	out := make([][]float64, weeks)
	for w := range out {
		row := make([]float64, len(series))
		for r, s := range series {
			row[r] = float64(s[w].Get(st))
		}
		out[w] = row
	}
	return out
}

// SummarizeSeries computes weekly bands for every state across runs. Weeks
// beyond the shortest run are dropped.
func SummarizeSeries(series [][]models.Snapshot) (Summary, error) {
	if len(series) == 0 {
		return Summary{}, ErrNoRuns
	}
	sum := Summary{
		Runs:  len(series),
		Weeks: shortest(series),
		Bands: make(map[models.State][]Band, models.NumStates),
	}
	for _, st := range models.AllStates {
		cols := Column(series, st)
		bands := make([]Band, len(cols))
		for w, vals := range cols {
			bands[w] = Summarize(vals)
		}
		sum.Bands[st] = bands
	}
	return sum, nil
}

// SummarizeColumns computes weekly bands from a table of per-run values,
// rows[week][run]. Used for CSV data where the state family was read as
// plain numbers.
func SummarizeColumns(rows [][]float64) []Band {
	out := make([]Band, len(rows))
	for w, vals := range rows {
		out[w] = Summarize(vals)
	}
	return out
}

// FinalSize returns, per run, the number of people who ever left
// Susceptible by the last recorded week.
func FinalSize(series [][]models.Snapshot) []float64 {
	out := make([]float64, 0, len(series))
	for _, s := range series {
		if len(s) == 0 {
			continue
		}
		last := s[len(s)-1]
		out = append(out, float64(last.Total()-last.Susceptible))
	}
	return out
}

// PeakInfected returns, per run, the largest number of living infected
// people seen in any week.
func PeakInfected(series [][]models.Snapshot) []float64 {
	out := make([]float64, 0, len(series))
	for _, s := range series {
		peak := 0
		for _, snap := range s {
			peak = max(peak, snap.Infected())
		}
		out = append(out, float64(peak))
	}
	return out
}

// SampleWeeks returns the week indices 0, every, 2*every, ... below total,
// always including the last week. every <= 1 returns every week.
func SampleWeeks(total, every int) []int {
	if total <= 0 {
		return nil
	}
	every = max(every, 1)
	var out []int
	for w := 0; w < total; w += every {
		out = append(out, w)
	}
	if out[len(out)-1] != total-1 {
		out = append(out, total-1)
	}
	return out
}

func shortest(series [][]models.Snapshot) int {
	if len(series) == 0 {
		return 0
	}
	n := len(series[0])
	for _, s := range series[1:] {
		n = min(n, len(s))
	}
	return n
}
