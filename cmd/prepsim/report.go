package main

import (
	"fmt"
	"io"

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/stats"
)

// ensembleReport summarises a finished ensemble for output.
type ensembleReport struct {
	ID           string                `json:"id,omitempty"`
	CSV          string                `json:"csv,omitempty"`
	Mode         string                `json:"mode"`
	PrEP         float64               `json:"prep"`
	Nodes        int                   `json:"nodes"`
	Runs         int                   `json:"runs"`
	Weeks        int                   `json:"weeks"`
	Seeds        []uint64              `json:"seeds,omitempty"`
	Final        map[string]stats.Band `json:"final"`
	FinalSize    stats.Band            `json:"final_size"`
	PeakInfected stats.Band            `json:"peak_infected"`
}

// newEnsembleReport computes final-week bands, final size and peak
// prevalence across runs.
func newEnsembleReport(mode string, prep float64, nodes int, series [][]models.Snapshot) (ensembleReport, error) {
	summary, err := stats.SummarizeSeries(series)
	if err != nil {
		return ensembleReport{}, err
	}

	rep := ensembleReport{
		Mode:         mode,
		PrEP:         prep,
		Nodes:        nodes,
		Runs:         summary.Runs,
		Weeks:        summary.Weeks - 1,
		Final:        make(map[string]stats.Band, models.NumStates),
		FinalSize:    stats.Summarize(stats.FinalSize(series)),
		PeakInfected: stats.Summarize(stats.PeakInfected(series)),
	}
	for _, st := range models.AllStates {
		bands := summary.State(st)
		rep.Final[st.String()] = bands[len(bands)-1]
	}
	return rep, nil
}

func (r ensembleReport) write(w io.Writer, jsonOut bool) error {
	if jsonOut {
		return encodeJSON(w, r)
	}

	fmt.Fprintf(w, "Mode %s, PrEP %.0f%%, %d nodes, %d runs, %d weeks\n", r.Mode, r.PrEP*100, r.Nodes, r.Runs, r.Weeks)
	if r.ID != "" {
		fmt.Fprintf(w, "Experiment: %s\n", r.ID)
	}
	if r.CSV != "" {
		fmt.Fprintf(w, "CSV: %s\n", r.CSV)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-12s %10s %10s %10s %10s %10s\n", "STATE", "MEDIAN", "Q1", "Q3", "MIN", "MAX")
	for _, st := range models.AllStates {
		b := r.Final[st.String()]
		fmt.Fprintf(w, "%-12s %10.1f %10.1f %10.1f %10.0f %10.0f\n", st, b.Median, b.Q1, b.Q3, b.Min, b.Max)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Ever infected:  median %.1f (IQR %.1f-%.1f)\n", r.FinalSize.Median, r.FinalSize.Q1, r.FinalSize.Q3)
	fmt.Fprintf(w, "Peak infected:  median %.1f (IQR %.1f-%.1f)\n", r.PeakInfected.Median, r.PeakInfected.Q1, r.PeakInfected.Q3)
	return nil
}
