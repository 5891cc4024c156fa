// Package export writes and reads raw per-run CSV files and drives batch
// exports over targeting modes and PrEP coverage levels.
//
// A raw file has one row per week. The first three columns are week, mode
// and prep; then every run contributes one column per state, named
// <state>_<run> with runs numbered from 1:
//
//	week,mode,prep,susceptible_1,acute_1,chronic_1,aids_1,dead_1,susceptible_2,...
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/pathutil"
)

// ErrMalformed is returned when a CSV file does not follow the raw layout.
var ErrMalformed = errors.New("malformed raw csv")

// TimestampLayout is the timestamp suffix format of raw file names.
const TimestampLayout = "20060102_150405"

// Meta describes a raw export and determines its file name.
type Meta struct {
	Mode        string
	PrEP        float64
	Weeks       int
	Nodes       int
	NetworkSeed uint64
	Iterations  int
	Time        time.Time
}

// PrEPPercent returns the coverage as a whole percentage.
func (m Meta) PrEPPercent() int {
	return int(math.Round(m.PrEP * 100))
}

// FileName returns
// <mode>_prep<pct>_weeks<w>_nodes<n>_netseed<s>_iters<k>_RAW__<YYYYMMDD_HHMMSS>.csv.
func FileName(m Meta) string {
	return fmt.Sprintf("%s_prep%d_weeks%d_nodes%d_netseed%d_iters%d_RAW__%s.csv",
		m.Mode, m.PrEPPercent(), m.Weeks, m.Nodes, m.NetworkSeed, m.Iterations,
		m.Time.Format(TimestampLayout))
}

var fileNameRE = regexp.MustCompile(`^(.+)_prep(\d+)_weeks(\d+)_nodes(\d+)_netseed(\d+)_iters(\d+)_RAW__(\d{8}_\d{6})(?:_\d+)?\.csv$`)

// ParseFileName recovers the metadata encoded in a raw file name. PrEP is
// the percentage divided by 100. A "_<k>" collision suffix before ".csv" is
// accepted and ignored.
func ParseFileName(name string) (Meta, error) {
	m := fileNameRE.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return Meta{}, fmt.Errorf("%w: unrecognised file name %q", ErrMalformed, filepath.Base(name))
	}
	pct, _ := strconv.Atoi(m[2])
	weeks, _ := strconv.Atoi(m[3])
	nodes, _ := strconv.Atoi(m[4])
	seed, err := strconv.ParseUint(m[5], 10, 64)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: network seed: %v", ErrMalformed, err)
	}
	iters, _ := strconv.Atoi(m[6])
	ts, err := time.ParseInLocation(TimestampLayout, m[7], time.Local)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	return Meta{
		Mode:        m[1],
		PrEP:        float64(pct) / 100,
		Weeks:       weeks,
		Nodes:       nodes,
		NetworkSeed: seed,
		Iterations:  iters,
		Time:        ts,
	}, nil
}

// formatPrEP renders coverage the way the file column has always carried
// it: shortest decimal, with ".0" kept on whole numbers.
func formatPrEP(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Header returns the column names for runs runs.
func Header(runs int) []string {
	h := make([]string, 0, 3+runs*models.NumStates)
	h = append(h, "week", "mode", "prep")
	for r := 1; r <= runs; r++ {
		for _, key := range models.StateKeys {
			h = append(h, key+"_"+strconv.Itoa(r))
		}
	}
	return h
}

// WriteRaw writes weeks 0..m.Weeks for every run in series. Runs with fewer
// recorded weeks contribute zeros for the missing ones.
func WriteRaw(w io.Writer, m Meta, series [][]models.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(len(series))); err != nil {
		return err
	}

	prep := formatPrEP(m.PrEP)
	row := make([]string, 0, 3+len(series)*models.NumStates)
	for week := 0; week <= m.Weeks; week++ {
		row = append(row[:0], strconv.Itoa(week), m.Mode, prep)
		for _, run := range series {
			var snap models.Snapshot
			if week < len(run) {
				snap = run[week]
			}
			for _, st := range models.AllStates {
				row = append(row, strconv.Itoa(snap.Get(st)))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// maxNameAttempts bounds the collision suffixes tried by WriteRawFile.
const maxNameAttempts = 1000

// WriteRawFile writes series into dir under FileName(m), creating dir as
// needed, and returns the file path. An existing file is never replaced:
// when the name is taken, "_2", "_3", ... is inserted before ".csv".
func WriteRawFile(dir string, m Meta, series [][]models.Snapshot) (string, error) {
	if err := pathutil.SafeName(m.Mode); err != nil {
		return "", fmt.Errorf("export mode: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", pathutil.RedactPath(dir), err)
	}

	f, path, err := createUnique(dir, FileName(m))
	if err != nil {
		return "", err
	}
	if err := WriteRaw(f, m, series); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", pathutil.RedactPath(path), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", pathutil.RedactPath(path), err)
	}
	return path, nil
}

// createUnique creates name in dir exclusively, adding a numeric suffix
// while the name is taken.
func createUnique(dir, name string) (*os.File, string, error) {
	base := strings.TrimSuffix(name, ".csv")
	for k := 1; k <= maxNameAttempts; k++ {
		candidate := name
		if k > 1 {
			candidate = fmt.Sprintf("%s_%d.csv", base, k)
		}
		path := filepath.Join(dir, candidate)
		if err := pathutil.ValidatePath(path, []string{dir}); err != nil {
			return nil, "", err
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("creating %s: %w", pathutil.RedactPath(path), err)
		}
	}
	return nil, "", fmt.Errorf("creating %s: %d names already taken", pathutil.RedactPath(filepath.Join(dir, name)), maxNameAttempts)
}

// Table is a raw file read back into memory.
type Table struct {
	Mode  string
	PrEP  float64
	Runs  int
	Weeks []int

	// counts[state][week][run]
	counts [models.NumStates][][]float64
}

// Len returns the number of week rows.
func (t *Table) Len() int { return len(t.Weeks) }

// Column returns one state's values, indexed [week][run].
func (t *Table) Column(st models.State) [][]float64 {
	return t.counts[st]
}

// Series rebuilds per-run snapshots from the table.
func (t *Table) Series() [][]models.Snapshot {
	out := make([][]models.Snapshot, t.Runs)
	for r := range out {
		run := make([]models.Snapshot, len(t.Weeks))
		for w := range run {
			for _, st := range models.AllStates {
				run[w].Add(st, int(t.counts[st][w][r]))
			}
		}
		out[r] = run
	}
	return out
}

type column struct {
	state models.State
	run   int
}

// ReadRaw parses a raw CSV. Columns may appear in any order after week, mode
// and prep, but every run must carry every state.
func ReadRaw(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}
	if len(header) < 3 || header[0] != "week" || header[1] != "mode" || header[2] != "prep" {
		return nil, fmt.Errorf("%w: header must start with week,mode,prep", ErrMalformed)
	}

	cols := make([]column, len(header)-3)
	seen := make(map[column]bool, len(cols))
	runs := 0
	for i, name := range header[3:] {
		cut := strings.LastIndexByte(name, '_')
		if cut < 0 {
			return nil, fmt.Errorf("%w: column %q has no run suffix", ErrMalformed, name)
		}
		st, err := models.ParseState(name[:cut])
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", ErrMalformed, name, err)
		}
		run, err := strconv.Atoi(name[cut+1:])
		if err != nil || run < 1 {
			return nil, fmt.Errorf("%w: column %q: bad run index", ErrMalformed, name)
		}
		c := column{state: st, run: run - 1}
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformed, name)
		}
		seen[c] = true
		cols[i] = c
		runs = max(runs, run)
	}
	if len(seen) != runs*models.NumStates {
		return nil, fmt.Errorf("%w: expected %d state columns for %d runs, got %d",
			ErrMalformed, runs*models.NumStates, runs, len(seen))
	}

	t := &Table{Runs: runs}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		week, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: week %q", ErrMalformed, line, rec[0])
		}
		if len(t.Weeks) == 0 {
			t.Mode = rec[1]
			if t.PrEP, err = strconv.ParseFloat(rec[2], 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: prep %q", ErrMalformed, line, rec[2])
			}
		}
		t.Weeks = append(t.Weeks, week)
		for _, st := range models.AllStates {
			t.counts[st] = append(t.counts[st], make([]float64, runs))
		}
		w := len(t.Weeks) - 1
		for i, c := range cols {
			v, err := strconv.ParseFloat(rec[3+i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: column %s: %v", ErrMalformed, line, header[3+i], err)
			}
			t.counts[c.state][w][c.run] = v
		}
	}
	return t, nil
}

// ReadRawFile opens and parses a raw CSV file.
func ReadRawFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()

	t, err := ReadRaw(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pathutil.RedactPath(path), err)
	}
	return t, nil
}
