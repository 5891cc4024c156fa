package simulation

import (
	"errors"
	"sync"
	"testing"

	"github.com/annebeks/prepsim/internal/epidemic"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/network"
	"github.com/annebeks/prepsim/internal/prep"
)

func TestNewRun_EndToEnd(t *testing.T) {
	r := mustRun(t, testRunConfig(100, 1, 1))

	week0 := r.Current()
	if week0.Acute != 10 || week0.Susceptible != 90 {
		t.Fatalf("week 0 = %+v, want 10 acute and 90 susceptible", week0)
	}
	if week0.Chronic != 0 || week0.AIDS != 0 || week0.Dead != 0 {
		t.Errorf("week 0 = %+v, want no chronic, AIDS or dead", week0)
	}
	if r.InitialInfected() != 10 {
		t.Errorf("InitialInfected() = %d, want 10", r.InitialInfected())
	}

	r.Step()
	week1 := r.Current()
	if week1.Dead != 0 {
		t.Errorf("week 1 dead = %d, want 0", week1.Dead)
	}
	if week1.Total() != 100 {
		t.Errorf("week 1 total = %d, want 100", week1.Total())
	}
	if r.Time() != 1 {
		t.Errorf("Time() = %d, want 1", r.Time())
	}
	AssertSeriesLength(t, r.StatesPerTime(), 1)
}

func TestNewRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   error
	}{
		{"zero nodes", func(c *RunConfig) { c.NumNodes = 0 }, network.ErrInvalidTopology},
		{"outbreak above one", func(c *RunConfig) { c.OutbreakProportion = 1.5 }, ErrInvalidOutbreak},
		{"negative outbreak", func(c *RunConfig) { c.OutbreakProportion = -0.1 }, ErrInvalidOutbreak},
		{"unknown mode", func(c *RunConfig) { c.Mode = "targeted_x" }, prep.ErrUnknownMode},
		{"coverage above one", func(c *RunConfig) { c.Coverage = 2 }, prep.ErrInvalidCoverage},
		{"negative transmission", func(c *RunConfig) { c.Epidemic.Transmission.Acute = -1 }, epidemic.ErrInvalidStageParameters},
		{"bad topology", func(c *RunConfig) { c.Network.Topology = "ring" }, network.ErrInvalidTopology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRunConfig(50, 1, 1)
			tt.mutate(&cfg)
			r, err := NewRun(cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewRun() error = %v, want %v", err, tt.want)
			}
			if r != nil {
				t.Error("NewRun() returned a run alongside an error")
			}
		})
	}
}

func TestRun_OutbreakBoundaries(t *testing.T) {
	tests := []struct {
		proportion float64
		want       int
	}{
		{0, 0},
		{1, 60},
		{0.25, 15},
	}
	for _, tt := range tests {
		cfg := testRunConfig(60, 3, 3)
		cfg.OutbreakProportion = tt.proportion
		r := mustRun(t, cfg)
		if got := r.Current().Acute; got != tt.want {
			t.Errorf("outbreak %v: acute = %d, want %d", tt.proportion, got, tt.want)
		}
	}
}

func TestRun_NoOutbreakStaysSusceptible(t *testing.T) {
	cfg := testRunConfig(80, 2, 2)
	cfg.OutbreakProportion = 0
	r := mustRun(t, cfg)
	r.StepUntil(52)
	if got := r.Current().Susceptible; got != 80 {
		t.Errorf("susceptible after 52 weeks = %d, want 80", got)
	}
}

func TestRun_Reproducible(t *testing.T) {
	a := mustRun(t, testRunConfig(120, 7, 11))
	b := mustRun(t, testRunConfig(120, 7, 11))
	a.StepUntil(100)
	b.StepUntil(100)
	AssertSeriesEqual(t, a.StatesPerTime(), b.StatesPerTime())

	for id := range a.People() {
		if a.Person(id) != b.Person(id) {
			t.Fatalf("person %d differs: %+v vs %+v", id, a.Person(id), b.Person(id))
		}
	}
}

func TestRun_TopologyIndependentOfInteractionSeed(t *testing.T) {
	a := mustRun(t, testRunConfig(150, 5, 1))
	b := mustRun(t, testRunConfig(150, 5, 2))

	ea, eb := a.Network().Edges(), b.Network().Edges()
	if len(ea) != len(eb) {
		t.Fatalf("edge counts differ: %d vs %d", len(ea), len(eb))
	}
	for i := range ea {
		if ea[i] != eb[i] {
			t.Fatalf("edge %d differs: %v vs %v", i, ea[i], eb[i])
		}
	}
	for id := range a.People() {
		pa, pb := a.Person(id), b.Person(id)
		if pa.Sex != pb.Sex || pa.Orientation != pb.Orientation {
			t.Fatalf("person %d demographics differ", id)
		}
	}
}

func TestRun_TrajectoryInvariants(t *testing.T) {
	for _, topo := range []network.Topology{network.TopologyPartnership, network.TopologyErdosRenyi, network.TopologyBarabasiAlbert} {
		t.Run(string(topo), func(t *testing.T) {
			cfg := testRunConfig(200, 9, 9)
			cfg.Network.Topology = topo
			cfg.OutbreakProportion = 0.2
			r := mustRun(t, cfg)
			r.StepUntil(260)
			AssertSeriesLength(t, r.StatesPerTime(), 260)
			AssertValidTrajectory(t, r.StatesPerTime(), 200)
		})
	}
}

func TestRun_StepUntil(t *testing.T) {
	r := mustRun(t, testRunConfig(40, 1, 1))
	if n := r.StepUntil(10); n != 10 {
		t.Errorf("StepUntil(10) = %d, want 10", n)
	}
	if n := r.StepUntil(5); n != 0 {
		t.Errorf("StepUntil(5) after week 10 = %d, want 0", n)
	}
	if r.Time() != 10 {
		t.Errorf("Time() = %d, want 10", r.Time())
	}
}

func TestRun_FreshSeedRecorded(t *testing.T) {
	cfg := testRunConfig(30, 1, 0)
	cfg.InteractionSeed = nil
	r := mustRun(t, cfg)
	if _, seeded := r.InteractionSeed(); seeded {
		t.Error("InteractionSeed() reported caller-supplied seed for an unseeded run")
	}

	seed, _ := r.InteractionSeed()
	replay := mustRun(t, testRunConfig(30, 1, seed))
	r.StepUntil(50)
	replay.StepUntil(50)
	AssertSeriesEqual(t, replay.StatesPerTime(), r.StatesPerTime())
}

func TestRun_FullCoverageBlocksInfection(t *testing.T) {
	cfg := testRunConfig(100, 4, 4)
	cfg.Coverage = 1
	cfg.Epidemic.PrEPEfficacy = 1
	r := mustRun(t, cfg)
	start := r.Current()

	var covered int
	for _, p := range r.People() {
		if p.PrEP {
			covered++
		}
	}
	if covered != 100 {
		t.Fatalf("covered = %d, want 100", covered)
	}

	r.StepUntil(100)
	if got := r.Current().Susceptible; got != start.Susceptible {
		t.Errorf("susceptible = %d, want %d with full efficacy", got, start.Susceptible)
	}
}

func TestRun_Observer(t *testing.T) {
	var mu sync.Mutex
	var weeks []int
	cfg := testRunConfig(50, 1, 1)
	cfg.Index = 3
	cfg.Observer = ObserverFunc(func(run, week int, tr epidemic.Transitions, snap models.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if run != 3 {
			t.Errorf("observer run = %d, want 3", run)
		}
		if snap.Total() != 50 {
			t.Errorf("observer snapshot total = %d, want 50", snap.Total())
		}
		weeks = append(weeks, week)
	})
	r := mustRun(t, cfg)
	r.StepUntil(4)

	want := []int{1, 2, 3, 4}
	if len(weeks) != len(want) {
		t.Fatalf("observed weeks = %v, want %v", weeks, want)
	}
	for i := range want {
		if weeks[i] != want[i] {
			t.Errorf("observed weeks = %v, want %v", weeks, want)
			break
		}
	}
}

func TestRun_StatesPerTimeIsCopy(t *testing.T) {
	r := mustRun(t, testRunConfig(20, 1, 1))
	s := r.StatesPerTime()
	s[0].Susceptible = -1
	if r.StatesPerTime()[0].Susceptible == -1 {
		t.Error("StatesPerTime() exposed internal storage")
	}
}
