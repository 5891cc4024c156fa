// Package epidemic advances the disease state of a population by one week.
//
// A step is synchronous: every transition is decided from the states at the
// start of the week and applied together at the end, so an infection made
// this week cannot spread further until next week. All draws come from the
// caller's random source in node-id order, which makes a run with a fixed
// seed bit-for-bit reproducible.
package epidemic

import (
	"fmt"
	"math/rand/v2"

	"github.com/annebeks/prepsim/internal/models"
)

// Transitions counts the state changes made by one step.
type Transitions struct {
	Infections     int `json:"infections"`       // susceptible -> acute
	AcuteToChronic int `json:"acute_to_chronic"` // acute -> chronic
	ChronicToAIDS  int `json:"chronic_to_aids"`  // chronic -> aids
	Deaths         int `json:"deaths"`           // aids -> dead
}

// Total is the number of people that changed state.
func (t Transitions) Total() int {
	return t.Infections + t.AcuteToChronic + t.ChronicToAIDS + t.Deaths
}

func (t *Transitions) record(to models.State) {
	switch to {
	case models.Acute:
		t.Infections++
	case models.Chronic:
		t.AcuteToChronic++
	case models.AIDS:
		t.ChronicToAIDS++
	case models.Dead:
		t.Deaths++
	}
}

// Process applies the disease model. It is stateless: all mutable state
// lives in the people slice passed to Step.
type Process struct {
	params Params
}

// NewProcess validates params and returns a process.
func NewProcess(params Params) (*Process, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Process{params: params}, nil
}

// Params returns the parameters the process was built with.
func (pr *Process) Params() Params { return pr.params }

// Enter moves p into state s, resets its clock and samples its dwell time.
func (pr *Process) Enter(p *models.Person, s models.State, r *rand.Rand) {
	p.State = s
	p.TimeInState = 0
	p.Dwell = pr.params.SampleDwell(s, r)
}

// Step advances every person by one week. adj[i] lists the partners of
// person i in ascending order.
func (pr *Process) Step(people []models.Person, adj [][]int, r *rand.Rand) Transitions {
	if len(adj) != len(people) {
		panic(fmt.Sprintf("epidemic: adjacency has %d entries for %d people", len(adj), len(people)))
	}

	// Read phase: decide every transition from last week's states.
	next := make([]models.State, len(people))
	changed := make([]bool, len(people))
	for i := range people {
		p := &people[i]
		switch p.State {
		case models.Dead:
			continue
		case models.Susceptible:
			if pr.exposed(p, adj[i], people, r) {
				next[i], changed[i] = models.Acute, true
			}
		case models.Acute, models.Chronic, models.AIDS:
			if p.TimeInState+1 >= p.Dwell {
				next[i], changed[i] = p.State.Next()
			}
		}
	}

	// Write phase: apply atomically, sampling new dwell times in id order.
	var tr Transitions
	for i := range people {
		if changed[i] {
			pr.Enter(&people[i], next[i], r)
			tr.record(next[i])
			continue
		}
		people[i].TimeInState++
	}
	return tr
}

// exposed draws one Bernoulli trial per infectious partner and reports
// whether any succeeded. Every trial is drawn, even after a success, so the
// stream position does not depend on outcomes.
func (pr *Process) exposed(p *models.Person, partners []int, people []models.Person, r *rand.Rand) bool {
	infected := false
	for _, j := range partners {
		prob := pr.params.InfectionProbability(people[j].State, p.PrEP)
		if prob <= 0 {
			continue
		}
		if r.Float64() < prob {
			infected = true
		}
	}
	return infected
}
