package models

// Snapshot holds the population counts per state at one week.
type Snapshot struct {
	Susceptible int `json:"susceptible"`
	Acute       int `json:"acute"`
	Chronic     int `json:"chronic"`
	AIDS        int `json:"aids"`
	Dead        int `json:"dead"`
}

// Count builds a snapshot from the current state of every person.
func Count(people []Person) Snapshot {
	var s Snapshot
	for i := range people {
		s.Add(people[i].State, 1)
	}
	return s
}

// Get returns the count for a state. Unknown states count as zero.
func (s Snapshot) Get(st State) int {
	switch st {
	case Susceptible:
		return s.Susceptible
	case Acute:
		return s.Acute
	case Chronic:
		return s.Chronic
	case AIDS:
		return s.AIDS
	case Dead:
		return s.Dead
	default:
		return 0
	}
}

// Add adds n to the count for st.
func (s *Snapshot) Add(st State, n int) {
	switch st {
	case Susceptible:
		s.Susceptible += n
	case Acute:
		s.Acute += n
	case Chronic:
		s.Chronic += n
	case AIDS:
		s.AIDS += n
	case Dead:
		s.Dead += n
	}
}

// Total is the sum over all states. For a valid run it always equals the
// number of nodes.
func (s Snapshot) Total() int {
	return s.Susceptible + s.Acute + s.Chronic + s.AIDS + s.Dead
}

// Infected counts everyone currently living with the infection.
func (s Snapshot) Infected() int {
	return s.Acute + s.Chronic + s.AIDS
}

// Map returns the snapshot keyed by the canonical state names.
func (s Snapshot) Map() map[string]int {
	m := make(map[string]int, NumStates)
	for _, st := range AllStates {
		m[st.String()] = s.Get(st)
	}
	return m
}
