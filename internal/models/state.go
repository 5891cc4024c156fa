// Package models defines the domain types shared by the network builder,
// the epidemic process and the run controller.
package models

import (
	"fmt"
	"strings"
)

// State is the disease stage of a single person.
type State uint8

const (
	Susceptible State = iota // Never infected
	Acute                    // Recently infected, highly infectious
	Chronic                  // Long asymptomatic stage
	AIDS                     // Late stage, untreated
	Dead                     // Terminal, absorbing
)

// NumStates is the number of disease stages.
const NumStates = 5

// AllStates lists every state in canonical order.
var AllStates = [NumStates]State{Susceptible, Acute, Chronic, AIDS, Dead}

// StateKeys are the snapshot keys in canonical order. Collaborators rely on
// exactly these names.
var StateKeys = [NumStates]string{"susceptible", "acute", "chronic", "aids", "dead"}

// String returns the lowercase snapshot key for the state.
func (s State) String() string {
	if int(s) < NumStates {
		return StateKeys[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Valid reports whether s is one of the five known states.
func (s State) Valid() bool {
	return int(s) < NumStates
}

// Infectious reports whether a person in this state can transmit.
func (s State) Infectious() bool {
	switch s {
	case Acute, Chronic, AIDS:
		return true
	default:
		return false
	}
}

// Next returns the stage that follows s in the progression
// acute -> chronic -> aids -> dead. Susceptible and Dead have no
// time-driven successor and return false.
func (s State) Next() (State, bool) {
	switch s {
	case Acute:
		return Chronic, true
	case Chronic:
		return AIDS, true
	case AIDS:
		return Dead, true
	case Susceptible, Dead:
		return s, false
	default:
		return s, false
	}
}

// ParseState maps a snapshot key (case-insensitive) to its State.
func ParseState(s string) (State, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, k := range StateKeys {
		if k == key {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}
