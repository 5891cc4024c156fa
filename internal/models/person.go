package models

import (
	"fmt"
	"strings"
)

// Sex of a person. Fixed at network construction.
type Sex uint8

const (
	Male Sex = iota
	Female
)

// String returns "male" or "female".
func (s Sex) String() string {
	switch s {
	case Male:
		return "male"
	case Female:
		return "female"
	default:
		return fmt.Sprintf("sex(%d)", uint8(s))
	}
}

// Short returns the one-letter form used in targeting modes ("m" / "f").
func (s Sex) Short() string {
	if s == Female {
		return "f"
	}
	return "m"
}

// ParseSex accepts "m", "male", "f" or "female".
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(s) {
	case "m", "male":
		return Male, nil
	case "f", "female":
		return Female, nil
	default:
		return 0, fmt.Errorf("unknown sex %q", s)
	}
}

// Orientation of a person. Fixed at network construction.
type Orientation uint8

const (
	Heterosexual Orientation = iota
	Homosexual
	Bisexual
)

// NumOrientations is the number of orientation categories.
const NumOrientations = 3

// AllOrientations lists orientations in the order used for categorical draws.
var AllOrientations = [NumOrientations]Orientation{Heterosexual, Homosexual, Bisexual}

// String returns the long form, e.g. "homosexual".
func (o Orientation) String() string {
	switch o {
	case Heterosexual:
		return "heterosexual"
	case Homosexual:
		return "homosexual"
	case Bisexual:
		return "bisexual"
	default:
		return fmt.Sprintf("orientation(%d)", uint8(o))
	}
}

// Short returns the abbreviated form used in targeting modes ("homo", "hetero", "bi").
func (o Orientation) Short() string {
	switch o {
	case Homosexual:
		return "homo"
	case Bisexual:
		return "bi"
	default:
		return "hetero"
	}
}

// ParseOrientation accepts both the short and the long form.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "hetero", "heterosexual":
		return Heterosexual, nil
	case "homo", "homosexual":
		return Homosexual, nil
	case "bi", "bisexual":
		return Bisexual, nil
	default:
		return 0, fmt.Errorf("unknown orientation %q", s)
	}
}

// AttractedTo reports whether someone of sex self with orientation o is
// attracted to partners of sex other.
func (o Orientation) AttractedTo(self, other Sex) bool {
	switch o {
	case Homosexual:
		return self == other
	case Bisexual:
		return true
	default:
		return self != other
	}
}

// Person is one node of the contact network.
type Person struct {
	ID          int         `json:"id"`
	Sex         Sex         `json:"sex"`
	Orientation Orientation `json:"orientation"`
	State       State       `json:"state"`
	PrEP        bool        `json:"prep"`          // Covered by the intervention, set once per run
	TimeInState int         `json:"time_in_state"` // Completed weeks in the current state
	Dwell       int         `json:"dwell"`         // Weeks to stay in the current stage, 0 when not progressing
}

// Compatible reports whether a and b could form a partnership, i.e. each is
// attracted to the other's sex.
func Compatible(a, b Person) bool {
	return a.Orientation.AttractedTo(a.Sex, b.Sex) && b.Orientation.AttractedTo(b.Sex, a.Sex)
}
