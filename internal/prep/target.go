// Package prep assigns PrEP coverage to the eligible part of a population.
//
// A targeting mode string such as "targeted_m_homo" is parsed once into a
// Target; from then on eligibility is decided by Target.Matches alone.
package prep

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annebeks/prepsim/internal/models"
)

// ErrUnknownMode is returned for a mode string that names no target.
var ErrUnknownMode = errors.New("unknown targeting mode")

// Kind is the shape of a Target.
type Kind uint8

const (
	KindAll               Kind = iota // Everyone is eligible
	KindSex                           // Filter on sex only
	KindOrientation                   // Filter on orientation only
	KindSexAndOrientation             // Filter on both
)

// Target selects the eligible subpopulation.
type Target struct {
	kind        Kind
	sex         models.Sex
	orientation models.Orientation
}

// All targets the whole population.
func All() Target { return Target{kind: KindAll} }

// BySex targets one sex.
func BySex(s models.Sex) Target { return Target{kind: KindSex, sex: s} }

// ByOrientation targets one orientation.
func ByOrientation(o models.Orientation) Target {
	return Target{kind: KindOrientation, orientation: o}
}

// BySexAndOrientation targets people matching both filters.
func BySexAndOrientation(s models.Sex, o models.Orientation) Target {
	return Target{kind: KindSexAndOrientation, sex: s, orientation: o}
}

// Kind returns the variant of the target.
func (t Target) Kind() Kind { return t.kind }

// Matches reports whether p is eligible under t.
func (t Target) Matches(p models.Person) bool {
	switch t.kind {
	case KindAll:
		return true
	case KindSex:
		return p.Sex == t.sex
	case KindOrientation:
		return p.Orientation == t.orientation
	case KindSexAndOrientation:
		return p.Sex == t.sex && p.Orientation == t.orientation
	default:
		return false
	}
}

// String returns the canonical mode name for t.
func (t Target) String() string {
	switch t.kind {
	case KindSex:
		return "targeted_" + t.sex.String()
	case KindOrientation:
		return "targeted_" + t.orientation.String()
	case KindSexAndOrientation:
		return "targeted_" + t.sex.Short() + "_" + t.orientation.Short()
	default:
		return "standard"
	}
}

// ParseMode converts a mode string into a Target.
//
//	standard, random                  -> All
//	targeted_<m|f>_<homo|hetero|bi>   -> BySexAndOrientation
//	targeted_<orientation>            -> ByOrientation
//	targeted_<male|female|m|f>        -> BySex
func ParseMode(mode string) (Target, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case "standard", "random":
		return All(), nil
	}

	rest, ok := strings.CutPrefix(m, "targeted_")
	if !ok || rest == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if sexPart, orientPart, found := strings.Cut(rest, "_"); found {
		if len(sexPart) != 1 {
			return Target{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
		sex, err := models.ParseSex(sexPart)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
		o, err := parseShortOrientation(orientPart)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
		return BySexAndOrientation(sex, o), nil
	}

	switch rest {
	case "male", "m":
		return BySex(models.Male), nil
	case "female", "f":
		return BySex(models.Female), nil
	case "homosexual":
		return ByOrientation(models.Homosexual), nil
	case "heterosexual":
		return ByOrientation(models.Heterosexual), nil
	case "bisexual":
		return ByOrientation(models.Bisexual), nil
	}
	return Target{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func parseShortOrientation(s string) (models.Orientation, error) {
	for _, o := range models.AllOrientations {
		if o.Short() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown orientation %q", s)
}

// Modes lists every accepted mode string in menu order.
func Modes() []string {
	modes := []string{"standard", "random"}
	for _, s := range []models.Sex{models.Male, models.Female} {
		for _, o := range []models.Orientation{models.Homosexual, models.Heterosexual, models.Bisexual} {
			modes = append(modes, BySexAndOrientation(s, o).String())
		}
	}
	for _, o := range []models.Orientation{models.Homosexual, models.Heterosexual, models.Bisexual} {
		modes = append(modes, ByOrientation(o).String())
	}
	modes = append(modes, BySex(models.Male).String(), BySex(models.Female).String())
	return modes
}
