// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Standing classifies a team's eligibility for public boards.
type Standing int

const (
	StandingGood Standing = iota
	StandingIneligible
	StandingInvisible // staff and test accounts; never ranked publicly
)

// String returns the lowercase name of the standing.
func (s Standing) String() string {
	switch s {
	case StandingGood:
		return "good"
	case StandingIneligible:
		return "ineligible"
	case StandingInvisible:
		return "invisible"
	default:
		return fmt.Sprintf("standing(%d)", int(s))
	}
}

// ParseStanding parses a standing name as produced by String.
func ParseStanding(s string) (Standing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "good":
		return StandingGood, nil
	case "ineligible":
		return StandingIneligible, nil
	case "invisible":
		return StandingInvisible, nil
	default:
		return 0, fmt.Errorf("%w: unknown standing %q", ErrInvalid, s)
	}
}

// Team is a competitor. Scores are never stored on it.
type Team struct {
	ID       uuid.UUID `json:"id" msgpack:"id"`
	Name     string    `json:"name" msgpack:"name"`
	Standing Standing  `json:"standing" msgpack:"standing"`
}

// Visible reports whether the team may appear on public boards.
func (t Team) Visible() bool {
	return t.Standing != StandingInvisible
}
