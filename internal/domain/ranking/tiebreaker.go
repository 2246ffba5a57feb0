package ranking

import (
	"fmt"
	"maps"
)

// Tiebreaker is an immutable table of side-competition scores by team name.
type Tiebreaker struct {
	scores map[string]int
	max    int
}

// NewTiebreaker validates and copies the table. Every score must lie in
// [0, max] so that a bonus never exceeds the normalization factor.
func NewTiebreaker(scores map[string]int, max int) (*Tiebreaker, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: max %d must be positive", ErrInvalidTiebreaker, max)
	}
	for name, s := range scores {
		if s < 0 || s > max {
			return nil, fmt.Errorf("%w: %q scored %d outside [0, %d]", ErrInvalidTiebreaker, name, s, max)
		}
	}
	return &Tiebreaker{scores: maps.Clone(scores), max: max}, nil
}

// Score returns the team's tiebreaker score and whether it has one.
func (t *Tiebreaker) Score(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	s, ok := t.scores[name]
	return s, ok
}

// Bonus returns floor(normalization * score / max), zero for absent teams.
func (t *Tiebreaker) Bonus(name string, normalization int) int {
	s, ok := t.Score(name)
	if !ok || normalization <= 0 {
		return 0
	}
	return int(int64(normalization) * int64(s) / int64(t.max))
}

// Max returns the table ceiling.
func (t *Tiebreaker) Max() int {
	if t == nil {
		return 0
	}
	return t.max
}

// Len returns the number of teams in the table.
func (t *Tiebreaker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.scores)
}
