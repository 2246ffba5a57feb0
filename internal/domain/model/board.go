package model

import (
	"time"

	"github.com/google/uuid"
)

// Score is a team's points within a window and the time of the solve
// that last changed them. A zero AchievedAt means the team never scored.
type Score struct {
	Points     int
	AchievedAt time.Time
}

// TeamScore is the input row of a ranking.
type TeamScore struct {
	Team       Team
	Score      int
	AchievedAt time.Time
	PriorRank  int // rank on a board this score was derived from; 0 if none
}

// Entry is one ranked row of a board.
type Entry struct {
	Rank  int  `json:"rank" msgpack:"rank"`
	Team  Team `json:"team" msgpack:"team"`
	Score int  `json:"score" msgpack:"score"`
}

// Board is an ordered, fully ranked sequence of entries.
type Board []Entry

// Find returns the entry for the given team ID.
func (b Board) Find(id uuid.UUID) (Entry, bool) {
	for _, e := range b {
		if e.Team.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// FindByName returns the entry for the given team name.
func (b Board) FindByName(name string) (Entry, bool) {
	for _, e := range b {
		if e.Team.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Top returns at most n leading entries.
func (b Board) Top(n int) Board {
	if n < 0 || n >= len(b) {
		return b
	}
	return b[:n]
}

// Solve is a single correct submission.
type Solve struct {
	TeamID   uuid.UUID
	Window   string
	Problem  string
	Points   int
	SolvedAt time.Time
}
