package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
)

// TieKey settles equal scores. Keys compare field by field: At ascending
// with the zero time last, then Prior ascending with 0 last, then ID.
type TieKey struct {
	At    time.Time
	Prior int
	ID    string
}

// TieKeyFunc derives the tie key for one row. The window is nil for the
// overall and tiebreaker boards.
type TieKeyFunc func(w *model.Window, ts model.TeamScore) TieKey

// ByAchievedAt ranks the team that reached its score first higher.
func ByAchievedAt(_ *model.Window, ts model.TeamScore) TieKey {
	return TieKey{At: ts.AchievedAt, ID: ts.Team.ID.String()}
}

// ByPriorRank keeps the order of the board the scores were derived from.
func ByPriorRank(_ *model.Window, ts model.TeamScore) TieKey {
	return TieKey{Prior: ts.PriorRank, ID: ts.Team.ID.String()}
}

// ByTeamID orders by team identifier only.
func ByTeamID(_ *model.Window, ts model.TeamScore) TieKey {
	return TieKey{ID: ts.Team.ID.String()}
}

// Compare orders two tie keys.
func (k TieKey) Compare(o TieKey) int {
	if c := compareZeroLast(k.At.IsZero(), o.At.IsZero()); c != 0 {
		return c
	}
	if c := k.At.Compare(o.At); c != 0 {
		return c
	}
	if c := compareZeroLast(k.Prior == 0, o.Prior == 0); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Prior, o.Prior); c != 0 {
		return c
	}
	return cmp.Compare(k.ID, o.ID)
}

func compareZeroLast(aZero, bZero bool) int {
	switch {
	case aZero == bZero:
		return 0
	case aZero:
		return 1
	default:
		return -1
	}
}

// Rank orders scores descending, settles ties with key and assigns ranks
// 1..N. The input slice is not modified.
func Rank(scores []model.TeamScore, w *model.Window, key TieKeyFunc) (model.Board, error) {
	type row struct {
		ts  model.TeamScore
		key TieKey
	}

	rows := make([]row, len(scores))
	seen := make(map[string]struct{}, len(scores))
	for i, ts := range scores {
		id := ts.Team.ID.String()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTeam, ts.Team.Name)
		}
		seen[id] = struct{}{}
		rows[i] = row{ts: ts, key: key(w, ts)}
	}

	order := func(a, b row) int {
		if c := cmp.Compare(b.ts.Score, a.ts.Score); c != 0 {
			return c
		}
		return a.key.Compare(b.key)
	}
	slices.SortFunc(rows, order)

	board := make(model.Board, len(rows))
	for i, r := range rows {
		if i > 0 && order(rows[i-1], r) == 0 {
			return nil, fmt.Errorf("%w: %s and %s", ErrAmbiguousOrder, rows[i-1].ts.Team.Name, r.ts.Team.Name)
		}
		board[i] = model.Entry{Rank: i + 1, Team: r.ts.Team, Score: r.ts.Score}
	}
	return board, nil
}
