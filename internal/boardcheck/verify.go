package boardcheck

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/domain/model"
)

// VerifyBoard checks that board is sorted by score, descending, and ranked
// 1..N with every team listed once.
func VerifyBoard(board model.Board) error {
	seen := make(map[uuid.UUID]bool, len(board))
	for i, e := range board {
		if seen[e.Team.ID] {
			return fmt.Errorf("%w: team %q listed twice", ErrInconsistent, e.Team.Name)
		}
		seen[e.Team.ID] = true

		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d, want %d", ErrInconsistent, i, e.Rank, i+1)
		}
		if e.Score < 0 {
			return fmt.Errorf("%w: team %q has negative score %d", ErrInconsistent, e.Team.Name, e.Score)
		}
		if i > 0 && e.Score > board[i-1].Score {
			return fmt.Errorf("%w: entry %d scores %d above entry %d's %d", ErrInconsistent, i, e.Score, i-1, board[i-1].Score)
		}
	}
	return nil
}
