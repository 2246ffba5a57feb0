package ranking

import (
	"errors"
	"fmt"

	"github.com/okian/ctfboard/internal/domain/model"
)

// Sentinel errors for ranking.
var (
	ErrAmbiguousOrder    = errors.New("ranking: tie key does not separate teams")
	ErrDuplicateTeam     = errors.New("ranking: team appears twice")
	ErrInvalidTiebreaker = errors.New("ranking: invalid tiebreaker table")
	ErrInvalidConfig     = errors.New("ranking: invalid engine configuration")
	ErrReservedCodename  = fmt.Errorf("ranking: window codename is reserved: %w", model.ErrInvalid)
)
