package repository

import (
	"fmt"

	"github.com/okian/ctfboard/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrWindowNotFound = fmt.Errorf("window %w", model.ErrNotFound)
	ErrTeamNotFound   = fmt.Errorf("team %w", model.ErrNotFound)
	ErrDuplicate      = fmt.Errorf("duplicate record: %w", model.ErrConflict)

	errEmptyCodename = fmt.Errorf("window codename is empty: %w", model.ErrInvalid)
	errWindowBounds  = fmt.Errorf("window must end after it starts: %w", model.ErrInvalid)
	errNegativeScore = fmt.Errorf("solve points must not be negative: %w", model.ErrInvalid)
)
