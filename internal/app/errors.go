package service

import (
	"errors"
	"fmt"

	"github.com/okian/ctfboard/internal/domain/model"
)

// Sentinel kinds for service errors.
var (
	// ErrWindowNotEnded means a real window's board was requested before the
	// window closed. Reaching it is a routing bug, not a client error.
	ErrWindowNotEnded = errors.New("window has not ended")

	// ErrBackpressure means the refresh queue is full.
	ErrBackpressure = errors.New("refresh queue full")

	// ErrNotStarted means the refresh pipeline is not running.
	ErrNotStarted = errors.New("service not started")

	ErrTeamNotOnBoard = fmt.Errorf("team not on board: %w", model.ErrNotFound)
)
