package boardcheck

import "errors"

var (
	// ErrInconsistent reports a board whose ranks or order are wrong.
	ErrInconsistent = errors.New("board is inconsistent")
	// ErrUnexpectedStatus reports a response with the wrong status code.
	ErrUnexpectedStatus = errors.New("unexpected status")
)
