package live

import "errors"

// ErrClosed is returned by Serve once the hub has stopped.
var ErrClosed = errors.New("live: hub closed")
