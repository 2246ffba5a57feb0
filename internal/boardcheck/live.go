package boardcheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/okian/ctfboard/internal/adapters/live"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
)

// liveURL turns an http(s) base URL into the websocket URL of codename.
func liveURL(baseURL, codename string) string {
	u := baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/boards/" + codename
}

// checkLive subscribes to codename and compares the first snapshot with
// want. A mismatch is reported as a diff, not an error, since the board
// may have been refreshed in between.
func checkLive(ctx context.Context, config *Config, codename string, want model.Board) (string, error) {
	dialer := websocket.Dialer{HandshakeTimeout: config.Timeout}
	conn, resp, err := dialer.DialContext(ctx, liveURL(config.BaseURL, codename), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return "", fmt.Errorf("dial live %s: %w", codename, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Get().Debug(context.Background(), "failed to close live connection", logger.Error(err))
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var msg live.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return "", fmt.Errorf("read live %s: %w", codename, err)
	}
	if msg.Type != live.MessageTypeBoard || msg.Codename != codename {
		return "", fmt.Errorf("live %s: %w: got %s message for %q", codename, ErrInconsistent, msg.Type, msg.Codename)
	}
	if err := VerifyBoard(msg.Board); err != nil {
		return "", fmt.Errorf("live %s: %w", codename, err)
	}
	return cmp.Diff(want, msg.Board), nil
}
