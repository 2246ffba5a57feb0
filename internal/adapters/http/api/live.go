package api

import (
	"context"
	"net/http"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
)

// LiveDependencies opens live board subscriptions.
type LiveDependencies interface {
	Board(ctx context.Context, codename string) (model.Board, error)
	Subscribe(w http.ResponseWriter, r *http.Request, codename string, initial model.Board) error
}

// LiveHandler upgrades /ws/boards/{codename} to a websocket.
type LiveHandler struct {
	deps LiveDependencies
	errs *errorWriter
}

// NewLiveHandler creates a new live handler.
func NewLiveHandler(deps LiveDependencies, errs *errorWriter) *LiveHandler {
	return &LiveHandler{deps: deps, errs: errs}
}

// HandleSubscribe handles GET /ws/boards/{codename}. The board is resolved
// before upgrading so unknown codenames get a plain 404.
func (h *LiveHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	codename, err := codenameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	board, err := h.deps.Board(r.Context(), codename)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.deps.Subscribe(w, r, codename, board); err != nil {
		h.errs.logger.Warn(r.Context(), "live subscribe failed",
			logger.String("codename", codename),
			logger.Error(err),
		)
	}
}
