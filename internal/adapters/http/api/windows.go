package api

import (
	"context"
	"net/http"

	service "github.com/okian/ctfboard/internal/app"
)

// WindowsDependencies lists windows and winners.
type WindowsDependencies interface {
	Windows(ctx context.Context) ([]service.WindowInfo, error)
	Winners(ctx context.Context) (service.WinnersView, error)
}

// WindowsHandler handles /windows and /winners.
type WindowsHandler struct {
	deps WindowsDependencies
	errs *errorWriter
}

// NewWindowsHandler creates a new windows handler.
func NewWindowsHandler(deps WindowsDependencies, errs *errorWriter) *WindowsHandler {
	return &WindowsHandler{deps: deps, errs: errs}
}

// HandleWindows handles GET /windows.
func (h *WindowsHandler) HandleWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.deps.Windows(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

// HandleWinners handles GET /winners.
func (h *WindowsHandler) HandleWinners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.deps.Winners(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, winners)
}
