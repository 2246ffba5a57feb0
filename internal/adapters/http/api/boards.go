package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/ctfboard/internal/app"
	"github.com/okian/ctfboard/internal/adapters/export"
	"github.com/okian/ctfboard/internal/domain/model"
)

// BoardsDependencies defines the board operations the handlers use.
type BoardsDependencies interface {
	Present(ctx context.Context, codename string) (service.View, error)
	DefaultCodename(ctx context.Context) (string, error)
	Board(ctx context.Context, codename string) (model.Board, error)
	Entry(ctx context.Context, codename, team string) (model.Entry, error)
	RequestRefresh(ctx context.Context, codename string) (service.RefreshStatus, error)
}

// BoardsHandler handles /boards requests.
type BoardsHandler struct {
	deps BoardsDependencies
	errs *errorWriter
}

// NewBoardsHandler creates a new boards handler.
func NewBoardsHandler(deps BoardsDependencies, errs *errorWriter) *BoardsHandler {
	return &BoardsHandler{deps: deps, errs: errs}
}

type refreshResponse struct {
	Status    string `json:"status"`
	Codename  string `json:"codename"`
	Duplicate bool   `json:"duplicate"`
}

func codenameParam(r *http.Request) (string, error) {
	codename := strings.TrimSpace(chi.URLParam(r, "codename"))
	if codename == "" {
		return "", fmt.Errorf("missing codename: %w", ErrBadRequest)
	}
	return codename, nil
}

// HandleDefault handles GET /boards by redirecting to the default board.
func (h *BoardsHandler) HandleDefault(w http.ResponseWriter, r *http.Request) {
	codename, err := h.deps.DefaultCodename(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	http.Redirect(w, r, "/boards/"+url.PathEscape(codename), http.StatusFound)
}

// HandleBoard handles GET /boards/{codename}.
func (h *BoardsHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	codename, err := codenameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	view, err := h.deps.Present(r.Context(), codename)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleEntry handles GET /boards/{codename}/teams/{team}.
func (h *BoardsHandler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	codename, err := codenameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	team := strings.TrimSpace(chi.URLParam(r, "team"))
	if team == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	entry, err := h.deps.Entry(r.Context(), codename, team)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleExport handles GET /boards/{codename}/export.xlsx.
func (h *BoardsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
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

	var buf bytes.Buffer
	if err := export.WriteBoardXLSX(&buf, codename, board); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.SheetName(codename)+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleRefresh handles POST /boards/{codename}/refresh.
func (h *BoardsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	codename, err := codenameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	status, err := h.deps.RequestRefresh(r.Context(), codename)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: "accepted", Codename: status.Codename, Duplicate: status.Duplicate})
}
