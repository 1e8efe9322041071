package refs

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
)

// Handler exposes reference registry CRUD.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a refs handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers reference routes under /api/refs.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.list)
	r.Post("/{kind}", h.create)
	r.Put("/{kind}/{id}", h.update)
	r.Delete("/{kind}/{id}", h.delete)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrMissingReference) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.List(r.Context(), Kind(chi.URLParam(r, "kind")))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type entryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name is required")
		return
	}
	entry, err := h.repo.Insert(r.Context(), Kind(chi.URLParam(r, "kind")), req.Name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name is required")
		return
	}
	if err := h.repo.Update(r.Context(), Kind(chi.URLParam(r, "kind")), id, req.Name); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Entry{ID: id, Name: req.Name})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.repo.Delete(r.Context(), Kind(chi.URLParam(r, "kind")), id); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.NoContent(w)
}
