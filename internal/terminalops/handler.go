package terminalops

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/refs"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// Handler exposes the terminal operation API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a terminalops handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers terminal operation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upsert)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Post("/close-day", h.closeDay)
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrOperationClosed), errors.Is(err, refs.ErrMissingReference):
		httpx.BadRequest(w, err)
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r, 100)
	f := ListFilter{Limit: page.Limit, Offset: page.Offset}
	if v := r.URL.Query().Get("terminal_id"); v != "" {
		f.TerminalID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		if d, err := shared.ParseDate(v); err == nil {
			f.From = &d
		}
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		if d, err := shared.ParseDate(v); err == nil {
			end := d.Add(24 * time.Hour)
			f.To = &end
		}
	}
	rows, err := h.service.List(r.Context(), f)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var op Operation
	if err := httpx.DecodeJSON(r, &op); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	if op.TerminalID <= 0 || op.OperationDate.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "terminal and operation date are required")
		return
	}
	saved, err := h.service.Upsert(r.Context(), op)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	op, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	httpx.NoContent(w)
}

type closeDayRequest struct {
	OperationDate string `json:"operation_date"`
	ClosedBy      *int64 `json:"closed_by,omitempty"`
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	var req closeDayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	date, err := shared.ParseDate(req.OperationDate)
	if err != nil {
		httpx.BadRequest(w, err)
		return
	}
	closedBy := req.ClosedBy
	if closedBy == nil {
		if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.UserID > 0 {
			closedBy = &actor.UserID
		}
	}
	summary, err := h.service.CloseDay(r.Context(), date, closedBy)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
