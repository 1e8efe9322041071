package movements

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
	"github.com/cranefleet/cranefleet/internal/stock"
)

// Handler exposes the movement document API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a movements handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/execute", h.execute)
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidShape),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrValidation),
		errors.Is(err, refs.ErrMissingReference),
		errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, stock.ErrCapacityExceeded):
		httpx.BadRequest(w, err)
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func actorID(r *http.Request) *int64 {
	if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.UserID > 0 {
		id := actor.UserID
		return &id
	}
	return nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r, 100)
	f := ListFilter{
		MovementType: Kind(r.URL.Query().Get("movement_type")),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	if v := r.URL.Query().Get("status_id"); v != "" {
		f.StatusID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("machine_id"); v != "" {
		f.MachineID, _ = strconv.ParseInt(v, 10, 64)
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
	if f.MovementType != "" && !f.MovementType.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown movement type")
		return
	}
	rows, err := h.service.List(r.Context(), f)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var m Movement
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	m.CreatedBy = actorID(r)
	created, err := h.service.Create(r.Context(), m)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var m Movement
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	m.ID = id
	updated, err := h.service.Update(r.Context(), m)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	m, err := h.service.Approve(r.Context(), id, actorID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	m, err := h.service.Execute(r.Context(), id, actorID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
