package monitoring

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// Handler exposes snapshot recording and listing.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a monitoring handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers monitoring routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var snap Snapshot
	if err := httpx.DecodeJSON(r, &snap); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	if snap.MachineID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "machine is required")
		return
	}
	saved, err := h.service.Record(r.Context(), snap)
	if err != nil {
		if errors.Is(err, ErrNegativeCounter) {
			httpx.BadRequest(w, err)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	machineID, _ := strconv.ParseInt(r.URL.Query().Get("machine_id"), 10, 64)
	if machineID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "machine_id is required")
		return
	}
	page := shared.PageFromRequest(r, 100)
	rows, err := h.service.List(r.Context(), machineID, page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}
