package vendista

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// Handler exposes the manual sync trigger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a vendista handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the sync route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync-vendista", h.sync)
}

type syncRequest struct {
	SyncDate string `json:"sync_date"`
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	date, err := shared.ParseDate(req.SyncDate)
	if err != nil {
		httpx.BadRequest(w, err)
		return
	}
	result, err := h.service.Sync(r.Context(), date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
