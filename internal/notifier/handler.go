package notifier

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// Handler exposes notification history and manual dispatch.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a notifier handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.history)
	r.Post("/send", h.send)
}

type sendRequest struct {
	NotificationType string   `json:"notification_type" validate:"required"`
	Title            string   `json:"title"`
	Message          string   `json:"message" validate:"required"`
	Priority         Priority `json:"priority"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	if req.NotificationType == "" || req.Message == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "notification_type and message are required")
		return
	}
	result, err := h.service.Send(r.Context(), req.NotificationType, req.Title, req.Message, req.Priority)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r, 50)
	rows, err := h.service.ListHistory(r.Context(), page.Limit, page.Offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}
