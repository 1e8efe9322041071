package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// Handler exposes report derivation and aggregation.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/compute", h.compute)
	r.Get("/aggregate", h.aggregate)
}

type computeRequest struct {
	ReportDate string `json:"report_date"`
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	day := time.Now().UTC()
	if req.ReportDate != "" {
		parsed, err := shared.ParseDate(req.ReportDate)
		if err != nil {
			httpx.BadRequest(w, err)
			return
		}
		day = parsed
	}
	summary, err := h.service.ComputeReports(r.Context(), day)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		httpx.BadRequest(w, err)
		return
	}
	machineID, _ := strconv.ParseInt(r.URL.Query().Get("machine_id"), 10, 64)
	rows, err := h.service.List(r.Context(), from, to, machineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		httpx.BadRequest(w, err)
		return
	}
	period := Period(r.URL.Query().Get("period"))
	if period == "" {
		period = PeriodDaily
	}
	machineID, _ := strconv.ParseInt(r.URL.Query().Get("machine_id"), 10, 64)
	buckets, err := h.service.Aggregate(r.Context(), period, from, to, machineID)
	if err != nil {
		if errors.Is(err, ErrBadPeriod) {
			httpx.BadRequest(w, err)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := shared.ParseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := shared.ParseDate(r.URL.Query().Get("end_date"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}
