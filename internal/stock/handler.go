package stock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
)

// Handler exposes stock listings and primitive operations.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.listWarehouse)
	r.Get("/machines", h.listMachine)
	r.Get("/low", h.lowStock)
	r.Post("/warehouses/add", h.op2(h.service.AddToWarehouse))
	r.Post("/warehouses/remove", h.op2(h.service.RemoveFromWarehouse))
	r.Post("/warehouses/reserve", h.op2(h.service.Reserve))
	r.Post("/warehouses/release", h.op2(h.service.Release))
	r.Post("/machines/add", h.op2(h.service.AddToMachine))
	r.Post("/machines/remove", h.op2(h.service.RemoveFromMachine))
	r.Post("/transfer", h.transfer)
}

type opRequest struct {
	WarehouseID int64           `json:"warehouse_id"`
	MachineID   int64           `json:"machine_id"`
	ItemID      int64           `json:"item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type transferRequest struct {
	FromWarehouseID int64           `json:"from_warehouse_id"`
	ToWarehouseID   int64           `json:"to_warehouse_id"`
	FromMachineID   int64           `json:"from_machine_id"`
	ToMachineID     int64           `json:"to_machine_id"`
	ItemID          int64           `json:"item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStockNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrInvalidRelease),
		errors.Is(err, ErrInvalidQuantity):
		httpx.BadRequest(w, err)
	default:
		httpx.RespondError(w, err)
	}
}

func queryID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id
}

func (h *Handler) listWarehouse(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListWarehouseStock(r.Context(), queryID(r, "warehouse_id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) listMachine(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListMachineStock(r.Context(), queryID(r, "machine_id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LowStock(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// op2 adapts a (location, item, qty) primitive into a handler. The location
// id is whichever of warehouse_id or machine_id the route targets.
func (h *Handler) op2(fn func(ctx context.Context, locationID, itemID int64, qty decimal.Decimal) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req opRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.BadRequest(w, err)
			return
		}
		locationID := req.WarehouseID
		if locationID == 0 {
			locationID = req.MachineID
		}
		if locationID <= 0 || req.ItemID <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "location and item are required")
			return
		}
		if err := fn(r.Context(), locationID, req.ItemID, req.Quantity); err != nil {
			respondErr(w, err)
			return
		}
		httpx.NoContent(w)
	}
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, err)
		return
	}
	if req.ItemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "item is required")
		return
	}
	ctx := r.Context()
	var err error
	switch {
	case req.FromWarehouseID > 0 && req.ToWarehouseID > 0:
		err = h.service.TransferWarehouse(ctx, req.FromWarehouseID, req.ToWarehouseID, req.ItemID, req.Quantity)
	case req.FromMachineID > 0 && req.ToMachineID > 0:
		err = h.service.TransferMachine(ctx, req.FromMachineID, req.ToMachineID, req.ItemID, req.Quantity)
	case req.FromWarehouseID > 0 && req.ToMachineID > 0:
		err = h.service.LoadMachine(ctx, req.FromWarehouseID, req.ToMachineID, req.ItemID, req.Quantity)
	case req.FromMachineID > 0 && req.ToWarehouseID > 0:
		err = h.service.UnloadMachine(ctx, req.FromMachineID, req.ToWarehouseID, req.ItemID, req.Quantity)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "transfer endpoints are ambiguous or missing")
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.NoContent(w)
}
