package masterdata

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// Handler exposes master data CRUD under /api.
type Handler struct {
	logger  *slog.Logger
	service *Service
	repo    *Repository
}

// NewHandler constructs a masterdata handler.
func NewHandler(logger *slog.Logger, service *Service, repo *Repository) *Handler {
	return &Handler{logger: logger, service: service, repo: repo}
}

// MountRoutes registers master data resources.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/owners", func(r chi.Router) {
		r.Get("/", h.listOwners)
		r.Post("/", h.createOwner)
		r.Get("/{id}", h.getOwner)
		r.Put("/{id}", h.updateOwner)
		r.Delete("/{id}", h.retire(h.repo.RetireOwner))
	})
	r.Route("/counterparties", func(r chi.Router) {
		r.Get("/", h.listCounterparties)
		r.Post("/", h.createCounterparty)
		r.Get("/{id}", h.getCounterparty)
		r.Delete("/{id}", h.retire(h.repo.RetireCounterparty))
	})
	r.Route("/terminals", func(r chi.Router) {
		r.Get("/", h.listTerminals)
		r.Post("/", h.createTerminal)
		r.Get("/{id}", h.getTerminal)
		r.Put("/{id}", h.updateTerminal)
		r.Delete("/{id}", h.retire(h.repo.RetireTerminal))
	})
	r.Route("/machines", func(r chi.Router) {
		r.Get("/", h.listMachines)
		r.Post("/", h.createMachine)
		r.Get("/{id}", h.getMachine)
		r.Put("/{id}", h.updateMachine)
		r.Delete("/{id}", h.retire(h.repo.RetireMachine))
	})
	r.Route("/phones", func(r chi.Router) {
		r.Get("/", h.listPhones)
		r.Post("/", h.createPhone)
		r.Get("/{id}", h.getPhone)
		r.Delete("/{id}", h.retire(h.repo.RetirePhone))
	})
	r.Route("/rents", func(r chi.Router) {
		r.Get("/", h.listRents)
		r.Post("/", h.createRent)
		r.Get("/{id}", h.getRent)
		r.Put("/{id}", h.updateRent)
		r.Delete("/{id}", h.deleteRent)
	})
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
		r.Get("/{id}", h.getItem)
		r.Put("/{id}", h.updateItem)
		r.Delete("/{id}", h.retire(h.repo.RetireItem))
	})
	r.Route("/item-categories", func(r chi.Router) {
		r.Get("/", h.listItemCategories)
		r.Post("/", h.createItemCategory)
		r.Delete("/{id}", h.retire(h.repo.DeleteItemCategory))
	})
	r.Route("/warehouses", func(r chi.Router) {
		r.Get("/", h.listWarehouses)
		r.Post("/", h.createWarehouse)
		r.Get("/{id}", h.getWarehouse)
		r.Put("/{id}", h.updateWarehouse)
		r.Delete("/{id}", h.retire(h.repo.RetireWarehouse))
	})
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.BadRequest(w, err)
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func listFilter(r *http.Request) ListFilter {
	page := shared.PageFromRequest(r, 100)
	return ListFilter{
		Search:       r.URL.Query().Get("search"),
		IncludeEnded: r.URL.Query().Get("include_ended") == "true",
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
}

func (h *Handler) retire(fn func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
			return
		}
		if err := fn(r.Context(), id); err != nil {
			respondErr(w, err)
			return
		}
		httpx.NoContent(w)
	}
}

// list responds with the outcome of a filtered list call.
func list[T any](w http.ResponseWriter, r *http.Request, fn func(context.Context, ListFilter) ([]T, error)) {
	rows, err := fn(r.Context(), listFilter(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// get responds with one entity by path id.
func get[T any](w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (T, error)) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	row, err := fn(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

// create decodes the body and responds with the created entity.
func create[T any](w http.ResponseWriter, r *http.Request, fn func(context.Context, T) (T, error)) {
	var in T
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	row, err := fn(r.Context(), in)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) listOwners(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListOwners)
}

func (h *Handler) getOwner(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetOwner)
}

func (h *Handler) createOwner(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateOwner)
}

func (h *Handler) updateOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var o Owner
	if err := httpx.DecodeJSON(r, &o); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	o.ID = id
	if err := h.service.UpdateOwner(r.Context(), o); err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) listCounterparties(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListCounterparties)
}

func (h *Handler) getCounterparty(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetCounterparty)
}

func (h *Handler) createCounterparty(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateCounterparty)
}

func (h *Handler) listTerminals(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListTerminals)
}

func (h *Handler) getTerminal(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetTerminal)
}

func (h *Handler) createTerminal(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateTerminal)
}

func (h *Handler) updateTerminal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var t Terminal
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	t.ID = id
	if err := h.repo.UpdateTerminal(r.Context(), t); err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) listMachines(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListMachines)
}

func (h *Handler) getMachine(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetMachine)
}

func (h *Handler) createMachine(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateMachine)
}

func (h *Handler) updateMachine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var m Machine
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	m.ID = id
	if err := h.service.UpdateMachine(r.Context(), m); err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) listPhones(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListPhones)
}

func (h *Handler) getPhone(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetPhone)
}

func (h *Handler) createPhone(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreatePhone)
}

func (h *Handler) listRents(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r, 100)
	rents, err := h.repo.ListRents(r.Context(), page.Limit, page.Offset)
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rents)
}

func (h *Handler) getRent(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetRent)
}

func (h *Handler) createRent(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateRent)
}

func (h *Handler) updateRent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var rent Rent
	if err := httpx.DecodeJSON(r, &rent); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	rent.ID = id
	if err := h.service.UpdateRent(r.Context(), rent); err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rent)
}

func (h *Handler) deleteRent(w http.ResponseWriter, r *http.Request) {
	h.retire(h.repo.DeleteRent)(w, r)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListItems)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetItem)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateItem)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var it Item
	if err := httpx.DecodeJSON(r, &it); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	it.ID = id
	if err := h.service.UpdateItem(r.Context(), it); err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

func (h *Handler) listItemCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.repo.ListItemCategories(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cats)
}

func (h *Handler) createItemCategory(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.repo.CreateItemCategory)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	list(w, r, h.repo.ListWarehouses)
}

func (h *Handler) getWarehouse(w http.ResponseWriter, r *http.Request) {
	get(w, r, h.repo.GetWarehouse)
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.service.CreateWarehouse)
}

func (h *Handler) updateWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var wh Warehouse
	if err := httpx.DecodeJSON(r, &wh); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	wh.ID = id
	if err := h.service.UpdateWarehouse(r.Context(), wh); err != nil {
		respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wh)
}
