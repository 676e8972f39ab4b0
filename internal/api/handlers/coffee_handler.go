package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/service"
)

type CoffeeHandler struct {
	menu *service.MenuService
}

func NewCoffeeHandler(menu *service.MenuService) *CoffeeHandler {
	return &CoffeeHandler{menu: menu}
}

// List handles GET /api/coffees with search/filter/sort/pagination
// query parameters.
func (h *CoffeeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.menu.List(r.Context(), models.CoffeeQueryParams{
		Search:   q.Get("search"),
		Type:     q.Get("type"),
		MinPrice: q.Get("min_price"),
		MaxPrice: q.Get("max_price"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /api/coffees/{id}.
func (h *CoffeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	coffee, err := h.menu.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coffee)
}

type createCoffeeRequest struct {
	Name        string          `json:"name"`
	CoffeeType  string          `json:"coffee_type"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
}

// Create handles POST /api/coffees (admin).
func (h *CoffeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCoffeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	coffee, err := h.menu.Create(r.Context(), models.Coffee{
		Name:        req.Name,
		CoffeeType:  req.CoffeeType,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, coffee)
}

// Update handles PUT /api/coffees/{id} (admin) with partial-update
// semantics.
func (h *CoffeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var upd models.CoffeeUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	coffee, err := h.menu.Update(r.Context(), id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coffee)
}

// Delete handles DELETE /api/coffees/{id} (admin).
func (h *CoffeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.menu.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
