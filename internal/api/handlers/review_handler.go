package handlers

import (
	"net/http"

	"github.com/perkhub/coffee-shop-backend/internal/api/middleware"
	"github.com/perkhub/coffee-shop-backend/internal/service"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type createReviewRequest struct {
	CoffeeID int    `json:"coffee_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Create handles POST /api/reviews.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := h.reviews.Create(r.Context(), identity.UserID, req.CoffeeID, req.Rating, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

type updateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Update handles PUT /api/reviews/{id}; only the author may update.
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := h.reviews.Update(r.Context(), id, identity.UserID, req.Rating, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// Delete handles DELETE /api/reviews/{id}; the author or an admin.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.reviews.Delete(r.Context(), id, identity.UserID, identity.Role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListForCoffee handles GET /api/coffees/{id}/reviews.
func (h *ReviewHandler) ListForCoffee(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	reviews, err := h.reviews.ListForCoffee(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}
