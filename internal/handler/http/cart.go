package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/cart"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httputil"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/logger"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(sessions Sessions, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
// Quantity defaults to 1 when omitted.
type AddItemRequest struct {
	Product  domain.Product `json:"product"`
	Quantity *int           `json:"quantity"`
}

// UpdateQuantityRequest is the JSON request body for setting an item's quantity.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// --- Responses ---

// CartResponse is the cart view returned by every cart endpoint.
type CartResponse struct {
	Items   []domain.CartItem  `json:"items"`
	Summary domain.CartSummary `json:"summary"`
}

// MutationResponse adds the outcome of a quantity change to the cart view.
type MutationResponse struct {
	CartResponse
	Change *cart.Change `json:"change,omitempty"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, cartView(s.Cart))
}

// GetSummary handles GET /api/v1/cart/summary
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, s.Cart.Summary())
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}

	change, err := s.Cart.AddItem(r.Context(), req.Product, qty)
	if !h.mutationOK(w, r, err) {
		return
	}
	httputil.WriteData(w, http.StatusOK, MutationResponse{CartResponse: cartView(s.Cart), Change: &change})
}

// UpdateQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req UpdateQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}

	change, err := s.Cart.UpdateQuantity(r.Context(), productID, *req.Quantity)
	if !h.mutationOK(w, r, err) {
		return
	}
	httputil.WriteData(w, http.StatusOK, MutationResponse{CartResponse: cartView(s.Cart), Change: &change})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}

	err := s.Cart.RemoveItem(r.Context(), chi.URLParam(r, "productId"))
	if !h.mutationOK(w, r, err) {
		return
	}
	httputil.WriteData(w, http.StatusOK, cartView(s.Cart))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.sessions, h.logger)
	if !ok {
		return
	}

	err := s.Cart.Clear(r.Context())
	if !h.mutationOK(w, r, err) {
		return
	}
	httputil.WriteData(w, http.StatusOK, cartView(s.Cart))
}

// mutationOK writes err unless it is a persistence failure; the in-memory
// cart has already changed in that case and stays authoritative.
func (h *CartHandler) mutationOK(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, apperrors.ErrPersistence) {
		logger.FromContext(r.Context()).WarnContext(r.Context(), "cart changed but snapshot was not saved",
			slog.String("error", err.Error()),
		)
		return true
	}
	httputil.WriteError(w, r, err, h.logger)
	return false
}

func cartView(c *cart.Store) CartResponse {
	items := c.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{Items: items, Summary: c.Summary()}
}
