// Package httpapi is the HTTP/JSON boundary of the service. Handlers decode
// requests, delegate to the domain services, and translate domain errors to
// transport status codes through the explicit table in errors.go.
package httpapi

import (
	"net/http"

	"github.com/velmar/orderdesk/internal/domain/cart"
	"github.com/velmar/orderdesk/internal/domain/order"
	"github.com/velmar/orderdesk/internal/domain/product"
)

// Handler bundles the domain services behind the HTTP surface.
type Handler struct {
	carts    *cart.Service
	orders   *order.Service
	products product.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(carts *cart.Service, orders *order.Service, products product.Repository) *Handler {
	return &Handler{
		carts:    carts,
		orders:   orders,
		products: products,
	}
}

// Routes returns the API route table. Authentication is applied by the
// caller, around the whole mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)

	mux.HandleFunc("POST /api/carts", h.createCart)
	mux.HandleFunc("GET /api/carts/{id}", h.getCart)
	mux.HandleFunc("POST /api/carts/{id}/lines", h.addCartLine)
	mux.HandleFunc("PATCH /api/carts/{id}/lines/{productID}", h.updateCartLine)
	mux.HandleFunc("DELETE /api/carts/{id}/lines/{productID}", h.removeCartLine)

	mux.HandleFunc("POST /api/checkout", h.checkout)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.transitionOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.initiatePayment)
	mux.HandleFunc("POST /api/payments/callback", h.paymentCallback)

	return mux
}
