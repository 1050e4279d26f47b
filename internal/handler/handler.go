// Package handler exposes the service desk over a JSON HTTP API. Handlers
// decode requests, delegate to the domain services, and map domain errors to
// HTTP status codes; they hold no business logic of their own.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/optiontech/servicedesk/internal/domain/catalog"
	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/loyalty"
	"github.com/optiontech/servicedesk/internal/domain/order"
)

// Handler serves the public and staff API endpoints, delegating business
// logic to the domain services.
type Handler struct {
	registrar *customer.Registrar
	customers customer.Repository
	catalog   catalog.Repository
	ledger    *loyalty.Ledger
	redeemer  *loyalty.Redeemer
	promos    *loyalty.PromoClaimer
	workflow  *order.Workflow
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	registrar *customer.Registrar,
	customers customer.Repository,
	cat catalog.Repository,
	ledger *loyalty.Ledger,
	redeemer *loyalty.Redeemer,
	promos *loyalty.PromoClaimer,
	workflow *order.Workflow,
) *Handler {
	return &Handler{
		registrar: registrar,
		customers: customers,
		catalog:   cat,
		ledger:    ledger,
		redeemer:  redeemer,
		promos:    promos,
		workflow:  workflow,
	}
}

// Routes registers all API endpoints on mux. Mutating workshop endpoints go
// through the scoped auth middlewares supplied by the caller.
func (h *Handler) Routes(mux *http.ServeMux, ordersAuth, ledgerAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/customers", h.RegisterCustomer)
	mux.HandleFunc("GET /api/customers/{id}", h.GetCustomer)
	mux.HandleFunc("GET /api/customers/{id}/transactions", h.ListTransactions)

	mux.HandleFunc("GET /api/services", h.ListServices)
	mux.HandleFunc("POST /api/quotes", h.QuotePrice)

	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{number}", h.GetOrder)
	mux.HandleFunc("GET /api/orders/{number}/history", h.OrderHistory)

	mux.HandleFunc("GET /api/rewards", h.ListRewards)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", h.RedeemReward)
	mux.HandleFunc("POST /api/promos/claim", h.ClaimPromo)

	mux.Handle("POST /api/orders/{number}/transition", ordersAuth(http.HandlerFunc(h.TransitionOrder)))
	mux.Handle("POST /api/orders/{number}/costs", ordersAuth(http.HandlerFunc(h.SetOrderCosts)))
	mux.Handle("POST /api/customers/{id}/adjust", ledgerAuth(http.HandlerFunc(h.AdjustPoints)))
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeDomainError maps domain errors to HTTP status codes. Unmapped errors
// are logged and answered with an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, customer.ErrNameRequired),
		errors.Is(err, customer.ErrEmailRequired),
		errors.Is(err, order.ErrCustomerRequired),
		errors.Is(err, order.ErrServiceRequired),
		errors.Is(err, order.ErrInvalidPriority),
		errors.Is(err, order.ErrNegativeCost),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, loyalty.ErrNonPositivePoints):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, catalog.ErrBrandNotFound),
		errors.Is(err, loyalty.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrOrderClosed),
		errors.Is(err, loyalty.ErrPromoUsed):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, customer.ErrDeactivated),
		errors.Is(err, loyalty.ErrInsufficientBalance),
		errors.Is(err, loyalty.ErrTierTooLow),
		errors.Is(err, loyalty.ErrRewardUnavailable),
		errors.Is(err, loyalty.ErrRewardWindowOver),
		errors.Is(err, loyalty.ErrRewardSoldOut),
		errors.Is(err, loyalty.ErrPromoInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
