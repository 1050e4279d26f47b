package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/loyalty"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type customerResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone,omitempty"`
	PointBalance   int             `json:"point_balance"`
	LifetimePoints int             `json:"lifetime_points"`
	Tier           string          `json:"tier"`
	DiscountPct    decimal.Decimal `json:"discount_pct"`
	PointsToNext   int             `json:"points_to_next_tier"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalOrders    int             `json:"total_orders"`
	ReferralCode   string          `json:"referral_code"`
	TotalReferrals int             `json:"total_referrals"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toCustomerResponse(c *customer.Customer) customerResponse {
	return customerResponse{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		PointBalance:   c.PointBalance,
		LifetimePoints: c.LifetimePoints,
		Tier:           string(c.Tier),
		DiscountPct:    c.Tier.Discount(),
		PointsToNext:   customer.PointsToNext(c.LifetimePoints),
		TotalSpent:     c.TotalSpent,
		TotalOrders:    c.TotalOrders,
		ReferralCode:   c.ReferralCode,
		TotalReferrals: c.TotalReferrals,
		CreatedAt:      c.CreatedAt,
	}
}

// RegisterCustomer handles POST /api/customers.
func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.registrar.Register(r.Context(), customer.RegisterRequest{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		ReferredByCode: req.ReferralCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerResponse(c))
}

// GetCustomer handles GET /api/customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

type entryResponse struct {
	ID            string     `json:"id"`
	Delta         int        `json:"delta"`
	Kind          string     `json:"kind"`
	Reason        string     `json:"reason"`
	OrderID       string     `json:"order_id,omitempty"`
	BalanceBefore int        `json:"balance_before"`
	BalanceAfter  int        `json:"balance_after"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toEntryResponse(e loyalty.Entry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		Delta:         e.Delta,
		Kind:          string(e.Kind),
		Reason:        e.Reason,
		OrderID:       e.OrderID,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		ExpiresAt:     e.ExpiresAt,
		CreatedAt:     e.CreatedAt,
	}
}

// ListTransactions handles GET /api/customers/{id}/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.customers.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	entries, err := h.ledger.Entries(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

type adjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustPoints handles POST /api/customers/{id}/adjust (staff only).
func (h *Handler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.ledger.Adjust(r.Context(), r.PathValue("id"), req.Delta, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(*entry))
}
