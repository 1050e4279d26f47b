package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type rewardResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Kind           string          `json:"kind"`
	Value          decimal.Decimal `json:"value"`
	PointsRequired int             `json:"points_required"`
	MinTier        string          `json:"min_tier"`
	MinOrderValue  decimal.Decimal `json:"min_order_value"`
	AvailableFrom  *time.Time      `json:"available_from,omitempty"`
	AvailableUntil *time.Time      `json:"available_until,omitempty"`
}

// ListRewards handles GET /api/rewards.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.redeemer.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]rewardResponse, len(rewards))
	for i, rw := range rewards {
		resp[i] = rewardResponse{
			ID:             rw.ID,
			Name:           rw.Name,
			Description:    rw.Description,
			Kind:           string(rw.Kind),
			Value:          rw.Value,
			PointsRequired: rw.PointsRequired,
			MinTier:        string(rw.MinTier),
			MinOrderValue:  rw.MinOrderValue,
			AvailableFrom:  rw.AvailableFrom,
			AvailableUntil: rw.AvailableUntil,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type redeemRequest struct {
	CustomerID string `json:"customer_id"`
	OrderID    string `json:"order_id"`
}

type redemptionResponse struct {
	ID          string    `json:"id"`
	RewardID    string    `json:"reward_id"`
	PointsUsed  int       `json:"points_used"`
	Status      string    `json:"status"`
	VoucherCode string    `json:"voucher_code"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedeemReward handles POST /api/rewards/{id}/redeem.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id required")
		return
	}

	red, err := h.redeemer.Redeem(r.Context(), req.CustomerID, r.PathValue("id"), req.OrderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, redemptionResponse{
		ID:          red.ID,
		RewardID:    red.RewardID,
		PointsUsed:  red.PointsUsed,
		Status:      string(red.Status),
		VoucherCode: red.VoucherCode,
		ExpiresAt:   red.ExpiresAt,
		CreatedAt:   red.CreatedAt,
	})
}

type claimPromoRequest struct {
	CustomerID string `json:"customer_id"`
	Code       string `json:"code"`
}

// ClaimPromo handles POST /api/promos/claim.
func (h *Handler) ClaimPromo(w http.ResponseWriter, r *http.Request) {
	var req claimPromoRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "customer_id and code required")
		return
	}

	entry, err := h.promos.Claim(r.Context(), req.CustomerID, req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(*entry))
}
