package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/order"
	"github.com/optiontech/servicedesk/internal/domain/pricing"
)

type placeOrderRequest struct {
	CustomerID  string `json:"customer_id"`
	ServiceID   string `json:"service_id"`
	BrandID     string `json:"brand_id"`
	DeviceModel string `json:"device_model"`
	Problem     string `json:"problem"`
	Priority    string `json:"priority"`
}

type orderResponse struct {
	Number      string `json:"number"`
	CustomerID  string `json:"customer_id"`
	ServiceID   string `json:"service_id"`
	BrandID     string `json:"brand_id,omitempty"`
	DeviceModel string `json:"device_model,omitempty"`
	Problem     string `json:"problem,omitempty"`

	Status   string `json:"status"`
	Priority string `json:"priority"`

	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
	FinalCost      decimal.Decimal `json:"final_cost"`
	PartsCost      decimal.Decimal `json:"parts_cost"`
	LaborCost      decimal.Decimal `json:"labor_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`

	PointsUsed   int `json:"points_used"`
	PointsEarned int `json:"points_earned"`

	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	WarrantyExpires     *time.Time `json:"warranty_expires,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		Number:              o.Number,
		CustomerID:          o.CustomerID,
		ServiceID:           o.ServiceID,
		BrandID:             o.BrandID,
		DeviceModel:         o.DeviceModel,
		Problem:             o.Problem,
		Status:              string(o.Status),
		Priority:            string(o.Priority),
		EstimatedCost:       o.EstimatedCost,
		FinalCost:           o.FinalCost,
		PartsCost:           o.PartsCost,
		LaborCost:           o.LaborCost,
		DiscountAmount:      o.DiscountAmount,
		PointsUsed:          o.PointsUsed,
		PointsEarned:        o.PointsEarned,
		EstimatedCompletion: o.EstimatedCompletion,
		CompletedAt:         o.CompletedAt,
		PickedUpAt:          o.PickedUpAt,
		DeliveredAt:         o.DeliveredAt,
		WarrantyExpires:     o.WarrantyExpires,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

type placeOrderResponse struct {
	Order    orderResponse   `json:"order"`
	QuoteMin decimal.Decimal `json:"quote_min"`
	QuoteMax decimal.Decimal `json:"quote_max"`
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.workflow.Place(r.Context(), order.PlaceRequest{
		CustomerID:  req.CustomerID,
		ServiceID:   req.ServiceID,
		BrandID:     req.BrandID,
		DeviceModel: req.DeviceModel,
		Problem:     req.Problem,
		Priority:    pricing.Priority(req.Priority),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		Order:    toOrderResponse(result.Order),
		QuoteMin: result.Quote.Min,
		QuoteMax: result.Quote.Max,
	})
}

// GetOrder handles GET /api/orders/{number}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.workflow.Get(r.Context(), r.PathValue("number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type statusChangeResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Notes     string    `json:"notes,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderHistory handles GET /api/orders/{number}/history.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.workflow.History(r.Context(), r.PathValue("number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]statusChangeResponse, len(history))
	for i, sc := range history {
		resp[i] = statusChangeResponse{
			From:      string(sc.From),
			To:        string(sc.To),
			Notes:     sc.Notes,
			ActorID:   sc.ActorID,
			CreatedAt: sc.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type transitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// TransitionOrder handles POST /api/orders/{number}/transition (staff only).
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.workflow.Transition(r.Context(),
		r.PathValue("number"), order.Status(req.Status), req.Notes, actorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type costsRequest struct {
	FinalCost      decimal.Decimal `json:"final_cost"`
	PartsCost      decimal.Decimal `json:"parts_cost"`
	LaborCost      decimal.Decimal `json:"labor_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PointsUsed     int             `json:"points_used"`
	TechnicianID   string          `json:"technician_id"`
}

// SetOrderCosts handles POST /api/orders/{number}/costs (staff only).
func (h *Handler) SetOrderCosts(w http.ResponseWriter, r *http.Request) {
	var req costsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.workflow.SetCosts(r.Context(), r.PathValue("number"), order.Costs{
		FinalCost:      req.FinalCost,
		PartsCost:      req.PartsCost,
		LaborCost:      req.LaborCost,
		DiscountAmount: req.DiscountAmount,
		PointsUsed:     req.PointsUsed,
		TechnicianID:   req.TechnicianID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
