package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/catalog"
	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/order"
	"github.com/optiontech/servicedesk/internal/domain/pricing"
)

type serviceResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Slug              string          `json:"slug"`
	Category          string          `json:"category"`
	ShortDescription  string          `json:"short_description,omitempty"`
	BasePriceMin      decimal.Decimal `json:"base_price_min"`
	BasePriceMax      decimal.Decimal `json:"base_price_max"`
	Difficulty        string          `json:"difficulty"`
	EstimatedDuration string          `json:"estimated_duration"`
	WarrantyDays      int             `json:"warranty_days"`
}

// ListServices handles GET /api/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.ListServices(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]serviceResponse, len(services))
	for i, svc := range services {
		resp[i] = serviceResponse{
			ID:                svc.ID,
			Name:              svc.Name,
			Slug:              svc.Slug,
			Category:          svc.Category,
			ShortDescription:  svc.ShortDescription,
			BasePriceMin:      svc.BasePriceMin,
			BasePriceMax:      svc.BasePriceMax,
			Difficulty:        string(svc.Difficulty),
			EstimatedDuration: svc.EstimatedDuration.String(),
			WarrantyDays:      svc.WarrantyDays,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type quoteRequest struct {
	CustomerID string `json:"customer_id"`
	ServiceID  string `json:"service_id"`
	BrandID    string `json:"brand_id"`
	Priority   string `json:"priority"`
}

type quoteResponse struct {
	PriceMin    decimal.Decimal `json:"price_min"`
	PriceMax    decimal.Decimal `json:"price_max"`
	Collapsed   bool            `json:"collapsed"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Priority    string          `json:"priority"`
	EstimatedBy time.Time       `json:"estimated_by"`
}

// QuotePrice handles POST /api/quotes. An anonymous quote (no customer ID)
// carries no membership discount.
func (h *Handler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ServiceID == "" {
		writeDomainError(w, r, order.ErrServiceRequired)
		return
	}

	priority := pricing.Priority(req.Priority)
	if priority == "" {
		priority = pricing.PriorityStandard
	}
	if !priority.Valid() {
		writeDomainError(w, r, order.ErrInvalidPriority)
		return
	}

	discount := decimal.Zero
	if req.CustomerID != "" {
		c, err := h.customers.GetByID(r.Context(), req.CustomerID)
		if err != nil && !errors.Is(err, customer.ErrNotFound) {
			writeDomainError(w, r, err)
			return
		}
		if err == nil {
			discount = c.Tier.Discount()
		}
	}

	svc, err := h.catalog.GetService(r.Context(), req.ServiceID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var brand *catalog.Brand
	if req.BrandID != "" {
		brand, err = h.catalog.GetBrand(r.Context(), req.BrandID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	quote := pricing.Quote(svc, brand, priority, discount)
	writeJSON(w, http.StatusOK, quoteResponse{
		PriceMin:    quote.Min,
		PriceMax:    quote.Max,
		Collapsed:   quote.Collapsed(),
		DiscountPct: discount,
		Priority:    string(priority),
		EstimatedBy: time.Now().Add(svc.EstimatedDuration),
	})
}
