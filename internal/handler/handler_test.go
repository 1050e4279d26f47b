package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiontech/servicedesk/internal/domain/catalog"
	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/loyalty"
	"github.com/optiontech/servicedesk/internal/notify"
)

type stubCustomers struct {
	customer *customer.Customer
	created  []*customer.Customer
}

func (s *stubCustomers) Create(_ context.Context, c *customer.Customer) error {
	cp := *c
	s.created = append(s.created, &cp)
	return nil
}

func (s *stubCustomers) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	if s.customer == nil || s.customer.ID != id {
		return nil, customer.ErrNotFound
	}
	return s.customer, nil
}

func (s *stubCustomers) GetByReferralCode(context.Context, string) (*customer.Customer, error) {
	return nil, customer.ErrNotFound
}

func (s *stubCustomers) IncrementReferrals(context.Context, string) error { return nil }

func (s *stubCustomers) RecordDelivery(context.Context, string, decimal.Decimal, time.Time) error {
	return nil
}

func (s *stubCustomers) Deactivate(context.Context, string) error { return nil }

type stubCatalog struct {
	service *catalog.Service
	brand   *catalog.Brand
}

func (s *stubCatalog) ListServices(context.Context) ([]catalog.Service, error) {
	if s.service == nil {
		return nil, nil
	}
	return []catalog.Service{*s.service}, nil
}

func (s *stubCatalog) GetService(_ context.Context, id string) (*catalog.Service, error) {
	if s.service == nil || s.service.ID != id {
		return nil, catalog.ErrServiceNotFound
	}
	return s.service, nil
}

func (s *stubCatalog) GetBrand(_ context.Context, id string) (*catalog.Brand, error) {
	if s.brand == nil || s.brand.ID != id {
		return nil, catalog.ErrBrandNotFound
	}
	return s.brand, nil
}

type stubLedgerStore struct{}

func (stubLedgerStore) Append(_ context.Context, _ string, mutate loyalty.MutateFunc) (*loyalty.Entry, error) {
	return nil, customer.ErrNotFound
}

func (stubLedgerStore) Entries(context.Context, string) ([]loyalty.Entry, error) {
	return nil, nil
}

func (stubLedgerStore) MaturedEarnings(context.Context, time.Time) ([]loyalty.Entry, error) {
	return nil, nil
}

func newTestHandler(customers *stubCustomers, cat *stubCatalog) *Handler {
	return NewHandler(
		customer.NewRegistrar(customers),
		customers,
		cat,
		loyalty.NewLedger(stubLedgerStore{}, notify.Nop{}),
		nil,
		nil,
		nil,
	)
}

func TestRegisterCustomer(t *testing.T) {
	customers := &stubCustomers{}
	h := newTestHandler(customers, &stubCatalog{})

	body := `{"name": "Budi", "email": "budi@example.com", "phone": "+62811"}`
	req := httptest.NewRequest(http.MethodPost, "/api/customers", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.RegisterCustomer(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp customerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Budi", resp.Name)
	assert.Equal(t, "bronze", resp.Tier)
	assert.Equal(t, 0, resp.PointBalance)
	assert.Equal(t, 2000, resp.PointsToNext)
	assert.Len(t, resp.ReferralCode, 8)
	require.Len(t, customers.created, 1)
}

func TestRegisterCustomerValidation(t *testing.T) {
	h := newTestHandler(&stubCustomers{}, &stubCatalog{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing name", `{"email": "x@example.com"}`, http.StatusBadRequest},
		{"missing email", `{"name": "X"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/customers", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.RegisterCustomer(w, req)
			assert.Equal(t, tt.want, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGetCustomerNotFound(t *testing.T) {
	h := newTestHandler(&stubCustomers{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/customers/ghost", nil)
	req.SetPathValue("id", "ghost")
	w := httptest.NewRecorder()

	h.GetCustomer(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuotePrice(t *testing.T) {
	customers := &stubCustomers{customer: &customer.Customer{
		ID:     "cust-1",
		Tier:   customer.TierGold,
		Active: true,
	}}
	cat := &stubCatalog{
		service: &catalog.Service{
			ID:           "screen-replacement",
			BasePriceMin: decimal.RequireFromString("100"),
			BasePriceMax: decimal.RequireFromString("200"),
			Active:       true,
		},
		brand: &catalog.Brand{ID: "apple", ServiceDifficulty: catalog.DifficultyHard},
	}
	h := newTestHandler(customers, cat)

	body := `{"customer_id": "cust-1", "service_id": "screen-replacement", "brand_id": "apple", "priority": "express"}`
	req := httptest.NewRequest(http.MethodPost, "/api/quotes", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.QuotePrice(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.PriceMin.Equal(decimal.RequireFromString("175.5")), "got %s", resp.PriceMin)
	assert.True(t, resp.PriceMax.Equal(decimal.RequireFromString("351")), "got %s", resp.PriceMax)
	assert.False(t, resp.Collapsed)
}

func TestQuotePriceUnknownService(t *testing.T) {
	h := newTestHandler(&stubCustomers{}, &stubCatalog{})

	body := `{"service_id": "nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/quotes", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.QuotePrice(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuotePriceInvalidPriority(t *testing.T) {
	h := newTestHandler(&stubCustomers{}, &stubCatalog{})

	body := `{"service_id": "x", "priority": "overnight"}`
	req := httptest.NewRequest(http.MethodPost, "/api/quotes", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.QuotePrice(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
