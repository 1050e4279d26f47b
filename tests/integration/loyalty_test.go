//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"testing"
)

const staffAPIKey = "integration-test-key"

var orderNumberPattern = regexp.MustCompile(`^SLB-\d{8}-\d{4}$`)

func registerCustomer(t *testing.T, name, email, referralCode string) customerResponse {
	t.Helper()

	resp := doPost(t, "/api/customers", map[string]string{
		"name":          name,
		"email":         email,
		"referral_code": referralCode,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[customerResponse](t, resp)
}

func transition(t *testing.T, number, status string) orderResponse {
	t.Helper()

	resp := doPostWithAuth(t, "/api/orders/"+number+"/transition",
		map[string]string{"status": status}, staffAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition to %s: expected 200, got %d", status, resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestRegisterCustomer_Basic(t *testing.T) {
	c := registerCustomer(t, "Integration Budi", "budi+basic@example.com", "")

	if c.Tier != "bronze" {
		t.Errorf("tier: got %q, want bronze", c.Tier)
	}
	if c.PointBalance != 0 || c.LifetimePoints != 0 {
		t.Errorf("new customer must start at zero points, got %d/%d", c.PointBalance, c.LifetimePoints)
	}
	if len(c.ReferralCode) != 8 {
		t.Errorf("referral code: got %q, want 8 chars", c.ReferralCode)
	}
	if c.PointsToNext != 2000 {
		t.Errorf("points to next tier: got %d, want 2000", c.PointsToNext)
	}
}

func TestRegisterCustomer_Referral(t *testing.T) {
	referrer := registerCustomer(t, "Referrer", "referrer@example.com", "")
	registerCustomer(t, "Referred", "referred@example.com", referrer.ReferralCode)

	resp := doGet(t, "/api/customers/"+referrer.ID)
	defer resp.Body.Close()
	got := decodeJSON[customerResponse](t, resp)

	if got.TotalReferrals != 1 {
		t.Errorf("total referrals: got %d, want 1", got.TotalReferrals)
	}
}

func TestQuote_Anonymous(t *testing.T) {
	resp := doPost(t, "/api/quotes", map[string]string{
		"service_id": "screen-replacement",
		"brand_id":   "apple",
		"priority":   "express",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	q := decodeJSON[quoteResponse](t, resp)
	// 650000 * 1.5 (expert brand) * 1.5 (express) = 1462500, no discount.
	if q.PriceMin != "1462500" {
		t.Errorf("price min: got %s, want 1462500", q.PriceMin)
	}
	if q.DiscountPct != "0" {
		t.Errorf("discount: got %s, want 0", q.DiscountPct)
	}
}

func TestQuote_UnknownService(t *testing.T) {
	resp := doPost(t, "/api/quotes", map[string]string{"service_id": "flux-capacitor"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOrderLifecycle(t *testing.T) {
	c := registerCustomer(t, "Lifecycle Siti", "siti+lifecycle@example.com", "")

	// Place the order.
	resp := doPost(t, "/api/orders", map[string]string{
		"customer_id":  c.ID,
		"service_id":   "os-reinstall",
		"device_model": "ThinkPad X1",
		"problem":      "won't boot",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[placeOrderResponse](t, resp)
	resp.Body.Close()

	o := placed.Order
	if !orderNumberPattern.MatchString(o.Number) {
		t.Fatalf("order number %q does not match pattern", o.Number)
	}
	if o.Status != "pending" {
		t.Fatalf("initial status: got %q, want pending", o.Status)
	}

	// Transitions need the staff key.
	noAuth := doPost(t, "/api/orders/"+o.Number+"/transition", map[string]string{"status": "confirmed"})
	if noAuth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated transition: expected 401, got %d", noAuth.StatusCode)
	}
	noAuth.Body.Close()

	// Walk the workshop flow, recording costs before completion.
	transition(t, o.Number, "confirmed")
	transition(t, o.Number, "in_progress")

	costsResp := doPostWithAuth(t, "/api/orders/"+o.Number+"/costs", map[string]any{
		"final_cost":  "250000",
		"labor_cost":  "250000",
		"points_used": 0,
	}, staffAPIKey)
	if costsResp.StatusCode != http.StatusOK {
		t.Fatalf("set costs: expected 200, got %d", costsResp.StatusCode)
	}
	costsResp.Body.Close()

	completed := transition(t, o.Number, "completed")
	if completed.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
	if completed.WarrantyExpires == nil {
		t.Error("warranty_expires not stamped")
	}
	// 250000 / 1000 = 250 points.
	if completed.PointsEarned != 250 {
		t.Errorf("points earned: got %d, want 250", completed.PointsEarned)
	}

	transition(t, o.Number, "ready_pickup")
	delivered := transition(t, o.Number, "delivered")
	if delivered.DeliveredAt == nil {
		t.Error("delivered_at not stamped")
	}

	// Terminal orders accept no further transitions.
	closed := doPostWithAuth(t, "/api/orders/"+o.Number+"/transition",
		map[string]string{"status": "in_progress"}, staffAPIKey)
	if closed.StatusCode != http.StatusConflict {
		t.Errorf("transition from terminal: expected 409, got %d", closed.StatusCode)
	}
	closed.Body.Close()

	// History has one row per successful transition.
	histResp := doGet(t, "/api/orders/"+o.Number+"/history")
	history := decodeJSON[[]statusChangeResponse](t, histResp)
	histResp.Body.Close()

	if len(history) != 5 {
		t.Fatalf("history: got %d rows, want 5", len(history))
	}
	if history[0].From != "pending" || history[0].To != "confirmed" {
		t.Errorf("first transition: got %s->%s", history[0].From, history[0].To)
	}

	// Completion credited the ledger, delivery bumped the order counter.
	custResp := doGet(t, "/api/customers/"+c.ID)
	gotCust := decodeJSON[customerResponse](t, custResp)
	custResp.Body.Close()

	if gotCust.PointBalance != 250 {
		t.Errorf("point balance: got %d, want 250", gotCust.PointBalance)
	}
	if gotCust.TotalOrders != 1 {
		t.Errorf("total orders: got %d, want 1", gotCust.TotalOrders)
	}

	txResp := doGet(t, "/api/customers/"+c.ID+"/transactions")
	entries := decodeJSON[[]entryResponse](t, txResp)
	txResp.Body.Close()

	if len(entries) != 1 {
		t.Fatalf("transactions: got %d, want 1", len(entries))
	}
	if entries[0].Kind != "earned" || entries[0].Delta != 250 {
		t.Errorf("entry: got %s/%d, want earned/250", entries[0].Kind, entries[0].Delta)
	}
	if entries[0].ExpiresAt == nil {
		t.Error("earned entry must carry an expiry")
	}
}

func TestRewardRedemption(t *testing.T) {
	c := registerCustomer(t, "Redeemer", "redeemer@example.com", "")

	// Fund the account via a staff adjustment, then redeem.
	adjResp := doPostWithAuth(t, "/api/customers/"+c.ID+"/adjust",
		map[string]any{"delta": 600, "reason": "test funding"}, staffAPIKey)
	if adjResp.StatusCode != http.StatusOK {
		t.Fatalf("adjust: expected 200, got %d", adjResp.StatusCode)
	}
	adjResp.Body.Close()

	listResp := doGet(t, "/api/rewards")
	rewards := decodeJSON[[]rewardResponse](t, listResp)
	listResp.Body.Close()
	if len(rewards) == 0 {
		t.Fatal("no rewards seeded")
	}

	redeemResp := doPost(t, "/api/rewards/discount-5/redeem", map[string]string{"customer_id": c.ID})
	if redeemResp.StatusCode != http.StatusCreated {
		t.Fatalf("redeem: expected 201, got %d", redeemResp.StatusCode)
	}
	red := decodeJSON[redemptionResponse](t, redeemResp)
	redeemResp.Body.Close()

	if red.PointsUsed != 500 {
		t.Errorf("points used: got %d, want 500", red.PointsUsed)
	}
	if red.Status != "pending" {
		t.Errorf("status: got %q, want pending", red.Status)
	}
	if len(red.VoucherCode) != 12 {
		t.Errorf("voucher code: got %q, want 12 chars", red.VoucherCode)
	}

	// 100 points left, below the 500 needed for another redemption.
	again := doPost(t, "/api/rewards/discount-5/redeem", map[string]string{"customer_id": c.ID})
	if again.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("second redeem: expected 422, got %d", again.StatusCode)
	}
	again.Body.Close()
}

func TestRewardRedemption_TierGate(t *testing.T) {
	c := registerCustomer(t, "Bronze Gate", "bronze.gate@example.com", "")

	adjResp := doPostWithAuth(t, "/api/customers/"+c.ID+"/adjust",
		map[string]any{"delta": 5000, "reason": "test funding"}, staffAPIKey)
	adjResp.Body.Close()

	// free-thermal requires silver; adjustments never raise lifetime points,
	// so the customer is still bronze.
	resp := doPost(t, "/api/rewards/free-thermal/redeem", map[string]string{"customer_id": c.ID})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	e := decodeJSON[errorResponse](t, resp)
	if e.Message == "" {
		t.Error("error message empty")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, fmt.Sprintf("/api/orders/SLB-%s-%s", "19700101", "0000"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
