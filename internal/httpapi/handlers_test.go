package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/cache"
	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/service"
	"kiranapos/backend/internal/store/memory"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-test-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-test-pass")
	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopSearchCache{}, time.Second)
	auth := NewAuthManager(testSecret, time.Hour, repo)
	return New(svc, auth, "http://127.0.0.1:3000")
}

func do(t *testing.T, api *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()
	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: username, Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSearchRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/catalog/search?q=cola", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestSearchReturnsRankedHits(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodGet, "/api/v1/catalog/search?q=cola", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []domain.CatalogHit `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Name != "Coca Cola 500ml" {
		t.Fatalf("expected Coca Cola as top hit, got %+v", resp.Results)
	}
}

func TestResolveUnknownTokenIs404(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodGet, "/api/v1/catalog/resolve?token=zzz-unknown", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unresolvable token, got %d", rec.Code)
	}
}

func TestPriceLineEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/price-line", token, map[string]any{
		"token":    "8901234003",
		"quantity": 6,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Line domain.LineItem `json:"line"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode price line: %v", err)
	}
	if resp.Line.SchemeName != "Maggi Bulk Offer" {
		t.Fatalf("expected bulk offer applied, got %q", resp.Line.SchemeName)
	}
	if resp.Line.LineAmount.String() != "64.8" {
		t.Fatalf("expected line amount 64.8, got %s", resp.Line.LineAmount)
	}
}

func TestPriceLineMalformedQuantityDegradesToZero(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/price-line", token, map[string]any{
		"token":    "8901234003",
		"quantity": "garbage",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Line domain.LineItem `json:"line"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode price line: %v", err)
	}
	// The unreadable cell degrades to a zero quantity instead of a 400.
	if resp.Line.Quantity != 0 {
		t.Fatalf("expected zero quantity, got %v", resp.Line.Quantity)
	}
	if !resp.Line.LineAmount.IsZero() {
		t.Fatalf("expected zero line amount, got %s", resp.Line.LineAmount)
	}
}

func TestCheckoutAndSalesListing(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		PaymentMethod: "upi",
		Lines: []domain.SaleLineInput{
			{Barcode: "8901234001", Quantity: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var checkout domain.CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if checkout.PaymentMethod != "upi" || checkout.SaleID == 0 {
		t.Fatalf("unexpected checkout response %+v", checkout)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/sales", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sales struct {
		Sales []domain.Sale `json:"sales"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sales); err != nil {
		t.Fatalf("decode sales: %v", err)
	}
	if len(sales.Sales) != 1 {
		t.Fatalf("expected one sale, got %d", len(sales.Sales))
	}
}

func TestCheckoutDegradesMalformedQuantityToZero(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"payment_method": "cash",
		"lines": []map[string]any{
			{"barcode": "8901234001", "quantity": "garbage"},
			{"barcode": "8901234003", "quantity": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var checkout domain.CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	// The malformed line degrades to zero qty and drops out of the bill.
	if len(checkout.Items) != 1 {
		t.Fatalf("expected the bad line to be dropped, got %d items", len(checkout.Items))
	}
	if checkout.Total.String() != "24" {
		t.Fatalf("expected total 24, got %s", checkout.Total)
	}
}

func TestCheckoutEmptyBillIs400(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty bill, got %d", rec.Code)
	}
}

func TestProductCreateForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	cashierToken := login(t, api, "cashier1", "cashier-test-pass")
	adminToken := login(t, api, "admin", "admin-test-pass")

	body := domain.ProductCreateRequest{
		Name: "Parle-G 100g", Barcode: "8901234099", BaseUOM: "pcs",
		Price: decFromString(t, "9"), MRP: decFromString(t, "10"),
	}

	rec := do(t, api, http.MethodPost, "/api/v1/products", cashierToken, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodPost, "/api/v1/products", adminToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate barcode conflicts.
	rec = do(t, api, http.MethodPost, "/api/v1/products", adminToken, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate barcode, got %d", rec.Code)
	}
}

func TestHoldAndRecallEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/bills/hold", token, domain.HoldBillRequest{
		Lines: []domain.SaleLineInput{{Barcode: "8901234003", Quantity: 6}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var held struct {
		Held domain.HeldSale `json:"held"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &held); err != nil {
		t.Fatalf("decode held: %v", err)
	}

	rec = do(t, api, http.MethodPost, "/api/v1/bills/hold/"+itoa(held.Held.ID)+"/recall", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on recall, got %d: %s", rec.Code, rec.Body.String())
	}
	var recall domain.RecallResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &recall); err != nil {
		t.Fatalf("decode recall: %v", err)
	}
	if recall.Total.String() != "65" {
		t.Fatalf("expected recalled total 65, got %s", recall.Total)
	}
}

func TestPurchaseEndpointsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	cashierToken := login(t, api, "cashier1", "cashier-test-pass")
	adminToken := login(t, api, "admin", "admin-test-pass")

	body := domain.PurchaseCreateRequest{
		SupplierName: "Metro Traders",
		InvoiceNo:    "INV-42",
		Lines: []domain.PurchaseLineInput{
			{Barcode: "8901234002", Quantity: 5, Rate: decFromString(t, "20")},
		},
	}

	rec := do(t, api, http.MethodPost, "/api/v1/purchases", cashierToken, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodPost, "/api/v1/purchases", adminToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Purchase domain.Purchase `json:"purchase"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode purchase: %v", err)
	}
	if created.Purchase.Total.String() != "100" {
		t.Fatalf("expected invoice total 100, got %s", created.Purchase.Total)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/purchases/"+itoa(created.Purchase.ID)+"/items", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for items, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodGet, "/api/v1/purchases/register?token=tata+salt+1kg", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for register, got %d: %s", rec.Code, rec.Body.String())
	}
	var register struct {
		Register []domain.PurchaseRegisterEntry `json:"register"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &register); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if len(register.Register) != 1 || register.Register[0].SupplierName != "Metro Traders" {
		t.Fatalf("expected one register entry, got %+v", register.Register)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/purchases/search?q=salt", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for search, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodGet, "/api/v1/suppliers", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for suppliers, got %d: %s", rec.Code, rec.Body.String())
	}
	var suppliers struct {
		Suppliers []string `json:"suppliers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &suppliers); err != nil {
		t.Fatalf("decode suppliers: %v", err)
	}
	if len(suppliers.Suppliers) != 1 || suppliers.Suppliers[0] != "Metro Traders" {
		t.Fatalf("expected Metro Traders, got %v", suppliers.Suppliers)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodDelete, "/api/v1/checkout", token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestUnknownJSONFieldIsRejected(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier1", "cashier-test-pass")

	rec := do(t, api, http.MethodPost, "/api/v1/price-line", token, map[string]any{
		"token":      "8901234003",
		"quantity":   1,
		"mystery":    true,
		"extra_junk": "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown fields, got %d", rec.Code)
	}
}
