package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/pricing"
	"kiranapos/backend/internal/service"
	"kiranapos/backend/internal/store"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "httpapi").Logger()

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket, giving a
// 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/catalog/search", a.requireAuth(a.handleCatalogSearch, "cashier", "admin"))
	mux.HandleFunc("/api/v1/catalog/resolve", a.requireAuth(a.handleCatalogResolve, "cashier", "admin"))
	mux.HandleFunc("/api/v1/price-line", a.requireAuth(a.handlePriceLine, "cashier", "admin"))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "cashier", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/aliases/", a.requireAuth(a.handleAliasActions, "admin"))
	mux.HandleFunc("/api/v1/uoms", a.requireAuth(a.handleUOMs, "cashier", "admin"))
	mux.HandleFunc("/api/v1/uoms/", a.requireAuth(a.handleUOMActions, "admin"))
	mux.HandleFunc("/api/v1/schemes", a.requireAuth(a.handleSchemes, "cashier", "admin"))
	mux.HandleFunc("/api/v1/schemes/", a.requireAuth(a.handleSchemeActions, "admin"))

	mux.HandleFunc("/api/v1/checkout", a.requireAuth(a.handleCheckout, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/bills/hold", a.requireAuth(a.handleHeldBills, "cashier", "admin"))
	mux.HandleFunc("/api/v1/bills/hold/", a.requireAuth(a.handleHeldBillActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/purchases", a.requireAuth(a.handlePurchases, "admin"))
	mux.HandleFunc("/api/v1/purchases/", a.requireAuth(a.handlePurchaseActions, "admin"))
	mux.HandleFunc("/api/v1/suppliers", a.requireAuth(a.handleSuppliers, "admin"))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, "cashier", "admin"))
	mux.HandleFunc("/api/v1/customers/lookup", a.requireAuth(a.handleCustomerLookup, "cashier", "admin"))

	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, "admin"))
	mux.HandleFunc("/api/v1/users/password", a.requireAuth(a.handlePasswordChange, "cashier", "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token. Clients include it in the
// X-CSRF-Token header on all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// --- Catalog ---

func (a *API) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	hits, err := a.service.SearchCatalog(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if hits == nil {
		hits = []domain.CatalogHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (a *API) handleCatalogResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	variant, err := a.service.Resolve(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variant": variant})
}

func (a *API) handlePriceLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.PriceLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := a.service.PriceLine(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"line": item})
}

// --- Products ---

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleProductActions routes /api/v1/products/{id}[/...] plus the fixed
// subpaths /deleted and /purge.
func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch segments[0] {
	case "deleted":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		products, err := a.service.ListDeletedProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
		return
	case "purge":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		purged, err := a.service.PurgeDeletedProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purged": purged})
		return
	}

	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, errors.New("invalid product id"))
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodPatch:
			var req domain.ProductUpdateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			product, err := a.service.UpdateProduct(r.Context(), id, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"product": product})
		case http.MethodDelete:
			if err := a.service.DeleteProduct(r.Context(), id); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	switch segments[1] {
	case "restore":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if err := a.service.RestoreProduct(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"restored": true})
	case "aliases":
		switch r.Method {
		case http.MethodGet:
			aliases, err := a.service.ListAliases(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"aliases": aliases})
		case http.MethodPost:
			var req domain.AliasCreateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			alias, err := a.service.AddAlias(r.Context(), id, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"alias": alias})
		default:
			writeMethodNotAllowed(w)
		}
	case "units":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		units, err := a.service.Units(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"units": units})
	case "mrps":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		variants, err := a.service.MRPVariants(r.Context(), id, r.URL.Query().Get("uom"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mrps": variants})
	default:
		writeError(w, http.StatusNotFound, errors.New("not found"))
	}
}

func (a *API) handleAliasActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/aliases/"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, errors.New("invalid alias id"))
		return
	}
	if err := a.service.DeleteAlias(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// --- UOMs ---

func (a *API) handleUOMs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		uoms, err := a.service.ListUOMs(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"uoms": uoms})
	case http.MethodPost:
		var req struct {
			Name  string `json:"name"`
			Alias string `json:"alias"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		uom, err := a.service.AddUOM(r.Context(), req.Name, req.Alias)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"uom": uom})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleUOMActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/uoms/"), "/")
	if name == "" {
		writeError(w, http.StatusNotFound, errors.New("invalid uom"))
		return
	}
	if err := a.service.DeleteUOM(r.Context(), name); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// --- Schemes ---

func (a *API) handleSchemes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		schemes, err := a.service.ListSchemes(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"schemes": schemes})
	case http.MethodPost:
		var req domain.SchemeUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		scheme, err := a.service.CreateScheme(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"scheme": scheme})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSchemeActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/schemes/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, errors.New("invalid scheme id"))
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodPatch:
			var req domain.SchemeUpsertRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			scheme, err := a.service.UpdateScheme(r.Context(), id, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"scheme": scheme})
		case http.MethodDelete:
			if err := a.service.DeleteScheme(r.Context(), id); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	if segments[1] == "active" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req struct {
			Active bool `json:"active"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.service.SetSchemeActive(r.Context(), id, req.Active); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"active": req.Active})
		return
	}
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

// --- Checkout and sales ---

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sales, err := a.service.ListSales(r.Context(), r.URL.Query().Get("date"), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sales/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, errors.New("invalid sale id"))
		return
	}
	if len(segments) != 2 || segments[1] != "items" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	items, err := a.service.SaleItems(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// --- Held bills ---

func (a *API) handleHeldBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		held, err := a.service.ListHeldBills(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"held": held})
	case http.MethodPost:
		var req domain.HoldBillRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		held, err := a.service.HoldBill(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"held": held})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleHeldBillActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bills/hold/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, errors.New("invalid held bill id"))
		return
	}
	if len(segments) != 2 || segments[1] != "recall" || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	resp, err := a.service.RecallHeldBill(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Purchases ---

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		purchases, err := a.service.ListPurchases(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.RecordPurchase(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"purchase": purchase})
	default:
		writeMethodNotAllowed(w)
	}
}

// handlePurchaseActions routes /api/v1/purchases/{id}/items plus the fixed
// subpaths /register and /search.
func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/purchases/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch segments[0] {
	case "register":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		entries, err := a.service.ItemPurchaseRegister(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if entries == nil {
			entries = []domain.PurchaseRegisterEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"register": entries})
		return
	case "search":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		purchases, err := a.service.SearchPurchasesByItem(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if purchases == nil {
			purchases = []domain.Purchase{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
		return
	}

	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, errors.New("invalid purchase id"))
		return
	}
	if len(segments) != 2 || segments[1] != "items" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	items, err := a.service.PurchaseItems(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if suppliers == nil {
		suppliers = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

// --- Customers ---

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleCustomerLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	customer, err := a.service.FindCustomerByMobile(r.Context(), r.URL.Query().Get("mobile"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

// --- Users ---

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cashiers, err := a.service.ListCashiers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cashier, err := a.service.CreateCashier(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Username    string `json:"username"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" {
		if actor, ok := service.ActorFromContext(r.Context()); ok {
			req.Username = actor.Username
		}
	}
	if err := a.service.ChangePassword(r.Context(), req.Username, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": true})
}

// --- Plumbing ---

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(startedAt)).
			Msg("request")
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// writeServiceError maps domain sentinels to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, pricing.ErrUnresolvedProduct):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrAdminRequired):
		writeError(w, http.StatusForbidden, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message so internal details (SQL errors,
	// file paths) never reach clients. 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		logger.Error().Int("status", status).Err(err).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
