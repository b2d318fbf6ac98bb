package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"elifysis/backend/internal/domain"
	"elifysis/backend/internal/service"
	"elifysis/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 0, "demo-business")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

// loginAs logs in through the HTTP handler and returns the bearer token.
func loginAs(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

// fetchCSRFToken obtains a token for mutating requests.
func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
	if body["business_id"] != "demo-business" {
		t.Fatalf("expected demo business scope, got %v", body["business_id"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	// Fire 6 requests from the same "IP" (httptest uses RemoteAddr "192.0.2.1:1234").
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	adminToken := loginAs(t, handler, "admin", "admin123")
	cashierToken := loginAs(t, handler, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, handler)

	// Pick a product from the seeded catalog.
	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	listReq.Header.Set("Authorization", "Bearer "+adminToken)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list products failed: %d %s", listRec.Code, listRec.Body.String())
	}
	var listBody struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(listBody.Products) == 0 {
		t.Fatalf("expected seeded products")
	}
	product := listBody.Products[0]

	// Sales floor opens a ticket.
	ticketPayload, _ := json.Marshal(domain.TicketCreateRequest{
		Items: []domain.TicketItemRequest{{ProductID: product.ID, Quantity: 2}},
	})
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", bytes.NewReader(ticketPayload))
	createReq.Header.Set("Content-Type", "application/json")
	createReq.Header.Set("Authorization", "Bearer "+cashierToken)
	createReq.Header.Set("X-CSRF-Token", csrf)
	createRec := httptest.NewRecorder()
	handler.ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create ticket failed: %d %s", createRec.Code, createRec.Body.String())
	}
	var createBody struct {
		Ticket domain.Sale `json:"ticket"`
	}
	if err := json.NewDecoder(createRec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if createBody.Ticket.Status != domain.SaleStatusPending {
		t.Fatalf("expected pending ticket, got %s", createBody.Ticket.Status)
	}

	// Cashier settles it.
	completePayload, _ := json.Marshal(domain.CompleteOrderRequest{PaymentMethod: domain.PaymentMethodCash})
	completeURL := fmt.Sprintf("/api/v1/tickets/%s/complete", createBody.Ticket.ID)
	completeReq := httptest.NewRequest(http.MethodPost, completeURL, bytes.NewReader(completePayload))
	completeReq.Header.Set("Content-Type", "application/json")
	completeReq.Header.Set("Authorization", "Bearer "+cashierToken)
	completeReq.Header.Set("X-CSRF-Token", csrf)
	completeRec := httptest.NewRecorder()
	handler.ServeHTTP(completeRec, completeReq)
	if completeRec.Code != http.StatusOK {
		t.Fatalf("complete ticket failed: %d %s", completeRec.Code, completeRec.Body.String())
	}
	var completeBody domain.CompleteOrderResponse
	if err := json.NewDecoder(completeRec.Body).Decode(&completeBody); err != nil {
		t.Fatalf("decode completion: %v", err)
	}
	if completeBody.Sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected completed sale, got %s", completeBody.Sale.Status)
	}
	if len(completeBody.Missing) != 0 {
		t.Fatalf("expected no missing items, got %+v", completeBody.Missing)
	}

	// Second completion attempt conflicts.
	retryReq := httptest.NewRequest(http.MethodPost, completeURL, bytes.NewReader(completePayload))
	retryReq.Header.Set("Content-Type", "application/json")
	retryReq.Header.Set("Authorization", "Bearer "+cashierToken)
	retryReq.Header.Set("X-CSRF-Token", csrf)
	retryRec := httptest.NewRecorder()
	handler.ServeHTTP(retryRec, retryReq)
	if retryRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double completion, got %d %s", retryRec.Code, retryRec.Body.String())
	}

	// Receipt lookup by ticket number works for the sales role.
	receiptReq := httptest.NewRequest(http.MethodGet, "/api/v1/sales/receipt/"+createBody.Ticket.TicketID, nil)
	receiptReq.Header.Set("Authorization", "Bearer "+cashierToken)
	receiptRec := httptest.NewRecorder()
	handler.ServeHTTP(receiptRec, receiptReq)
	if receiptRec.Code != http.StatusOK {
		t.Fatalf("receipt lookup failed: %d %s", receiptRec.Code, receiptRec.Body.String())
	}
}

func TestImportPreviewOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	adminToken := loginAs(t, handler, "admin", "admin123")
	csrf := fetchCSRFToken(t, handler)

	csv := "name,quantity,sellprice,category\nGranola Bar,12,2.50,Snacks\nGranola Bar,12,2.50,Snacks\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import/preview", bytes.NewReader([]byte(csv)))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import preview failed: %d %s", rec.Code, rec.Body.String())
	}
	var preview domain.ImportPreview
	if err := json.NewDecoder(rec.Body).Decode(&preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if len(preview.NewRows) != 1 || len(preview.Duplicates) != 1 {
		t.Fatalf("expected 1 new row and 1 duplicate, got %d/%d", len(preview.NewRows), len(preview.Duplicates))
	}
}

func TestCashierCannotCreateProducts(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cashierToken := loginAs(t, handler, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, handler)

	payload, _ := json.Marshal(domain.ProductCreateRequest{Name: "Contraband", SellPriceCents: 100})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cashierToken)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier product create, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMeAndRefresh(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "admin", "admin123")

	meReq := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+token)
	meRec := httptest.NewRecorder()
	handler.ServeHTTP(meRec, meReq)
	if meRec.Code != http.StatusOK {
		t.Fatalf("me failed: %d %s", meRec.Code, meRec.Body.String())
	}
	var me map[string]string
	if err := json.NewDecoder(meRec.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me["username"] != "admin" || me["role"] != "admin" || me["business_id"] != "demo-business" {
		t.Fatalf("unexpected identity: %v", me)
	}

	refreshReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	refreshReq.Header.Set("Authorization", "Bearer "+token)
	refreshRec := httptest.NewRecorder()
	handler.ServeHTTP(refreshRec, refreshReq)
	if refreshRec.Code != http.StatusOK {
		t.Fatalf("refresh failed: %d %s", refreshRec.Code, refreshRec.Body.String())
	}
	var refreshed domain.LoginResponse
	if err := json.NewDecoder(refreshRec.Body).Decode(&refreshed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.BusinessID != "demo-business" {
		t.Fatalf("unexpected refresh response: %+v", refreshed)
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
