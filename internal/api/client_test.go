package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func newTestClient(t *testing.T, r http.Handler, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func catalog() []map[string]any {
	return []map[string]any{
		{"product": map[string]any{"id": 1, "name": "Sugar 1kg", "category": "food", "price": 100, "barcode": "6001"}, "quantity": 5},
		{"product": map[string]any{"id": 2, "name": "Soap", "category": "home", "price": 50.5, "barcode": "7002"}, "quantity": 1},
		{"product": map[string]any{"id": 13, "name": "Salt", "category": "food", "price": 30, "barcode": "6003"}, "quantity": 0},
	}
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)
}

func TestSearchProducts(t *testing.T) {
	var gotQuery string
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		respondJSON(w, http.StatusOK, catalog())
	})
	c := newTestClient(t, r)

	tests := []struct {
		name    string
		query   string
		wantIDs []domain.ProductID
	}{
		{name: "by name, case insensitive", query: "SU", wantIDs: []domain.ProductID{1}},
		{name: "by barcode", query: "700", wantIDs: []domain.ProductID{2}},
		{name: "by id", query: "13", wantIDs: []domain.ProductID{13}},
		{name: "no match is empty, not an error", query: "bread", wantIDs: []domain.ProductID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := c.SearchProducts(t.Context(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.query, gotQuery)

			ids := make([]domain.ProductID, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSearchProducts_Mapping(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, catalog()[1:2])
	})
	c := newTestClient(t, r)

	products, err := c.SearchProducts(t.Context(), "soap")
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, domain.ProductID(2), p.ID)
	assert.Equal(t, "Soap", p.Name)
	assert.True(t, decimal.RequireFromString("50.5").Equal(p.Price.Amount))
	assert.Equal(t, "KES", p.Price.Currency.String())
	assert.Equal(t, 1, p.AvailableQuantity)
	assert.Equal(t, "home", p.Category)
	assert.Equal(t, "7002", p.Barcode)
}

func TestSubmitSale_WirePayload(t *testing.T) {
	var got map[string]any
	var headers http.Header
	r := chi.NewRouter()
	r.Post("/sell", func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		respondJSON(w, http.StatusOK, map[string]string{"message": "Sales recorded successfully"})
	})
	c := newTestClient(t, r, WithBearer(func() string { return "tok" }))

	msg, err := c.SubmitSale(t.Context(), domain.SaleRequest{
		LineItems: []domain.SaleLineRequest{
			{ProductID: 1, Quantity: 2, Amount: domain.NewMoney(decimal.NewFromInt(200), domain.DefaultCurrency)},
			{ProductID: 2, Quantity: 1, Amount: domain.NewMoney(decimal.NewFromInt(50), domain.DefaultCurrency)},
		},
		PaymentMethod: domain.PaymentCredit,
		CustomerName:  "Wanjiku",
		CustomerPhone: "0712345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sales recorded successfully", msg)

	want := map[string]any{
		"products": []any{
			map[string]any{"product_id": float64(1), "quantity": float64(2), "amount": float64(200)},
			map[string]any{"product_id": float64(2), "quantity": float64(1), "amount": float64(50)},
		},
		"payment_method": "CREDIT",
		"customer_name":  "Wanjiku",
		"customer_phone": "0712345678",
	}
	assert.Equal(t, want, got)

	assert.Equal(t, "Bearer tok", headers.Get("Authorization"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	_, err = uuid.Parse(headers.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestSubmitSale_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantMsg string
	}{
		{
			name:    "bad request carries backend message",
			status:  http.StatusBadRequest,
			body:    map[string]string{"error": "Insufficient stock for product 2"},
			wantMsg: "Insufficient stock for product 2",
		},
		{
			name:    "success false envelope",
			status:  http.StatusOK,
			body:    map[string]any{"success": false, "error": "till closed"},
			wantMsg: "till closed",
		},
		{
			name:    "no body falls back to status text",
			status:  http.StatusNotFound,
			body:    nil,
			wantMsg: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Post("/sell", func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				respondJSON(w, tt.status, tt.body)
			})
			c := newTestClient(t, r)

			_, err := c.SubmitSale(t.Context(), domain.SaleRequest{PaymentMethod: domain.PaymentCash})
			require.Error(t, err)

			var apiErr *domain.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantMsg, domain.UserMessage(err))
		})
	}
}

func TestLoginRegisterVerify(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var body loginDTO
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "Login successful",
			"token":   "tok-login",
			"user":    map[string]any{"id": 7, "full_name": "Akinyi Otieno", "email": body.Email},
		})
	})
	r.Post("/register", func(w http.ResponseWriter, r *http.Request) {
		var body registerDTO
		_ = json.NewDecoder(r.Body).Decode(&body)
		respondJSON(w, http.StatusCreated, map[string]any{
			"message": "User registered successfully",
			"token":   "tok-register",
			"user":    map[string]any{"id": 8, "full_name": body.FullName, "email": body.Email},
		})
	})
	r.Get("/verify-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-login" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 7, "full_name": "Akinyi Otieno", "email": "a@shop.ke"}})
	})
	c := newTestClient(t, r)
	ctx := t.Context()

	res, err := c.Login(ctx, "a@shop.ke", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-login", res.Token)
	assert.Equal(t, domain.User{ID: 7, FullName: "Akinyi Otieno", Email: "a@shop.ke"}, res.User)

	_, err = c.Login(ctx, "a@shop.ke", "wrong")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "Invalid email or password", domain.UserMessage(err))

	res, err = c.Register(ctx, "Baraka Mwangi", "b@shop.ke", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-register", res.Token)
	assert.Equal(t, "Baraka Mwangi", res.User.FullName)

	user, err := c.Verify(ctx, "tok-login")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)

	_, err = c.Verify(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = c.Verify(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLowStockAlerts(t *testing.T) {
	created := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	r := chi.NewRouter()
	r.Get("/get-low-stock-alerts", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, []map[string]any{{
			"id": 3, "product_id": 2, "product_name": "Soap",
			"alert_message": "Product stock is low. Current quantity: 1",
			"resolved":      false, "created_at": created,
			"current_quantity": 1, "stock_threshold": 5,
		}})
	})
	c := newTestClient(t, r)

	alerts, err := c.LowStockAlerts(t.Context())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.StockAlert{
		ID: 3, ProductID: 2, ProductName: "Soap",
		Message:         "Product stock is low. Current quantity: 1",
		CurrentQuantity: 1, StockThreshold: 5, CreatedAt: created,
	}, alerts[0])
}

func TestInitiateMpesa(t *testing.T) {
	var got stkPushDTO
	r := chi.NewRouter()
	r.Post("/mpesa/stk-push", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		respondJSON(w, http.StatusOK, map[string]string{
			"MerchantRequestID":   "m-1",
			"CheckoutRequestID":   "ws_CO_123",
			"ResponseDescription": "Success. Request accepted for processing",
		})
	})
	c := newTestClient(t, r)

	res, err := c.InitiateMpesa(t.Context(), domain.MpesaPushRequest{
		Phone:     "254712345678",
		Amount:    domain.NewMoney(decimal.RequireFromString("250.40"), domain.DefaultCurrency),
		Reference: "sale-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_123", res.CheckoutRequestID)
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, "250", got.Amount.String())
}

func TestTimeout(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	c := newTestClient(t, r, WithTimeout(20*time.Millisecond))

	_, err := c.SearchProducts(t.Context(), "x")
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.NotErrorIs(t, err, domain.ErrNetwork)
}

func TestNetworkDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.LowStockAlerts(t.Context())
	require.ErrorIs(t, err, domain.ErrNetwork)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/get-low-stock-alerts", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch alerts"})
	})
	c := newTestClient(t, r)

	for range 5 {
		_, err := c.LowStockAlerts(t.Context())
		require.Error(t, err)
	}

	_, err := c.LowStockAlerts(t.Context())
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(5), calls.Load(), "open breaker must not reach the backend")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	})
	c := newTestClient(t, r)

	for range 8 {
		_, err := c.Login(t.Context(), "a@b.c", "x")
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	}
	assert.Equal(t, int32(8), calls.Load())
}
