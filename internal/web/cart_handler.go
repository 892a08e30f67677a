package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/biashara-pos/internal/cart"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type PaymentRequestDTO struct {
	Method          string `json:"method"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	ReferenceNumber string `json:"reference_number"`
}

type MpesaRequestDTO struct {
	Phone string `json:"phone"`
}

type MoneyDTO struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Display  string          `json:"display"`
}

type ProductDTO struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	Category          string   `json:"category,omitempty"`
	Barcode           string   `json:"barcode,omitempty"`
	Price             MoneyDTO `json:"price"`
	AvailableQuantity int      `json:"available_quantity"`
}

type SearchResponseDTO struct {
	Query    string       `json:"query"`
	Pending  bool         `json:"pending"`
	Products []ProductDTO `json:"products"`
	Error    string       `json:"error,omitempty"`
}

type LineDTO struct {
	ProductID int64    `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Available int      `json:"available_quantity"`
	UnitPrice MoneyDTO `json:"unit_price"`
	Amount    MoneyDTO `json:"amount"`
}

type CartDTO struct {
	ID      string            `json:"id"`
	Lines   []LineDTO         `json:"lines"`
	Payment PaymentRequestDTO `json:"payment"`
	Total   MoneyDTO          `json:"total"`
}

type ConfirmationDTO struct {
	SaleID      string    `json:"sale_id"`
	Message     string    `json:"message"`
	Total       MoneyDTO  `json:"total"`
	LineCount   int       `json:"line_count"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type MpesaResponseDTO struct {
	MerchantRequestID   string `json:"merchant_request_id"`
	CheckoutRequestID   string `json:"checkout_request_id"`
	ResponseDescription string `json:"response_description"`
}

type AlertDTO struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	ProductName     string    `json:"product_name"`
	Message         string    `json:"message"`
	CurrentQuantity int       `json:"current_quantity"`
	StockThreshold  int       `json:"stock_threshold"`
	Resolved        bool      `json:"resolved"`
	CreatedAt       time.Time `json:"created_at"`
}

// Search schedules a debounced lookup and answers with the results once the
// latest lookup settles. A superseded request answers with the newer results.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.cart.Search(r.URL.Query().Get("q"))

	ctx, cancel := context.WithTimeout(r.Context(), h.searchWait)
	defer cancel()

	respondJSON(w, http.StatusOK, mapResults(h.awaitResults(ctx)))
}

func (h *Handler) awaitResults(ctx context.Context) cart.Results {
	for {
		changed := h.cart.ResultsChanged()
		res := h.cart.Results()
		if !res.Pending {
			return res
		}
		select {
		case <-ctx.Done():
			return res
		case <-changed:
		}
	}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cartDTO())
}

// AddItem adds a product picked from the current search results.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, ok := h.cart.Pick(domain.ProductID(req.ProductID))
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "product is not in the search results or the cart")
		return
	}

	if err := h.cart.AddOrIncrement(product, req.Quantity); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.cartDTO())
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.cart.SetQuantity(id, req.Quantity); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.cart.Remove(id); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
		return
	}

	customer := domain.Customer{Name: req.CustomerName, Phone: req.CustomerPhone}
	var payment domain.Payment
	switch method {
	case domain.PaymentMpesa:
		payment = domain.Mpesa{Customer: customer, ReferenceNumber: req.ReferenceNumber}
	case domain.PaymentCredit:
		payment = domain.Credit{Customer: customer}
	default:
		payment = domain.Cash{Customer: customer}
	}

	if err := h.cart.SetPayment(payment); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartDTO())
}

func (h *Handler) InitiateMpesa(w http.ResponseWriter, r *http.Request) {
	var req MpesaRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.cart.InitiateMpesa(r.Context(), req.Phone)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, MpesaResponseDTO{
		MerchantRequestID:   res.MerchantRequestID,
		CheckoutRequestID:   res.CheckoutRequestID,
		ResponseDescription: res.ResponseDescription,
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.Submit(r.Context())
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ConfirmationDTO{
		SaleID:      c.DraftID.String(),
		Message:     c.Message,
		Total:       mapMoney(c.Total),
		LineCount:   c.LineCount,
		SubmittedAt: c.SubmittedAt,
	})
}

func (h *Handler) ResetCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		respondError(w, http.StatusNotImplemented, "not_configured", "stock alerts are not available")
		return
	}

	status, err := domain.ParseAlertStatus(r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	alerts, err := h.alerts.LowStockAlerts(r.Context())
	if err != nil {
		handleCartError(w, err)
		return
	}

	filtered := domain.FilterAlerts(alerts, domain.AlertFilter{Status: status, Search: r.URL.Query().Get("search")})
	out := make([]AlertDTO, 0, len(filtered))
	for _, a := range filtered {
		out = append(out, AlertDTO{
			ID:              a.ID,
			ProductID:       int64(a.ProductID),
			ProductName:     a.ProductName,
			Message:         a.Message,
			CurrentQuantity: a.CurrentQuantity,
			StockThreshold:  a.StockThreshold,
			Resolved:        a.Resolved,
			CreatedAt:       a.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, out)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (domain.ProductID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return domain.ProductID(id), true
}

func (h *Handler) cartDTO() CartDTO {
	draft := h.cart.Draft()
	items := h.cart.Items()

	dto := CartDTO{
		ID:    draft.ID.String(),
		Lines: make([]LineDTO, 0, len(items)),
		Total: mapMoney(h.cart.Total()),
	}
	for _, it := range items {
		dto.Lines = append(dto.Lines, LineDTO{
			ProductID: int64(it.Line.ProductID),
			Name:      it.Product.Name,
			Quantity:  it.Line.Quantity,
			Available: it.Product.AvailableQuantity,
			UnitPrice: mapMoney(it.Line.UnitPrice),
			Amount:    mapMoney(it.Amount),
		})
	}

	if p := draft.Payment; p != nil {
		dto.Payment = PaymentRequestDTO{
			Method:        string(p.Method()),
			CustomerName:  p.Buyer().Name,
			CustomerPhone: p.Buyer().Phone,
		}
		if m, ok := p.(domain.Mpesa); ok {
			dto.Payment.ReferenceNumber = m.ReferenceNumber
		}
	}

	return dto
}

func mapResults(res cart.Results) SearchResponseDTO {
	dto := SearchResponseDTO{
		Query:    res.Query,
		Pending:  res.Pending,
		Products: make([]ProductDTO, 0, len(res.Products)),
	}
	if res.Err != nil {
		dto.Error = domain.UserMessage(res.Err)
	}
	for _, p := range res.Products {
		dto.Products = append(dto.Products, ProductDTO{
			ID:                int64(p.ID),
			Name:              p.Name,
			Category:          p.Category,
			Barcode:           p.Barcode,
			Price:             mapMoney(p.Price),
			AvailableQuantity: p.AvailableQuantity,
		})
	}
	return dto
}

func mapMoney(m domain.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency.String(), Display: m.String()}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, "")
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// handleCartError maps domain errors to HTTP status codes.
func handleCartError(w http.ResponseWriter, err error) {
	var (
		verrs    domain.ValidationErrors
		limitErr *domain.StockLimitError
		subErr   *domain.SubmissionError
	)

	switch {
	case errors.As(err, &verrs):
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, e.Error())
		}
		respondErrorDetails(w, http.StatusUnprocessableEntity, "validation_failed", "sale cannot be submitted", strings.Join(msgs, "; "))
	case errors.As(err, &limitErr):
		respondErrorDetails(w, http.StatusConflict, "stock_limit", limitErr.Error(), strconv.Itoa(limitErr.Available))
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, cart.ErrSubmitInProgress):
		respondError(w, http.StatusConflict, "submit_in_progress", err.Error())
	case errors.Is(err, cart.ErrPaymentsDisabled):
		respondError(w, http.StatusNotImplemented, "not_configured", err.Error())
	case errors.Is(err, domain.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "timeout", domain.UserMessage(err))
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", domain.UserMessage(err))
	case errors.As(err, &subErr):
		respondError(w, http.StatusBadGateway, "submission_failed", subErr.Message)
	default:
		respondError(w, http.StatusBadGateway, "backend_error", domain.UserMessage(err))
	}
}
