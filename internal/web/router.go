// Package web serves the cashier front-end as a JSON API over the cart
// engine and the session guard.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikolayk812/biashara-pos/internal/cart"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/port"
	"go.uber.org/zap"
)

// SessionView is what route gating needs to know about the session.
type SessionView interface {
	Snapshot() domain.Session
	Resolved() bool
}

type Session interface {
	SessionView
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Register(ctx context.Context, fullName, email, password string) (domain.Session, error)
	Logout(ctx context.Context)
}

type Checkout interface {
	Search(query string)
	Results() cart.Results
	ResultsChanged() <-chan struct{}
	Pick(id domain.ProductID) (domain.ResolvedProduct, bool)
	AddOrIncrement(product domain.ResolvedProduct, quantity int) error
	SetQuantity(id domain.ProductID, quantity int) error
	Remove(id domain.ProductID) error
	Items() []cart.Item
	Total() domain.Money
	Draft() domain.SaleDraft
	SetPayment(p domain.Payment) error
	InitiateMpesa(ctx context.Context, phone string) (domain.MpesaPushResult, error)
	Submit(ctx context.Context) (domain.SaleConfirmation, error)
	Reset()
}

type Handler struct {
	session Session
	cart    Checkout
	alerts  port.AlertLister
	logger  *zap.Logger

	// searchWait bounds how long GET /search waits for a debounced lookup.
	searchWait time.Duration
}

func NewHandler(session Session, checkout Checkout, alerts port.AlertLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session:    session,
		cart:       checkout,
		alerts:     alerts,
		logger:     logger,
		searchWait: 5 * time.Second,
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/login", h.LoginStatus)
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(Gate(h.session))

		r.Get("/session", h.GetSession)
		r.Get("/search", h.Search)
		r.Get("/alerts", h.Alerts)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ResetCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{product_id}", h.UpdateQuantity)
			r.Delete("/items/{product_id}", h.RemoveItem)
			r.Put("/payment", h.SetPayment)
			r.Post("/mpesa", h.InitiateMpesa)
			r.Post("/checkout", h.Checkout)
		})
	})

	return r
}
