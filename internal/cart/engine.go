// Package cart assembles a sale: product lookup, line items, stock checks,
// payment-dependent validation and submission.
package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/port"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

const DefaultDebounce = 300 * time.Millisecond

var (
	ErrSubmitInProgress  = errors.New("a sale submission is already in progress")
	ErrPaymentsDisabled  = errors.New("M-PESA payments are not configured")
	ErrEngineClosed      = errors.New("cart engine is closed")
	errNilProductSearch  = errors.New("product searcher is nil")
	errNilSaleSubmission = errors.New("sale submitter is nil")
)

// Results is the state of the search picker.
type Results struct {
	Query    string
	Seq      uint64
	Products []domain.ResolvedProduct
	Pending  bool
	Err      error
}

// Item is a line joined with the product it was resolved from.
type Item struct {
	Line    domain.CartLineItem
	Product domain.ResolvedProduct
	Amount  domain.Money
}

type Engine struct {
	searcher  port.ProductSearcher
	submitter port.SaleSubmitter
	payments  port.PaymentInitiator
	logger    *zap.Logger
	debounce  time.Duration
	unit      currency.Unit
	now       func() time.Time

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	draft      domain.SaleDraft
	resolved   map[domain.ProductID]domain.ResolvedProduct
	seq        uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	results    Results
	changed    chan struct{}
	submitting bool
	closed     bool
}

type Option func(*Engine)

func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.debounce = d
		}
	}
}

func WithCurrency(unit currency.Unit) Option {
	return func(e *Engine) { e.unit = unit }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithPaymentInitiator(p port.PaymentInitiator) Option {
	return func(e *Engine) { e.payments = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(searcher port.ProductSearcher, submitter port.SaleSubmitter, opts ...Option) (*Engine, error) {
	if searcher == nil {
		return nil, errNilProductSearch
	}
	if submitter == nil {
		return nil, errNilSaleSubmission
	}

	e := &Engine{
		searcher:  searcher,
		submitter: submitter,
		logger:    zap.NewNop(),
		debounce:  DefaultDebounce,
		unit:      domain.DefaultCurrency,
		now:       time.Now,
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.stop = context.WithCancel(context.Background())
	e.resetLocked()

	return e, nil
}

// Search schedules a product lookup after the debounce window. Every call
// supersedes the pending timer and any in-flight lookup of an earlier call.
func (e *Engine) Search(query string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	seq := e.nextSeqLocked()
	query = strings.TrimSpace(query)
	if query == "" {
		e.publishLocked(Results{Seq: seq})
		return
	}

	e.publishLocked(Results{Query: query, Seq: seq, Pending: true})

	e.wg.Add(1)
	e.timer = time.AfterFunc(e.debounce, func() {
		defer e.wg.Done()
		e.run(seq, query)
	})
}

// SearchNow performs a sequenced lookup without waiting for the debounce window.
func (e *Engine) SearchNow(ctx context.Context, query string) Results {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Results{Err: ErrEngineClosed}
	}

	seq := e.nextSeqLocked()
	query = strings.TrimSpace(query)
	if query == "" {
		e.publishLocked(Results{Seq: seq})
		e.mu.Unlock()
		return Results{Seq: seq}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.cancel = cancel
	e.publishLocked(Results{Query: query, Seq: seq, Pending: true})
	e.mu.Unlock()

	products, err := e.searcher.SearchProducts(ctx, query)
	return e.apply(seq, query, products, err)
}

func (e *Engine) run(seq uint64, query string) {
	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()

	e.mu.Lock()
	if seq != e.seq || e.closed {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.cancel = cancel
	e.mu.Unlock()

	products, err := e.searcher.SearchProducts(ctx, query)
	e.apply(seq, query, products, err)
}

// apply publishes a lookup outcome unless a later lookup was issued meanwhile.
func (e *Engine) apply(seq uint64, query string, products []domain.ResolvedProduct, err error) Results {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := Results{Query: query, Seq: seq, Products: products, Err: err}
	if err != nil {
		res.Products = nil
	}

	if seq != e.seq {
		e.logger.Debug("discarding stale search response",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", e.seq),
			zap.String("query", query))
		return res
	}

	e.cancel = nil
	if err != nil {
		e.logger.Warn("product search failed", zap.String("query", query), zap.Error(err))
	}
	e.publishLocked(res)

	return res
}

// nextSeqLocked issues a new sequence number and supersedes older lookups.
func (e *Engine) nextSeqLocked() uint64 {
	e.seq++
	if e.timer != nil {
		if e.timer.Stop() {
			e.wg.Done()
		}
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return e.seq
}

func (e *Engine) publishLocked(res Results) {
	e.results = res
	close(e.changed)
	e.changed = make(chan struct{})
}

func (e *Engine) clearSearchLocked() {
	e.publishLocked(Results{Seq: e.nextSeqLocked()})
}

func (e *Engine) Results() Results {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.results
	res.Products = slices.Clone(res.Products)
	return res
}

// ResultsChanged returns a channel that is closed on the next change of Results.
func (e *Engine) ResultsChanged() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.changed
}

// AddOrIncrement adds quantity of product to the cart. A product already in
// the cart has its line incremented instead.
func (e *Engine) AddOrIncrement(product domain.ResolvedProduct, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitting {
		return ErrSubmitInProgress
	}

	if i := e.indexLocked(product.ID); i >= 0 {
		if err := e.setQuantityLocked(product.ID, e.draft.Lines[i].Quantity+quantity); err != nil {
			return err
		}
	} else {
		if quantity > product.AvailableQuantity {
			return stockLimit(product, quantity)
		}
		e.draft.Lines = append(e.draft.Lines, domain.CartLineItem{
			ProductID: product.ID,
			Quantity:  quantity,
			UnitPrice: product.Price,
			AddedAt:   e.now(),
		})
		e.resolved[product.ID] = product
	}

	e.clearSearchLocked()

	return nil
}

// SetQuantity replaces the quantity of a line. Quantities below 1 are ignored.
func (e *Engine) SetQuantity(id domain.ProductID, quantity int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitting {
		return ErrSubmitInProgress
	}
	return e.setQuantityLocked(id, quantity)
}

func (e *Engine) setQuantityLocked(id domain.ProductID, quantity int) error {
	i := e.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", domain.ErrLineNotFound, id)
	}
	if quantity < 1 {
		return nil
	}

	product := e.resolved[id]
	if quantity > product.AvailableQuantity {
		return stockLimit(product, quantity)
	}

	e.draft.Lines[i].Quantity = quantity

	return nil
}

// Remove deletes a line together with its resolved product.
func (e *Engine) Remove(id domain.ProductID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitting {
		return ErrSubmitInProgress
	}

	i := e.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", domain.ErrLineNotFound, id)
	}

	e.draft.Lines = slices.Delete(e.draft.Lines, i, i+1)
	delete(e.resolved, id)

	return nil
}

func (e *Engine) indexLocked(id domain.ProductID) int {
	return slices.IndexFunc(e.draft.Lines, func(l domain.CartLineItem) bool {
		return l.ProductID == id
	})
}

func stockLimit(product domain.ResolvedProduct, requested int) error {
	return &domain.StockLimitError{
		ProductID: product.ID,
		Name:      product.Name,
		Requested: requested,
		Available: product.AvailableQuantity,
	}
}

func (e *Engine) Total() domain.Money {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.draft.Total(e.unit)
}

func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]Item, 0, len(e.draft.Lines))
	for _, l := range e.draft.Lines {
		items = append(items, Item{Line: l, Product: e.resolved[l.ProductID], Amount: l.Amount()})
	}
	return items
}

// Pick finds a product among the current search results, falling back to
// the products already in the cart.
func (e *Engine) Pick(id domain.ProductID) (domain.ResolvedProduct, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.results.Products {
		if p.ID == id {
			return p, true
		}
	}
	if e.indexLocked(id) >= 0 {
		return e.resolved[id], true
	}
	return domain.ResolvedProduct{}, false
}

// SetPayment switches the payment variant. A nil payment means cash.
func (e *Engine) SetPayment(p domain.Payment) error {
	if p == nil {
		p = domain.Cash{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitting {
		return ErrSubmitInProgress
	}
	e.draft.Payment = p

	return nil
}

// Draft returns a copy of the in-progress sale.
func (e *Engine) Draft() domain.SaleDraft {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.draftLocked()
}

func (e *Engine) draftLocked() domain.SaleDraft {
	d := e.draft
	d.Lines = slices.Clone(e.draft.Lines)
	return d
}

func (e *Engine) Validate() error {
	return e.Draft().Validate()
}

// Reset discards the draft and starts a fresh sale.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.clearSearchLocked()
}

func (e *Engine) resetLocked() {
	e.draft = domain.SaleDraft{ID: uuid.New(), Payment: domain.Cash{}}
	e.resolved = make(map[domain.ProductID]domain.ResolvedProduct)
}

// Submit validates the draft and records the sale. On success the cart is
// emptied; on failure it is kept as is so the sale can be retried. Cart
// changes fail with ErrSubmitInProgress until the backend has answered.
func (e *Engine) Submit(ctx context.Context) (domain.SaleConfirmation, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return domain.SaleConfirmation{}, ErrSubmitInProgress
	}
	draft := e.draftLocked()
	if err := draft.Validate(); err != nil {
		e.mu.Unlock()
		return domain.SaleConfirmation{}, err
	}
	e.submitting = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
	}()

	req := draft.Normalize()
	msg, err := e.submitter.SubmitSale(ctx, req)
	if err != nil {
		e.logger.Warn("sale submission failed",
			zap.Stringer("draft_id", draft.ID),
			zap.Int("lines", len(req.LineItems)),
			zap.Error(err))
		return domain.SaleConfirmation{}, &domain.SubmissionError{Message: domain.UserMessage(err), Err: err}
	}

	confirmation := domain.SaleConfirmation{
		DraftID:     draft.ID,
		Message:     msg,
		Total:       draft.Total(e.unit),
		LineCount:   len(draft.Lines),
		SubmittedAt: e.now(),
	}

	e.mu.Lock()
	if e.draft.ID == draft.ID {
		e.resetLocked()
		e.clearSearchLocked()
	}
	e.mu.Unlock()

	e.logger.Info("sale recorded",
		zap.Stringer("draft_id", draft.ID),
		zap.Stringer("total", confirmation.Total),
		zap.String("payment_method", string(req.PaymentMethod)))

	return confirmation, nil
}

// InitiateMpesa sends an STK push for the cart total to phone. When the draft
// is paid by M-PESA its reference is taken from the push result.
func (e *Engine) InitiateMpesa(ctx context.Context, phone string) (domain.MpesaPushResult, error) {
	if e.payments == nil {
		return domain.MpesaPushResult{}, ErrPaymentsDisabled
	}

	draft := e.Draft()
	if len(draft.Lines) == 0 {
		return domain.MpesaPushResult{}, domain.ValidationErrors{domain.ErrEmptyCart}
	}
	if strings.TrimSpace(phone) == "" {
		return domain.MpesaPushResult{}, domain.ValidationErrors{domain.ErrMissingCustomerInfo}
	}

	res, err := e.payments.InitiateMpesa(ctx, domain.MpesaPushRequest{
		Phone:       strings.TrimSpace(phone),
		Amount:      draft.Total(e.unit),
		Reference:   draft.ID.String(),
		Description: "Sale payment",
	})
	if err != nil {
		return domain.MpesaPushResult{}, &domain.SubmissionError{Message: domain.UserMessage(err), Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.draft.Payment.(domain.Mpesa); ok && e.draft.ID == draft.ID && res.CheckoutRequestID != "" {
		m.ReferenceNumber = res.CheckoutRequestID
		e.draft.Payment = m
	}

	return res, nil
}

// Close cancels any pending lookup and waits for background work to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.nextSeqLocked()
	e.mu.Unlock()

	e.stop()
	e.wg.Wait()
}
