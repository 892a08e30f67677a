package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentMpesa  PaymentMethod = "mpesa"
	PaymentCredit PaymentMethod = "credit"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentMpesa, PaymentCredit:
		return m, nil
	}
	return "", errors.New("unknown payment method " + s)
}

// Customer is optional for cash and M-PESA sales and mandatory for credit.
type Customer struct {
	Name  string
	Phone string
}

func (c Customer) complete() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.Phone) != ""
}

// Payment is one of Cash, Mpesa or Credit. Each variant carries exactly the
// fields its payment method needs.
type Payment interface {
	Method() PaymentMethod
	Buyer() Customer
	validate() []error
}

type Cash struct {
	Customer Customer
}

func (Cash) Method() PaymentMethod { return PaymentCash }
func (p Cash) Buyer() Customer     { return p.Customer }
func (Cash) validate() []error     { return nil }

type Mpesa struct {
	Customer        Customer
	ReferenceNumber string
}

func (Mpesa) Method() PaymentMethod { return PaymentMpesa }
func (p Mpesa) Buyer() Customer     { return p.Customer }

func (p Mpesa) validate() []error {
	if strings.TrimSpace(p.ReferenceNumber) == "" {
		return []error{ErrMissingReference}
	}
	return nil
}

type Credit struct {
	Customer Customer
}

func (Credit) Method() PaymentMethod { return PaymentCredit }
func (p Credit) Buyer() Customer     { return p.Customer }

func (p Credit) validate() []error {
	if !p.Customer.complete() {
		return []error{ErrMissingCustomerInfo}
	}
	return nil
}

// SaleDraft is an in-progress sale. The total is never stored.
type SaleDraft struct {
	ID      uuid.UUID
	Lines   []CartLineItem
	Payment Payment
}

// Total sums quantity × unit price snapshot over all lines.
func (d SaleDraft) Total(unit currency.Unit) Money {
	total := ZeroMoney(unit)
	for _, l := range d.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// Validate reports every reason the draft cannot be submitted.
func (d SaleDraft) Validate() error {
	var errs ValidationErrors
	if len(d.Lines) == 0 {
		errs = append(errs, ErrEmptyCart)
	}
	payment := d.Payment
	if payment == nil {
		payment = Cash{}
	}
	errs = append(errs, payment.validate()...)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Normalize projects the draft to the payload handed to the sale submission collaborator.
func (d SaleDraft) Normalize() SaleRequest {
	payment := d.Payment
	if payment == nil {
		payment = Cash{}
	}
	req := SaleRequest{
		LineItems:     make([]SaleLineRequest, 0, len(d.Lines)),
		PaymentMethod: payment.Method(),
		CustomerName:  strings.TrimSpace(payment.Buyer().Name),
		CustomerPhone: strings.TrimSpace(payment.Buyer().Phone),
	}
	if m, ok := payment.(Mpesa); ok {
		req.ReferenceNumber = strings.TrimSpace(m.ReferenceNumber)
	}
	for _, l := range d.Lines {
		req.LineItems = append(req.LineItems, SaleLineRequest{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Amount:    l.Amount(),
		})
	}
	return req
}

type SaleLineRequest struct {
	ProductID ProductID
	Quantity  int
	Amount    Money
}

type SaleRequest struct {
	LineItems       []SaleLineRequest
	PaymentMethod   PaymentMethod
	CustomerName    string
	CustomerPhone   string
	ReferenceNumber string
}

type SaleConfirmation struct {
	DraftID     uuid.UUID
	Message     string
	Total       Money
	LineCount   int
	SubmittedAt time.Time
}

type MpesaPushRequest struct {
	Phone       string
	Amount      Money
	Reference   string
	Description string
}

type MpesaPushResult struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseDescription string
}
