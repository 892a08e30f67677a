package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is the currency of a shop when nothing else is configured.
var DefaultCurrency = currency.MustParseISO("KES")

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

func NewMoney(amount decimal.Decimal, unit currency.Unit) Money {
	return Money{Amount: amount, Currency: unit}
}

func ZeroMoney(unit currency.Unit) Money {
	return Money{Amount: decimal.Zero, Currency: unit}
}

// Mul returns the money multiplied by an integer quantity.
func (m Money) Mul(quantity int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(quantity))), Currency: m.Currency}
}

// Add sums two amounts. The zero Currency is weak and takes the other side's unit.
func (m Money) Add(n Money) Money {
	unit := m.Currency
	if unit == (currency.Unit{}) {
		unit = n.Currency
	}
	return Money{Amount: m.Amount.Add(n.Amount), Currency: unit}
}

func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) Equal(n Money) bool {
	return m.Amount.Equal(n.Amount) && m.Currency.String() == n.Currency.String()
}

// String formats the amount with the currency symbol and fraction digits.
func (m Money) String() string {
	code := m.Currency.String()
	if m.Currency == (currency.Unit{}) {
		code = DefaultCurrency.String()
	}
	cur := money.GetCurrency(code)
	if cur == nil {
		return m.Amount.StringFixed(2) + " " + code
	}
	minor := m.Amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
