package domain

import (
	"time"
)

// ProductID identifies a catalog product on the backend.
type ProductID int64

// ResolvedProduct is the catalog snapshot a line item is priced and stock-checked against.
type ResolvedProduct struct {
	ID                ProductID
	Name              string
	Price             Money
	AvailableQuantity int
	Category          string
	Barcode           string
}

type CartLineItem struct {
	ProductID ProductID
	Quantity  int
	UnitPrice Money

	AddedAt time.Time
}

// Amount is the line subtotal.
func (l CartLineItem) Amount() Money {
	return l.UnitPrice.Mul(l.Quantity)
}
