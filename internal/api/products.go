package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/shopspring/decimal"
)

type productDTO struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Barcode  string          `json:"barcode,omitempty"`
}

// productWithQuantity is the backend's product listing row.
type productWithQuantity struct {
	Product  productDTO `json:"product"`
	Quantity int        `json:"quantity"`
}

// SearchProducts matches the query against name, barcode and id. The query is
// also sent to the backend, which may narrow the listing itself.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.ResolvedProduct, error) {
	query = strings.TrimSpace(query)

	var rows []productWithQuantity
	if err := c.do(ctx, http.MethodGet, "/products", url.Values{"q": {query}}, nil, &rows, ""); err != nil {
		return nil, err
	}

	products := make([]domain.ResolvedProduct, 0, len(rows))
	for _, row := range rows {
		if !matches(row.Product, query) {
			continue
		}
		products = append(products, c.mapProductToDomain(row))
	}

	return products, nil
}

func (c *Client) mapProductToDomain(row productWithQuantity) domain.ResolvedProduct {
	return domain.ResolvedProduct{
		ID:                domain.ProductID(row.Product.ID),
		Name:              row.Product.Name,
		Price:             domain.NewMoney(row.Product.Price, c.unit),
		AvailableQuantity: row.Quantity,
		Category:          row.Product.Category,
		Barcode:           row.Product.Barcode,
	}
}

func matches(p productDTO, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Barcode), q) ||
		strings.Contains(strconv.FormatInt(p.ID, 10), q)
}
