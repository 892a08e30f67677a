package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type saleLineDTO struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Amount    json.Number `json:"amount"`
}

type saleDTO struct {
	Products        []saleLineDTO `json:"products"`
	PaymentMethod   string        `json:"payment_method"`
	CustomerName    string        `json:"customer_name,omitempty"`
	CustomerPhone   string        `json:"customer_phone,omitempty"`
	ReferenceNumber string        `json:"reference_number,omitempty"`
}

type saleResponse struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// SubmitSale posts the sale and returns the backend's confirmation message.
// A 2xx response with success=false is still a rejection.
func (c *Client) SubmitSale(ctx context.Context, req domain.SaleRequest) (string, error) {
	var resp saleResponse
	if err := c.do(ctx, http.MethodPost, "/sell", nil, mapSaleRequestToWire(req), &resp, ""); err != nil {
		return "", err
	}

	if resp.Success != nil && !*resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		if msg == "" {
			msg = "sale was not recorded"
		}
		return "", &domain.APIError{StatusCode: http.StatusOK, Message: msg}
	}

	return resp.Message, nil
}

// the backend stores payment methods upper-cased
func mapSaleRequestToWire(req domain.SaleRequest) saleDTO {
	dto := saleDTO{
		Products:        make([]saleLineDTO, 0, len(req.LineItems)),
		PaymentMethod:   strings.ToUpper(string(req.PaymentMethod)),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ReferenceNumber: req.ReferenceNumber,
	}
	for _, l := range req.LineItems {
		dto.Products = append(dto.Products, saleLineDTO{
			ProductID: int64(l.ProductID),
			Quantity:  l.Quantity,
			Amount:    json.Number(l.Amount.Amount.String()),
		})
	}
	return dto
}
