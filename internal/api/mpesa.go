package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type stkPushDTO struct {
	PhoneNumber string      `json:"phone_number"`
	Amount      json.Number `json:"amount"`
	Reference   string      `json:"reference"`
	Description string      `json:"description"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseDescription string `json:"ResponseDescription"`
}

// InitiateMpesa asks the backend to send an STK push to the customer's phone.
func (c *Client) InitiateMpesa(ctx context.Context, req domain.MpesaPushRequest) (domain.MpesaPushResult, error) {
	var resp stkPushResponse
	err := c.do(ctx, http.MethodPost, "/mpesa/stk-push", nil, stkPushDTO{
		PhoneNumber: req.Phone,
		Amount:      json.Number(req.Amount.Amount.StringFixed(0)),
		Reference:   req.Reference,
		Description: req.Description,
	}, &resp, "")
	if err != nil {
		return domain.MpesaPushResult{}, err
	}

	return domain.MpesaPushResult{
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		ResponseDescription: resp.ResponseDescription,
	}, nil
}
