package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type alertDTO struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	ProductName     string    `json:"product_name"`
	AlertMessage    string    `json:"alert_message"`
	Resolved        bool      `json:"resolved"`
	CreatedAt       time.Time `json:"created_at"`
	CurrentQuantity int       `json:"current_quantity"`
	StockThreshold  int       `json:"stock_threshold"`
}

func (c *Client) LowStockAlerts(ctx context.Context) ([]domain.StockAlert, error) {
	var rows []alertDTO
	if err := c.do(ctx, http.MethodGet, "/get-low-stock-alerts", nil, nil, &rows, ""); err != nil {
		return nil, err
	}

	alerts := make([]domain.StockAlert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, domain.StockAlert{
			ID:              row.ID,
			ProductID:       domain.ProductID(row.ProductID),
			ProductName:     row.ProductName,
			Message:         row.AlertMessage,
			CurrentQuantity: row.CurrentQuantity,
			StockThreshold:  row.StockThreshold,
			Resolved:        row.Resolved,
			CreatedAt:       row.CreatedAt,
		})
	}

	return alerts, nil
}
