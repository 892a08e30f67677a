package port

import (
	"context"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

// ProductSearcher must tolerate empty result sets, returning no error for them.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query string) ([]domain.ResolvedProduct, error)
}

type SaleSubmitter interface {
	SubmitSale(ctx context.Context, req domain.SaleRequest) (string, error)
}

type AlertLister interface {
	LowStockAlerts(ctx context.Context) ([]domain.StockAlert, error)
}

type PaymentInitiator interface {
	InitiateMpesa(ctx context.Context, req domain.MpesaPushRequest) (domain.MpesaPushResult, error)
}
