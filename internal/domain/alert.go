package domain

import (
	"fmt"
	"strings"
	"time"
)

type StockAlert struct {
	ID              int64
	ProductID       ProductID
	ProductName     string
	Message         string
	CurrentQuantity int
	StockThreshold  int
	Resolved        bool
	CreatedAt       time.Time
}

type AlertStatus string

const (
	AlertsAll        AlertStatus = "all"
	AlertsResolved   AlertStatus = "resolved"
	AlertsUnresolved AlertStatus = "unresolved"
)

func ParseAlertStatus(s string) (AlertStatus, error) {
	switch st := AlertStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return AlertsAll, nil
	case AlertsAll, AlertsResolved, AlertsUnresolved:
		return st, nil
	}
	return "", fmt.Errorf("unknown alert status %q", s)
}

type AlertFilter struct {
	Status AlertStatus
	Search string
}

// FilterAlerts keeps the alerts matching the status and a case-insensitive
// product name substring. Order is preserved.
func FilterAlerts(alerts []StockAlert, f AlertFilter) []StockAlert {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]StockAlert, 0, len(alerts))
	for _, a := range alerts {
		switch f.Status {
		case AlertsResolved:
			if !a.Resolved {
				continue
			}
		case AlertsUnresolved:
			if a.Resolved {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(a.ProductName), search) {
			continue
		}
		out = append(out, a)
	}
	return out
}
