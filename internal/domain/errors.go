package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors are detected locally and never reach the network.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrMissingCustomerInfo = errors.New("customer name and phone are required for credit sales")
	ErrMissingReference    = errors.New("M-PESA reference number is required")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrLineNotFound        = errors.New("product is not in the cart")
)

var (
	ErrNetwork       = errors.New("network error")
	ErrTimeout       = errors.New("request timed out")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTokenNotFound = errors.New("token not found")
)

// ValidationErrors is the set of reasons a draft cannot be submitted.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, err := range v {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error { return v }

// StockLimitError rejects a quantity above the product's last known stock.
type StockLimitError struct {
	ProductID ProductID
	Name      string
	Requested int
	Available int
}

func (e *StockLimitError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("only %d of %s available (requested %d)", e.Available, name, e.Requested)
}

// SubmissionError is a failed or rejected sale submission. Message is meant for the user.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "failed to record sale: " + e.Err.Error()
	}
	return e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// AuthError is a rejected credential or an invalid/expired token.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "authentication failed: " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError is a non-success response of the backend carrying its human-readable message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// UserMessage extracts the best human-readable message from err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrTimeout):
		return "the server took too long to respond, please try again"
	case errors.Is(err, ErrNetwork):
		return "could not reach the server, please check your connection"
	}
	return err.Error()
}
