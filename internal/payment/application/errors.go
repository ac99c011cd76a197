package application

import (
	"errors"
	"fmt"
)

var (
	ErrAmountMismatch   = errors.New("amount does not match order total")
	ErrOrderNotPayable  = errors.New("order is not awaiting payment")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// ProviderError carries the payment provider's rejection of a push
// request.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider rejected request (status %d): %s", e.StatusCode, e.Message)
}
