package domain

import "github.com/shopspring/decimal"

// EventClass is the typed outcome of a provider webhook event name.
type EventClass int

const (
	EventUnrecognized EventClass = iota
	EventSuccess
	EventFailed
	EventCancelled
)

// Classify maps the provider's event name onto a tagged class. Unknown
// names classify as Unrecognized and are acknowledged without touching
// any state.
func Classify(event string) EventClass {
	switch event {
	case "payment.success", "payment.completed":
		return EventSuccess
	case "payment.failed":
		return EventFailed
	case "payment.cancelled", "request.cancelled":
		return EventCancelled
	default:
		return EventUnrecognized
	}
}

// TargetStatus returns the payment status this event class drives toward,
// or false when the class carries no transition.
func (c EventClass) TargetStatus() (Status, bool) {
	switch c {
	case EventSuccess:
		return StatusSuccess, true
	case EventFailed, EventCancelled:
		return StatusFailed, true
	default:
		return "", false
	}
}

// Outbox event payloads published on the payment.events topic.

type PaymentInitiated struct {
	PaymentID     string          `json:"paymentId"`
	OrderID       string          `json:"orderId"`
	TransactionID string          `json:"transactionId,omitempty"`
	PhoneNumber   string          `json:"phoneNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

type PaymentSucceeded struct {
	PaymentID          string `json:"paymentId"`
	OrderID            string `json:"orderId"`
	MpesaReceiptNumber string `json:"mpesaReceiptNumber,omitempty"`
}

type PaymentFailed struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Event     string `json:"event"`
}
