package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("payment not found")

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// validTransitions encodes the payment state machine. Terminal states
// have no outgoing edges, so a redelivered webhook cannot move a payment
// a second time.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusSuccess, StatusFailed},
	StatusSuccess: {},
	StatusFailed:  {},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Payment is a single STK push attempt against an order. An order may
// accumulate several failed attempts but at most one successful one.
type Payment struct {
	ID                 string
	OrderID            string
	Amount             decimal.Decimal
	PhoneNumber        string
	TransactionID      *string
	MpesaReceiptNumber *string
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewPayment(orderID, phone string, amount decimal.Decimal, transactionID *string) Payment {
	now := time.Now().UTC()
	return Payment{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		Amount:        amount,
		PhoneNumber:   phone,
		TransactionID: transactionID,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
