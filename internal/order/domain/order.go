package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("order not found")

type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Order is a customer's purchase of a meter product. The payment pipeline
// only ever moves an order from pending to processing; every other
// transition belongs to the admin console.
type Order struct {
	ID         string
	CustomerID string
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewOrder(id, customerID, productID string, quantity int, unitPrice decimal.Decimal) Order {
	now := time.Now().UTC()
	return Order{
		ID:         id,
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Payable reports whether the order can still accept a payment attempt.
func (o Order) Payable() bool {
	return o.Status == StatusPending
}
