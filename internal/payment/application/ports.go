package application

import (
	"context"

	"github.com/shopspring/decimal"

	orderdomain "github.com/thefoodbasketke/orderwise-meter-sub000/internal/order/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
)

type Repository interface {
	GetOrder(ctx context.Context, id string) (orderdomain.Order, error)
	// CreatePayment inserts the payment and its outbox row in one
	// transaction; the owner predicate is re-checked inside that
	// transaction so a concurrent order reassignment cannot slip
	// between the ownership read and the insert.
	CreatePayment(ctx context.Context, p domain.Payment, ownerID, eventType string, payload []byte, traceparent string) error
	// GetPayment returns the payment and the customer id of its
	// owning order.
	GetPayment(ctx context.Context, id string) (domain.Payment, string, error)
	FindByTransactionID(ctx context.Context, transactionID string) (domain.Payment, orderdomain.Order, error)
	// ApplyOutcome performs the conditional terminal transition.
	// It reports false, without error, when the payment had already
	// left pending.
	ApplyOutcome(ctx context.Context, u OutcomeUpdate) (bool, error)
}

// OutcomeUpdate is one webhook outcome ready to be applied.
type OutcomeUpdate struct {
	PaymentID          string
	OrderID            string
	Status             domain.Status
	MpesaReceiptNumber *string
	AdvanceOrder       bool
	EventType          string
	EventPayload       []byte
	Traceparent        string
}

// Provider triggers the STK push prompt on the customer's phone.
// The attempt is at-most-once: a retry here would double-prompt the
// customer, so failures surface instead of being retried.
type Provider interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal) (STKResult, error)
}

type STKResult struct {
	TransactionID     string
	CheckoutRequestID string
}

// ReplayCache short-circuits redelivered webhooks before they reach
// Postgres. The conditional update in ApplyOutcome remains the
// correctness guard; this is only a fast path. Seen must not claim the
// key: a delivery is marked only after its outcome has committed, so
// an apply failure leaves the retry path open.
type ReplayCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}
