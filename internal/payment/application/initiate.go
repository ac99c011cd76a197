package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	orderdomain "github.com/thefoodbasketke/orderwise-meter-sub000/internal/order/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/pkg/tracing"
)

type InitiateInput struct {
	OrderID string
	Phone   string
	Amount  decimal.Decimal
}

type InitiateResult struct {
	PaymentID         string
	TransactionID     string
	CheckoutRequestID string
}

// Initiate turns an authenticated pay-for-order request into an STK
// prompt on the customer's phone and a durable pending payment record.
// An order that does not exist and an order owned by someone else both
// come back as order not found, so callers cannot probe for other
// customers' order ids.
func (s *Service) Initiate(ctx context.Context, callerID string, in InitiateInput) (InitiateResult, error) {
	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return InitiateResult{}, err
	}
	if order.CustomerID != callerID {
		return InitiateResult{}, fmt.Errorf("order %s: %w", in.OrderID, orderdomain.ErrNotFound)
	}
	if !order.Payable() {
		return InitiateResult{}, ErrOrderNotPayable
	}
	if !in.Amount.Equal(order.TotalPrice) {
		return InitiateResult{}, ErrAmountMismatch
	}

	phone := domain.NormalizePhone(in.Phone)

	res, err := s.provider.STKPush(ctx, phone, in.Amount)
	if err != nil {
		return InitiateResult{}, err
	}

	var transactionID *string
	if res.TransactionID != "" {
		transactionID = &res.TransactionID
	}
	p := domain.NewPayment(order.ID, phone, in.Amount, transactionID)

	payload, err := json.Marshal(domain.PaymentInitiated{
		PaymentID:     p.ID,
		OrderID:       order.ID,
		TransactionID: res.TransactionID,
		PhoneNumber:   phone,
		Amount:        in.Amount,
	})
	if err != nil {
		return InitiateResult{}, err
	}

	if err := s.repo.CreatePayment(ctx, p, callerID, "PaymentInitiated", payload, tracing.Traceparent(ctx)); err != nil {
		// The provider has a prompt outstanding with no local record
		// to reconcile it against. Logged distinctly so operations can
		// chase the dangling transaction id.
		s.log.Error("payment insert failed after provider accepted push",
			"reconciliation_required", true,
			"order_id", order.ID,
			"transaction_id", res.TransactionID,
			"checkout_request_id", res.CheckoutRequestID,
			"err", err)
		return InitiateResult{}, fmt.Errorf("persist payment: %w", err)
	}

	s.log.Info("payment initiated",
		"payment_id", p.ID, "order_id", order.ID, "transaction_id", res.TransactionID)

	return InitiateResult{
		PaymentID:         p.ID,
		TransactionID:     res.TransactionID,
		CheckoutRequestID: res.CheckoutRequestID,
	}, nil
}
