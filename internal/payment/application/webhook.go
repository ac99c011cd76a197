package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/pkg/tracing"
)

// webhookEnvelope is the provider callback shape. The raw bytes are
// verified before this is ever decoded.
type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		TransactionID      string `json:"transactionId"`
		MpesaReceiptNumber string `json:"mpesaReceiptNumber"`
		ResultDescription  string `json:"resultDesc"`
	} `json:"data"`
}

// HandleWebhook applies one provider callback exactly once. raw must be
// the exact request bytes; the signature is an HMAC-SHA256 hex digest
// over them.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte, signature string) error {
	if err := s.verifySignature(raw, signature); err != nil {
		return err
	}

	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event == "" || env.Data.TransactionID == "" {
		return ErrMalformedPayload
	}

	p, order, err := s.repo.FindByTransactionID(ctx, env.Data.TransactionID)
	if err != nil {
		return err
	}

	class := domain.Classify(env.Event)
	target, ok := class.TargetStatus()
	if !ok {
		s.log.Warn("unrecognized webhook event acknowledged",
			"event", env.Event, "transaction_id", env.Data.TransactionID)
		return nil
	}

	if s.replay != nil {
		seen, err := s.replay.Seen(ctx, replayKey(env.Data.TransactionID, env.Event))
		if err != nil {
			s.log.Error("replay cache unavailable, falling through to conditional update", "err", err)
		} else if seen {
			s.log.Info("duplicate webhook short-circuited",
				"payment_id", p.ID, "event", env.Event)
			return nil
		}
	}

	if !domain.CanTransition(p.Status, target) {
		s.log.Info("webhook for finalized payment ignored",
			"payment_id", p.ID, "status", p.Status, "event", env.Event)
		return nil
	}

	update := OutcomeUpdate{
		PaymentID:    p.ID,
		OrderID:      order.ID,
		Status:       target,
		AdvanceOrder: target == domain.StatusSuccess,
		Traceparent:  tracing.Traceparent(ctx),
	}
	if env.Data.MpesaReceiptNumber != "" {
		update.MpesaReceiptNumber = &env.Data.MpesaReceiptNumber
	}

	if target == domain.StatusSuccess {
		update.EventType = "PaymentSucceeded"
		update.EventPayload, err = json.Marshal(domain.PaymentSucceeded{
			PaymentID:          p.ID,
			OrderID:            order.ID,
			MpesaReceiptNumber: env.Data.MpesaReceiptNumber,
		})
	} else {
		update.EventType = "PaymentFailed"
		update.EventPayload, err = json.Marshal(domain.PaymentFailed{
			PaymentID: p.ID,
			OrderID:   order.ID,
			Event:     env.Event,
		})
	}
	if err != nil {
		return err
	}

	applied, err := s.repo.ApplyOutcome(ctx, update)
	if err != nil {
		return err
	}
	s.markReplaySeen(ctx, env.Data.TransactionID, env.Event)
	if !applied {
		// Lost the race against a concurrent delivery; the other copy
		// carried the side effects.
		s.log.Info("payment already finalized, webhook acknowledged",
			"payment_id", p.ID, "event", env.Event)
		return nil
	}

	s.log.Info("webhook applied",
		"payment_id", p.ID, "order_id", order.ID, "event", env.Event, "status", target)
	return nil
}

// markReplaySeen claims the delivery key only after the outcome has
// committed. Marking a lost race is fine: the winning delivery carried
// the same terminal outcome.
func (s *Service) markReplaySeen(ctx context.Context, transactionID, event string) {
	if s.replay == nil {
		return
	}
	if err := s.replay.MarkSeen(ctx, replayKey(transactionID, event)); err != nil {
		s.log.Error("replay cache mark failed", "err", err)
	}
}

func replayKey(transactionID, event string) string {
	return "webhook:" + transactionID + ":" + event
}

