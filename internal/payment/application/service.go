package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
)

// WebhookConfig controls signature verification of provider callbacks.
// With no secret configured the receiver fails closed unless
// AllowUnsigned is set explicitly.
type WebhookConfig struct {
	Secret        []byte
	AllowUnsigned bool
}

type Service struct {
	log      *slog.Logger
	repo     Repository
	provider Provider
	replay   ReplayCache
	webhook  WebhookConfig
}

func NewService(log *slog.Logger, repo Repository, provider Provider, replay ReplayCache, webhook WebhookConfig) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		provider: provider,
		replay:   replay,
		webhook:  webhook,
	}
}

// GetPayment fetches a payment for the customer polling the "check your
// phone" screen. A payment owned by someone else reads as not found.
func (s *Service) GetPayment(ctx context.Context, callerID, paymentID string) (domain.Payment, error) {
	p, ownerID, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if ownerID != callerID {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Service) verifySignature(raw []byte, signature string) error {
	if len(s.webhook.Secret) == 0 {
		if s.webhook.AllowUnsigned {
			s.log.Warn("webhook accepted without signature verification")
			return nil
		}
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, s.webhook.Secret)
	mac.Write(raw)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
