// Package mpesa is the outbound client for the hosted STK push API.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/application"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		log:  log,
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Amount goes on the wire as a bare JSON number; decimal.Decimal
// would marshal itself quoted.
type stkPushRequest struct {
	Phone  string      `json:"phone"`
	Amount json.Number `json:"amount"`
}

type stkPushResponse struct {
	Data struct {
		TransactionID     string `json:"transactionId"`
		CheckoutRequestID string `json:"checkoutRequestID"`
	} `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// STKPush asks the provider to prompt phone for amount. One bounded
// HTTP attempt: a retry would risk prompting the customer twice.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal) (application.STKResult, error) {
	body, err := json.Marshal(stkPushRequest{Phone: phone, Amount: json.Number(amount.String())})
	if err != nil {
		return application.STKResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/stkpush", bytes.NewReader(body))
	if err != nil {
		return application.STKResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return application.STKResult{}, fmt.Errorf("stk push request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return application.STKResult{}, err
	}

	var parsed stkPushResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 300 {
		return application.STKResult{}, fmt.Errorf("stk push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.log.Error("stk push rejected", "status", resp.StatusCode, "message", msg)
		return application.STKResult{}, &application.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.log.Info("stk push accepted",
		"transaction_id", parsed.Data.TransactionID,
		"checkout_request_id", parsed.Data.CheckoutRequestID)

	return application.STKResult{
		TransactionID:     parsed.Data.TransactionID,
		CheckoutRequestID: parsed.Data.CheckoutRequestID,
	}, nil
}
