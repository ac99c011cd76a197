package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/thefoodbasketke/orderwise-meter-sub000/internal/order/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/application"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	verifier TokenVerifier
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, verifier TokenVerifier) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		tracer:   otel.Tracer("payments-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/payments/webhook", h.webhook)
	r.Group(func(r chi.Router) {
		r.Use(Authenticator(h.verifier))
		r.Post("/payments/initiate", h.initiate)
		r.Get("/payments/{id}", h.getPayment)
	})
	return r
}

type initiateReq struct {
	OrderID string          `json:"orderId"`
	Phone   string          `json:"phone"`
	Amount  decimal.Decimal `json:"amount"`
}

type initiateData struct {
	PaymentID         string `json:"paymentId"`
	TransactionID     string `json:"transactionId,omitempty"`
	CheckoutRequestID string `json:"checkoutRequestID,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	var req initiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	if req.OrderID == "" || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "orderId and phone are required"})
		return
	}

	res, err := h.service.Initiate(ctx, callerID(ctx), application.InitiateInput{
		OrderID: req.OrderID,
		Phone:   req.Phone,
		Amount:  req.Amount,
	})
	if err != nil {
		h.writeInitiateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "STK push sent. Check your phone to complete the payment.",
		Data: initiateData{
			PaymentID:         res.PaymentID,
			TransactionID:     res.TransactionID,
			CheckoutRequestID: res.CheckoutRequestID,
		},
	})
}

func (h *Handler) writeInitiateError(w http.ResponseWriter, err error) {
	var provErr *application.ProviderError
	switch {
	case errors.Is(err, orderdomain.ErrNotFound):
		// Absent and not-owned orders share one message on purpose.
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
	case errors.Is(err, application.ErrAmountMismatch),
		errors.Is(err, application.ErrOrderNotPayable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &provErr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: provErr.Message})
	default:
		h.log.Error("initiate payment failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "payment initiation failed"})
	}
}

type paymentData struct {
	PaymentID          string          `json:"paymentId"`
	OrderID            string          `json:"orderId"`
	Amount             decimal.Decimal `json:"amount"`
	PhoneNumber        string          `json:"phoneNumber"`
	TransactionID      *string         `json:"transactionId,omitempty"`
	MpesaReceiptNumber *string         `json:"mpesaReceiptNumber,omitempty"`
	Status             domain.Status   `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	p, err := h.service.GetPayment(ctx, callerID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "payment not found"})
			return
		}
		h.log.Error("get payment failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "payment",
		Data: paymentData{
			PaymentID:          p.ID,
			OrderID:            p.OrderID,
			Amount:             p.Amount,
			PhoneNumber:        p.PhoneNumber,
			TransactionID:      p.TransactionID,
			MpesaReceiptNumber: p.MpesaReceiptNumber,
			Status:             p.Status,
			CreatedAt:          p.CreatedAt,
		},
	})
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read body failed"})
		return
	}

	err = h.service.HandleWebhook(ctx, raw, r.Header.Get("X-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, application.ErrInvalidSignature):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	case errors.Is(err, domain.ErrNotFound):
		// 404 lets the provider's retry policy re-deliver once the
		// initiator's insert lands.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Payment not found"})
	case errors.Is(err, application.ErrMalformedPayload):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed payload"})
	default:
		h.log.Error("webhook processing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "webhook processing failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
