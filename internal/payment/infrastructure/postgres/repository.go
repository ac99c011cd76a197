package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	orderdomain "github.com/thefoodbasketke/orderwise-meter-sub000/internal/order/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/application"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetOrder(ctx context.Context, id string) (orderdomain.Order, error) {
	var o orderdomain.Order
	var unitPrice, totalPrice string
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, product_id, quantity, unit_price::text, total_price::text, status, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.ProductID, &o.Quantity, &unitPrice, &totalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orderdomain.Order{}, orderdomain.ErrNotFound
	}
	if err != nil {
		return orderdomain.Order{}, err
	}
	if o.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return orderdomain.Order{}, err
	}
	if o.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
		return orderdomain.Order{}, err
	}
	return o, nil
}

// CreatePayment re-checks the owner predicate and inserts the pending
// payment plus its outbox row in a single transaction, closing the
// window between the ownership read in the service and the write here.
func (r *Repository) CreatePayment(ctx context.Context, p domain.Payment, ownerID, eventType string, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var status orderdomain.Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 AND customer_id=$2 FOR UPDATE`,
		p.OrderID, ownerID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return orderdomain.ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, amount, phone_number, transaction_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OrderID, p.Amount.String(), p.PhoneNumber, p.TransactionID, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, p.ID, eventType, payload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetPayment(ctx context.Context, id string) (domain.Payment, string, error) {
	p, ownerID, err := r.scanPayment(ctx, `WHERE p.id=$1`, id)
	if err != nil {
		return domain.Payment{}, "", err
	}
	return p, ownerID, nil
}

func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (domain.Payment, orderdomain.Order, error) {
	p, _, err := r.scanPayment(ctx, `WHERE p.transaction_id=$1`, transactionID)
	if err != nil {
		return domain.Payment{}, orderdomain.Order{}, err
	}
	o, err := r.GetOrder(ctx, p.OrderID)
	if err != nil {
		return domain.Payment{}, orderdomain.Order{}, err
	}
	return p, o, nil
}

func (r *Repository) scanPayment(ctx context.Context, where string, arg any) (domain.Payment, string, error) {
	var p domain.Payment
	var amount, ownerID string
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.order_id, p.amount::text, p.phone_number, p.transaction_id,
		       p.mpesa_receipt_number, p.status, p.created_at, p.updated_at, o.customer_id
		FROM payments p
		JOIN orders o ON o.id = p.order_id `+where, arg).
		Scan(&p.ID, &p.OrderID, &amount, &p.PhoneNumber, &p.TransactionID,
			&p.MpesaReceiptNumber, &p.Status, &p.CreatedAt, &p.UpdatedAt, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, "", domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, "", err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Payment{}, "", err
	}
	return p, ownerID, nil
}

// ApplyOutcome moves a payment out of pending, conditionally. The
// WHERE status='pending' predicate is what makes webhook redelivery
// safe: the second delivery matches zero rows and carries no side
// effects, including the order promotion and the outbox row.
func (r *Repository) ApplyOutcome(ctx context.Context, u application.OutcomeUpdate) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE payments
		SET status=$2, mpesa_receipt_number=COALESCE($3, mpesa_receipt_number), updated_at=$4
		WHERE id=$1 AND status='pending'`,
		u.PaymentID, u.Status, u.MpesaReceiptNumber, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	if u.AdvanceOrder {
		_, err = tx.Exec(ctx, `
			UPDATE orders SET status=$2, updated_at=$3
			WHERE id=$1 AND status='pending'`,
			u.OrderID, orderdomain.StatusProcessing, time.Now().UTC())
		if err != nil {
			return false, err
		}
	}

	if err = insertOutbox(ctx, tx, u.PaymentID, u.EventType, u.EventPayload, u.Traceparent); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"payment", aggregateID, eventType, payload,
		map[string]string{"source": "payments-service"}, traceparent)
	return err
}
