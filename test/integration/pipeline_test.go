package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/thefoodbasketke/orderwise-meter-sub000/internal/order/domain"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/application"
	"github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/domain"
	paymentpg "github.com/thefoodbasketke/orderwise-meter-sub000/internal/payment/infrastructure/postgres"
)

// Requires a container runtime; enable with INTEGRATION=1.
func TestRepository_WebhookOutcomeIsIdempotent(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, env.ApplySchema(ctx, pool))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := paymentpg.NewRepository(log, pool)

	_, err = pool.Exec(ctx, `
		INSERT INTO orders (id, customer_id, product_id, quantity, unit_price, total_price, status)
		VALUES ('order-1', 'user-1', 'meter-1', 1, 1500, 1500, 'pending')`)
	require.NoError(t, err)

	// Initiation: pending payment plus outbox row, owner re-checked in tx.
	tx := "tx_1"
	p := domain.NewPayment("order-1", "+254700111222", decimal.NewFromInt(1500), &tx)
	require.NoError(t, repo.CreatePayment(ctx, p, "user-1", "PaymentInitiated", []byte(`{}`), ""))

	wrongOwner := domain.NewPayment("order-1", "+254700111222", decimal.NewFromInt(1500), nil)
	assert.ErrorIs(t, repo.CreatePayment(ctx, wrongOwner, "intruder", "PaymentInitiated", []byte(`{}`), ""),
		orderdomain.ErrNotFound)

	got, order, err := repo.FindByTransactionID(ctx, "tx_1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, orderdomain.StatusPending, order.Status)

	// First delivery applies; the replay matches zero rows.
	receipt := "QAB123"
	update := application.OutcomeUpdate{
		PaymentID:          p.ID,
		OrderID:            "order-1",
		Status:             domain.StatusSuccess,
		MpesaReceiptNumber: &receipt,
		AdvanceOrder:       true,
		EventType:          "PaymentSucceeded",
		EventPayload:       []byte(`{}`),
	}
	applied, err := repo.ApplyOutcome(ctx, update)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ApplyOutcome(ctx, update)
	require.NoError(t, err)
	assert.False(t, applied)

	got, order, err = repo.FindByTransactionID(ctx, "tx_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	require.NotNil(t, got.MpesaReceiptNumber)
	assert.Equal(t, "QAB123", *got.MpesaReceiptNumber)
	assert.Equal(t, orderdomain.StatusProcessing, order.Status)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE aggregate_id=$1 AND type='PaymentSucceeded'`, p.ID).Scan(&outboxRows))
	assert.Equal(t, 1, outboxRows)
}

// Requires a container runtime; enable with INTEGRATION=1.
func TestOutboxStore_ReclaimsStalledRows(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, env.ApplySchema(ctx, pool))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := paymentpg.NewOutboxStore(log, pool)

	_, err = pool.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, status, relay_id, lease_until, retry_count) VALUES
		('payment', 'pay-1', 'PaymentInitiated', '{}', 'in_progress', 'crashed-relay', now() - interval '1 minute', 0),
		('payment', 'pay-2', 'PaymentFailed',    '{}', 'failed',      NULL,            NULL,                        1),
		('payment', 'pay-3', 'PaymentFailed',    '{}', 'failed',      NULL,            NULL,                        10),
		('payment', 'pay-4', 'PaymentInitiated', '{}', 'in_progress', 'live-relay',    now() + interval '1 minute', 0)`)
	require.NoError(t, err)

	events, err := store.LockBatch(ctx, "test-relay", 10, 5*time.Second)
	require.NoError(t, err)

	reclaimed := make([]string, 0, len(events))
	for _, e := range events {
		reclaimed = append(reclaimed, e.AggregateID)
	}
	// Expired lease and under-cap failed rows come back; the
	// exhausted row and the live lease stay put.
	assert.ElementsMatch(t, []string{"pay-1", "pay-2"}, reclaimed)
}
