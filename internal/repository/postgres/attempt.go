package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/database"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

const findOpenQuery = `
		SELECT idempotency_key, session_id, fingerprint, order_id, payment_method,
			total_amount::text, status, outcome, payment_id, failure_reason,
			payment_seq, created_at, updated_at
		FROM checkout_attempts
		WHERE session_id = $1 AND fingerprint = $2 AND status = 'open'
		ORDER BY updated_at DESC
		LIMIT 1`

const upsertQuery = `
		INSERT INTO checkout_attempts (
			idempotency_key, session_id, fingerprint, order_id, payment_method,
			total_amount, status, outcome, payment_id, failure_reason,
			payment_seq, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7, $8, $9, $10,
			$11, $12, $12
		)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			total_amount = EXCLUDED.total_amount,
			status = EXCLUDED.status,
			outcome = EXCLUDED.outcome,
			payment_id = EXCLUDED.payment_id,
			failure_reason = EXCLUDED.failure_reason,
			payment_seq = GREATEST(checkout_attempts.payment_seq, EXCLUDED.payment_seq),
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`

// AttemptRepository implements repository.AttemptRepository using PostgreSQL.
type AttemptRepository struct {
	db     database.DBTX
	tracer *database.QueryTracer
}

// NewAttemptRepository creates a PostgreSQL-backed checkout attempt ledger.
// tracer may be nil.
func NewAttemptRepository(db database.DBTX, tracer *database.QueryTracer) *AttemptRepository {
	return &AttemptRepository{db: db, tracer: tracer}
}

// FindOpen returns the most recent open attempt for the session and fingerprint.
func (r *AttemptRepository) FindOpen(ctx context.Context, sessionID, fingerprint string) (_ *domain.CheckoutAttempt, err error) {
	ctx, end := r.tracer.Start(ctx, "FindOpenAttempt", findOpenQuery)
	defer func() { end(err) }()

	var (
		a             domain.CheckoutAttempt
		paymentMethod string
		total         string
		orderID       *string
		outcome       *string
		paymentID     *string
		failureReason *string
	)

	err = r.db.QueryRow(ctx, findOpenQuery, sessionID, fingerprint).Scan(
		&a.IdempotencyKey,
		&a.SessionID,
		&a.Fingerprint,
		&orderID,
		&paymentMethod,
		&total,
		&a.Status,
		&outcome,
		&paymentID,
		&failureReason,
		&a.PaymentSeq,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan checkout attempt: %w", err)
	}

	a.PaymentMethod = domain.PaymentMethod(paymentMethod)
	a.TotalAmount = domain.ParseAmount(total)
	a.OrderID = deref(orderID)
	a.Outcome = domain.State(deref(outcome))
	a.PaymentID = deref(paymentID)
	a.FailureReason = deref(failureReason)

	return &a, nil
}

// Save upserts the attempt by idempotency key and refreshes its timestamps.
// The stored payment sequence never moves backwards.
func (r *AttemptRepository) Save(ctx context.Context, attempt *domain.CheckoutAttempt) (err error) {
	if attempt.IdempotencyKey == "" {
		return apperrors.InvalidInput("attempt idempotency key is required")
	}

	ctx, end := r.tracer.Start(ctx, "SaveAttempt", upsertQuery)
	defer func() { end(err) }()

	now := time.Now().UTC()
	err = r.db.QueryRow(ctx, upsertQuery,
		attempt.IdempotencyKey,
		attempt.SessionID,
		attempt.Fingerprint,
		nullableString(attempt.OrderID),
		string(attempt.PaymentMethod),
		attempt.TotalAmount.StringFixed(2),
		attempt.Status,
		nullableString(string(attempt.Outcome)),
		nullableString(attempt.PaymentID),
		nullableString(attempt.FailureReason),
		attempt.PaymentSeq,
		now,
	).Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert checkout attempt: %w", err)
	}

	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
