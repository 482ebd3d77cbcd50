package repository

import (
	"context"
	"fmt"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type CreatePaymentInput struct {
	SessionID   int64
	StudentID   int64
	TutorID     int64
	AmountMicro int64
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, session_id, student_id, tutor_id, amount_micro, currency, tx_hash,
	status, verification_attempts, created_at, updated_at`

func (r *PaymentRepository) scanRow(row interface{ Scan(dest ...any) error }) (*models.Payment, error) {
	var payment models.Payment
	err := row.Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.AmountMicro,
		&payment.Currency,
		&payment.TxHash,
		&payment.Status,
		&payment.VerificationAttempts,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := fmt.Sprintf(`
		INSERT INTO payments (session_id, student_id, tutor_id, amount_micro, currency, status)
		VALUES ($1, $2, $3, $4, 'USDC', 'pending')
		RETURNING %s
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, input.SessionID, input.StudentID, input.TutorID, input.AmountMicro))
}

func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM payments
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, sessionID))
}

func (r *PaymentRepository) GetBySessionIDForUpdate(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM payments
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, sessionID))
}

func (r *PaymentRepository) ListBySessionIDs(ctx context.Context, sessionIDs []int64) (map[int64]models.Payment, error) {
	payments := make(map[int64]models.Payment, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return payments, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (session_id) %s
		FROM payments
		WHERE session_id = ANY($1)
		ORDER BY session_id, id DESC
	`, paymentColumns)

	rows, err := r.db.Query(ctx, query, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.SessionID,
			&payment.StudentID,
			&payment.TutorID,
			&payment.AmountMicro,
			&payment.Currency,
			&payment.TxHash,
			&payment.Status,
			&payment.VerificationAttempts,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments[payment.SessionID] = payment
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	paymentID int64,
	currentStatus string,
	nextStatus string,
) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, paymentID, currentStatus, nextStatus))
}

// SetTxHash records the submitted transfer reference while the payment stays
// pending until on-chain confirmation.
func (r *PaymentRepository) SetTxHash(ctx context.Context, paymentID int64, txHash string) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET tx_hash = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, paymentID, txHash))
}

// ReopenWithTxHash returns a payment that failed before reaching the chain to
// pending with the freshly submitted transfer reference. The tx_hash IS NULL
// guard keeps payments that failed after submission (reverts, verification
// cap) in their terminal state.
func (r *PaymentRepository) ReopenWithTxHash(ctx context.Context, paymentID int64, txHash string) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = 'pending', tx_hash = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'failed' AND tx_hash IS NULL
		RETURNING %s
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, paymentID, txHash))
}

func (r *PaymentRepository) CompleteWithTxHash(ctx context.Context, paymentID int64, txHash string) (*models.Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = 'completed', tx_hash = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, paymentColumns)
	return r.scanRow(r.db.QueryRow(ctx, query, paymentID, txHash))
}

// RecordVerificationFailure bumps the attempt counter and returns the new
// count. The caller decides when the payment crosses into failed.
func (r *PaymentRepository) RecordVerificationFailure(ctx context.Context, paymentID int64) (int, error) {
	query := `
		UPDATE payments
		SET verification_attempts = verification_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING verification_attempts
	`
	var attempts int
	if err := r.db.QueryRow(ctx, query, paymentID).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}
