package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
	"goride-payments/pkg/database"

	"github.com/google/uuid"
)

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) interfaces.PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, ride_id, phone, amount, checkout_request_id, merchant_request_id,
	result_code, result_desc, mpesa_receipt_number, status, created_at, resolved_at`

const (
	insertPaymentQuery = `INSERT INTO payments (id, ride_id, phone, amount, checkout_request_id, merchant_request_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getPaymentByIDQuery = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	getLatestPaymentByRideQuery = `SELECT ` + paymentColumns + ` FROM payments
WHERE ride_id = $1
ORDER BY created_at DESC
LIMIT 1`

	// The row lock plus the PENDING filter make concurrent deliveries of the same
	// callback serialize; the loser finds no PENDING row after the winner commits.
	resolvePendingPaymentQuery = `WITH target AS (
	SELECT id FROM payments
	WHERE (checkout_request_id = NULLIF($1, '') OR merchant_request_id = NULLIF($2, ''))
	  AND status = 'PENDING'
	ORDER BY created_at DESC
	LIMIT 1
	FOR UPDATE
)
UPDATE payments p
SET status = $3,
	result_code = $4,
	result_desc = $5,
	mpesa_receipt_number = NULLIF($6, ''),
	raw_callback_payload = $7,
	resolved_at = NOW()
FROM target
WHERE p.id = target.id AND p.status = 'PENDING'
RETURNING p.id, p.ride_id, p.phone, p.amount, p.checkout_request_id, p.merchant_request_id,
	p.result_code, p.result_desc, p.mpesa_receipt_number, p.status, p.created_at, p.resolved_at`

	findPaymentByKeysQuery = `SELECT ` + paymentColumns + ` FROM payments
WHERE checkout_request_id = NULLIF($1, '') OR merchant_request_id = NULLIF($2, '')
ORDER BY created_at DESC
LIMIT 1`

	updateRidePaymentStatusQuery = `UPDATE rides SET payment_status = $1 WHERE ride_id = $2`
)

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, insertPaymentQuery,
		payment.ID,
		payment.RideID,
		payment.Phone,
		payment.Amount,
		nullString(payment.CheckoutRequestID),
		nullString(payment.MerchantRequestID),
		string(payment.Status),
		payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	// A malformed id can never match; report it as not found instead of a driver error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, interfaces.ErrNotFound
	}

	payment, err := scanPayment(r.db.QueryRowContext(ctx, getPaymentByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) GetLatestByRideID(ctx context.Context, rideID int64) (*models.Payment, error) {
	payment, err := scanPayment(r.db.QueryRowContext(ctx, getLatestPaymentByRideQuery, rideID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest payment for ride: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) ResolvePayment(ctx context.Context, params *models.ResolvePaymentParams) (*models.Resolution, error) {
	var resolution *models.Resolution

	err := database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		payment, err := scanPayment(tx.QueryRowContext(ctx, resolvePendingPaymentQuery,
			params.CheckoutRequestID,
			params.MerchantRequestID,
			string(params.Status),
			params.ResultCode,
			params.ResultDesc,
			params.MpesaReceiptNumber,
			rawPayload(params.RawPayload),
		))
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, updateRidePaymentStatusQuery, string(payment.Status), payment.RideID); err != nil {
				return fmt.Errorf("failed to update ride payment status: %w", err)
			}
			resolution = &models.Resolution{Outcome: models.ResolutionApplied, Payment: payment}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to resolve payment: %w", err)
		}

		existing, err := scanPayment(tx.QueryRowContext(ctx, findPaymentByKeysQuery,
			params.CheckoutRequestID,
			params.MerchantRequestID,
		))
		switch {
		case err == nil:
			resolution = &models.Resolution{Outcome: models.ResolutionDuplicate, Payment: existing}
		case errors.Is(err, sql.ErrNoRows):
			resolution = &models.Resolution{Outcome: models.ResolutionUnresolvable}
		default:
			return fmt.Errorf("failed to look up payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resolution, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		payment    models.Payment
		status     string
		checkoutID sql.NullString
		merchantID sql.NullString
		resultCode sql.NullInt64
		resultDesc sql.NullString
		receipt    sql.NullString
		resolvedAt sql.NullTime
	)

	err := row.Scan(
		&payment.ID,
		&payment.RideID,
		&payment.Phone,
		&payment.Amount,
		&checkoutID,
		&merchantID,
		&resultCode,
		&resultDesc,
		&receipt,
		&status,
		&payment.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatus(status)
	payment.CheckoutRequestID = stringPtr(checkoutID)
	payment.MerchantRequestID = stringPtr(merchantID)
	payment.ResultDesc = stringPtr(resultDesc)
	payment.MpesaReceiptNumber = stringPtr(receipt)
	if resultCode.Valid {
		code := int(resultCode.Int64)
		payment.ResultCode = &code
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		payment.ResolvedAt = &t
	}

	return &payment, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func rawPayload(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
