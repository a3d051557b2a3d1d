package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tripmarket-pricing/internal/domain/settlement"
)

const (
	insertTransactionSQL = `INSERT INTO partner_transactions (id, partner_id, booking_id,
		transaction_amount, stripe_fee, platform_fee, partner_amount, fee_percentage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (booking_id) DO NOTHING`

	findTransactionByBookingSQL = `SELECT id, partner_id, booking_id,
		transaction_amount, stripe_fee, platform_fee, partner_amount, fee_percentage, created_at
		FROM partner_transactions WHERE booking_id = $1`
)

var _ settlement.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements settlement.TransactionRepository backed by PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository returns a TransactionRepository that uses the given pool.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts tx unless the booking was already settled. The unique
// booking_id constraint makes concurrent settlements of one booking safe.
func (r *TransactionRepository) Create(ctx context.Context, tx *settlement.Transaction) (bool, error) {
	tag, err := r.pool.Exec(ctx, insertTransactionSQL,
		tx.ID, tx.PartnerID, tx.BookingID,
		tx.Fees.TransactionAmount, tx.Fees.StripeFee, tx.Fees.PlatformFee, tx.Fees.PartnerAmount,
		tx.FeePercentage, tx.CreatedAt,
	)
	if err != nil {
		return false, errors.Wrapf(err, "insert transaction for booking %s", tx.BookingID)
	}
	return tag.RowsAffected() == 1, nil
}

// FindByBooking returns the settlement recorded for bookingID.
func (r *TransactionRepository) FindByBooking(ctx context.Context, bookingID string) (*settlement.Transaction, error) {
	rows, err := r.pool.Query(ctx, findTransactionByBookingSQL, bookingID)
	if err != nil {
		return nil, errors.Wrapf(err, "find transaction for booking %s", bookingID)
	}

	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settlement.ErrTransactionNotFound
		}
		return nil, errors.Wrapf(err, "find transaction for booking %s", bookingID)
	}
	return &tx, nil
}

func scanTransaction(row pgx.CollectableRow) (settlement.Transaction, error) {
	var tx settlement.Transaction
	err := row.Scan(
		&tx.ID, &tx.PartnerID, &tx.BookingID,
		&tx.Fees.TransactionAmount, &tx.Fees.StripeFee, &tx.Fees.PlatformFee, &tx.Fees.PartnerAmount,
		&tx.FeePercentage, &tx.CreatedAt,
	)
	return tx, err
}
