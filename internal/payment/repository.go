package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Repository interface {
	// SettleOrder persists the per-vendor payment rows and flips the order
	// to PAID/APPROVED in one transaction. Rows whose reference already
	// exists are skipped, so re-delivered webhooks settle at most once.
	SettleOrder(ctx context.Context, orderID uuid.UUID, payments []Payment) (created int, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// GetPaidByID only returns payments still in PAID status; refund
	// eligibility is a query filter, not a caller-side check.
	GetPaidByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByTransferReference(ctx context.Context, reference string) (*Payment, error)
	// MarkRefunded reverses one payment and its order in one transaction.
	MarkRefunded(ctx context.Context, paymentID, orderID uuid.UUID) error
	SetTransferInitiated(ctx context.Context, paymentID uuid.UUID, transferReference string) error
	SetTransferStatus(ctx context.Context, transferReference string, status TransferStatus) error
	// VendorsForProducts maps product IDs to their owning vendor without any
	// eligibility filtering; settlement must work even if a product was
	// soft-deleted after purchase.
	VendorsForProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const paymentColumns = `id, order_id, vendor_id, amount, platform_fee, vendor_amount, status, transfer_status, type, reference, transfer_reference, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.VendorID,
		&p.Amount,
		&p.PlatformFee,
		&p.VendorAmount,
		&p.Status,
		&p.TransferStatus,
		&p.Type,
		&p.Reference,
		&p.TransferReference,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan payment: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) SettleOrder(ctx context.Context, orderID uuid.UUID, payments []Payment) (created int, err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback settlement")
			}
		}
	}()

	now := time.Now().UTC()
	for i := range payments {
		p := &payments[i]

		if p.ID == uuid.Nil {
			genID, genErr := uuid.NewV4()
			if genErr != nil {
				err = fmt.Errorf("repository: failed to generate payment ID: %w", genErr)
				return 0, err
			}
			p.ID = genID
		}
		p.CreatedAt = now
		p.UpdatedAt = now

		cmdTag, execErr := tx.Exec(ctx, `
			INSERT INTO payments (id, order_id, vendor_id, amount, platform_fee, vendor_amount, status, transfer_status, type, reference, transfer_reference, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (reference) DO NOTHING
		`,
			p.ID,
			p.OrderID,
			p.VendorID,
			p.Amount,
			p.PlatformFee,
			p.VendorAmount,
			string(p.Status),
			string(p.TransferStatus),
			string(p.Type),
			p.Reference,
			p.TransferReference,
			p.CreatedAt,
			p.UpdatedAt,
		)
		if execErr != nil {
			err = fmt.Errorf("repository: failed to insert payment %s: %w", p.Reference, execErr)
			return 0, err
		}
		created += int(cmdTag.RowsAffected())
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET payment_status = 'PAID', status = 'APPROVED', updated_at = $1 WHERE id = $2
	`, now, orderID)
	if err != nil {
		err = fmt.Errorf("repository: failed to mark order %s paid: %w", orderID, err)
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repository: failed to commit settlement: %w", err)
	}
	return created, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *postgresRepository) GetPaidByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND status = 'PAID'`, id)
	return scanPayment(row)
}

func (r *postgresRepository) GetByTransferReference(ctx context.Context, reference string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transfer_reference = $1`, reference)
	return scanPayment(row)
}

func (r *postgresRepository) MarkRefunded(ctx context.Context, paymentID, orderID uuid.UUID) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("payment_id", paymentID).Msg("repository: failed to rollback refund")
			}
		}
	}()

	now := time.Now().UTC()

	// The status filter makes a second refund of the same payment a no-op
	// that surfaces as not found.
	cmdTag, execErr := tx.Exec(ctx, `
		UPDATE payments SET status = 'REFUNDED', type = 'REFUND', updated_at = $1
		WHERE id = $2 AND status = 'PAID'
	`, now, paymentID)
	if execErr != nil {
		err = fmt.Errorf("repository: failed to mark payment %s refunded: %w", paymentID, execErr)
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		err = ErrPaymentNotFound
		return err
	}

	_, execErr = tx.Exec(ctx, `
		UPDATE orders SET payment_status = 'REFUNDED', status = 'RETURNED', updated_at = $1 WHERE id = $2
	`, now, orderID)
	if execErr != nil {
		err = fmt.Errorf("repository: failed to mark order %s returned: %w", orderID, execErr)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit refund: %w", err)
	}
	return nil
}

func (r *postgresRepository) SetTransferInitiated(ctx context.Context, paymentID uuid.UUID, transferReference string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE payments SET transfer_reference = $1, transfer_status = 'PROCESSING', updated_at = $2 WHERE id = $3
	`, transferReference, time.Now().UTC(), paymentID)
	if err != nil {
		return fmt.Errorf("repository: failed to set transfer reference for payment %s: %w", paymentID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *postgresRepository) SetTransferStatus(ctx context.Context, transferReference string, status TransferStatus) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE payments SET transfer_status = $1, updated_at = $2 WHERE transfer_reference = $3
	`, string(status), time.Now().UTC(), transferReference)
	if err != nil {
		return fmt.Errorf("repository: failed to set transfer status for reference %s: %w", transferReference, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *postgresRepository) VendorsForProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id, vendor_id FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query product vendors: %w", err)
	}
	defer rows.Close()

	vendors := make(map[uuid.UUID]uuid.UUID, len(productIDs))
	for rows.Next() {
		var productID, vendorID uuid.UUID
		if err := rows.Scan(&productID, &vendorID); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product vendor: %w", err)
		}
		vendors[productID] = vendorID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating product vendors: %w", err)
	}
	return vendors, nil
}
