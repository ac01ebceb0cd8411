package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetForActor(ctx context.Context, actor Actor, id uuid.UUID) (*Order, error)
	List(ctx context.Context, actor Actor, filter ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status Status) error
	// UpdateStatusRestoringStock moves the order to a stock-restoring status.
	// The terminal-status guard and the stock restoration run inside one
	// transaction; restored reports whether stock was actually put back.
	UpdateStatusRestoringStock(ctx context.Context, actor Actor, id uuid.UUID, status Status) (restored bool, err error)
	GetByPaymentReference(ctx context.Context, reference string) (*Order, error)
	SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// scopeClause restricts queries to orders the actor is allowed to see. Users
// see their own orders, vendors see orders made entirely of their products,
// admins see everything. The order id is always $1.
func scopeClause(actor Actor, args []any) (string, []any) {
	switch actor.Role {
	case RoleUser:
		args = append(args, actor.UserID)
		return fmt.Sprintf("o.user_id = $%d", len(args)), args
	case RoleVendor:
		args = append(args, actor.VendorID)
		return fmt.Sprintf(`NOT EXISTS (
			SELECT 1 FROM order_lines ol
			JOIN products p ON p.id = ol.product_id
			WHERE ol.order_id = o.id AND p.vendor_id <> $%d
		)`, len(args)), args
	default:
		return "TRUE", args
	}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = genID
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback order creation")
			}
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, total_price, status, payment_status, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		o.ID,
		o.UserID,
		o.TotalPrice,
		string(o.Status),
		string(o.PaymentStatus),
		o.PaymentReference,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Lines {
		line := &o.Lines[i]

		lineID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order line ID: %w", genErr)
		}
		line.ID = lineID
		line.OrderID = o.ID
		line.CreatedAt = now

		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines (id, order_id, product_id, price, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			line.ID,
			line.OrderID,
			line.ProductID,
			line.Price,
			line.Quantity,
			line.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order line for order %s: %w", o.ID, err)
		}

		// Relative decrement guarded by the current stock. A concurrent
		// order against the same product serializes on the row lock; losing
		// the race aborts the whole transaction.
		cmdTag, decErr := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3 AND stock >= $1
		`, line.Quantity, now, line.ProductID)
		if decErr != nil {
			err = fmt.Errorf("repository: failed to decrement stock for product %s: %w", line.ProductID, decErr)
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			err = ErrInsufficientStock
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit order creation: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.GetForActor(ctx, Actor{Role: RoleAdmin}, id)
}

func (r *postgresRepository) GetForActor(ctx context.Context, actor Actor, id uuid.UUID) (*Order, error) {
	args := []any{id}
	scope, args := scopeClause(actor, args)

	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.payment_status, o.payment_reference, o.created_at, o.updated_at
		FROM orders o
		WHERE o.id = $1 AND ` + scope

	var o Order
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&o.ID,
		&o.UserID,
		&o.TotalPrice,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentReference,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", id, err)
	}

	if err := r.attachLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) attachLines(ctx context.Context, o *Order) error {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.order_id, l.product_id, l.price, l.quantity, l.created_at
		FROM order_lines l
		WHERE l.order_id = $1
	`, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query order lines for order %s: %w", o.ID, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var line Line
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Price,
			&line.Quantity,
			&line.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to scan order line for order %s: %w", o.ID, err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating order lines for order %s: %w", o.ID, err)
	}

	o.Lines = lines
	return nil
}

func (r *postgresRepository) List(ctx context.Context, actor Actor, filter ListFilter) ([]Order, int, error) {
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := []string{}
	switch actor.Role {
	case RoleUser:
		where = append(where, "o.user_id = "+arg(actor.UserID))
	case RoleVendor:
		where = append(where, fmt.Sprintf(`NOT EXISTS (
			SELECT 1 FROM order_lines ol
			JOIN products p ON p.id = ol.product_id
			WHERE ol.order_id = o.id AND p.vendor_id <> %s
		)`, arg(actor.VendorID)))
	default:
		where = append(where, "TRUE")
	}

	if filter.Status != "" {
		where = append(where, "o.status = "+arg(string(filter.Status)))
	}
	if filter.MinTotal != nil {
		where = append(where, "o.total_price >= "+arg(*filter.MinTotal))
	}
	if filter.MaxTotal != nil {
		where = append(where, "o.total_price <= "+arg(*filter.MaxTotal))
	}

	base := ` FROM orders o WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	order := "DESC"
	if filter.Sort == "OLDEST" {
		order = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.payment_status, o.payment_reference, o.created_at, o.updated_at` +
		base + `
		ORDER BY o.created_at ` + order + `
		LIMIT ` + arg(limit) + ` OFFSET ` + arg((page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.TotalPrice,
			&o.Status,
			&o.PaymentStatus,
			&o.PaymentReference,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	for i := range orders {
		if err := r.attachLines(ctx, &orders[i]); err != nil {
			return nil, 0, err
		}
	}

	return orders, total, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status Status) error {
	args := []any{id}
	scope, args := scopeClause(actor, args)
	args = append(args, string(status), time.Now().UTC())

	query := fmt.Sprintf(`
		UPDATE orders o SET status = $%d, updated_at = $%d
		WHERE o.id = $1 AND %s
	`, len(args)-1, len(args), scope)

	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateStatusRestoringStock(ctx context.Context, actor Actor, id uuid.UUID, status Status) (restored bool, err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return false, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback status update")
			}
		}
	}()

	args := []any{id}
	scope, args := scopeClause(actor, args)
	args = append(args, string(status), time.Now().UTC())

	// The guard lives inside the transaction: the update only takes if the
	// stored status is not already a restored one, so concurrent
	// double-submissions cannot restore stock twice.
	guarded := fmt.Sprintf(`
		UPDATE orders o SET status = $%d, updated_at = $%d
		WHERE o.id = $1 AND %s AND o.status NOT IN ('CANCELLED', 'REJECTED')
	`, len(args)-1, len(args), scope)

	cmdTag, execErr := tx.Exec(ctx, guarded, args...)
	if execErr != nil {
		err = fmt.Errorf("repository: failed to update status for order %s: %w", id, execErr)
		return false, err
	}

	if cmdTag.RowsAffected() == 0 {
		// Either out of scope or already CANCELLED/REJECTED. Re-apply the
		// status without touching stock; zero rows here means not found.
		plain := fmt.Sprintf(`
			UPDATE orders o SET status = $%d, updated_at = $%d
			WHERE o.id = $1 AND %s
		`, len(args)-1, len(args), scope)

		cmdTag, execErr = tx.Exec(ctx, plain, args...)
		if execErr != nil {
			err = fmt.Errorf("repository: failed to update status for order %s: %w", id, execErr)
			return false, err
		}
		if cmdTag.RowsAffected() == 0 {
			err = ErrOrderNotFound
			return false, err
		}

		if err = tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("repository: failed to commit status update: %w", err)
		}
		return false, nil
	}

	rows, queryErr := tx.Query(ctx, `SELECT product_id, quantity FROM order_lines WHERE order_id = $1`, id)
	if queryErr != nil {
		err = fmt.Errorf("repository: failed to query lines for order %s: %w", id, queryErr)
		return false, err
	}

	type lineQty struct {
		productID uuid.UUID
		quantity  int
	}
	var lines []lineQty
	for rows.Next() {
		var l lineQty
		if scanErr := rows.Scan(&l.productID, &l.quantity); scanErr != nil {
			rows.Close()
			err = fmt.Errorf("repository: failed to scan line for order %s: %w", id, scanErr)
			return false, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return false, fmt.Errorf("repository: error iterating lines for order %s: %w", id, err)
	}

	now := time.Now().UTC()
	for _, l := range lines {
		if _, execErr := tx.Exec(ctx,
			`UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3`,
			l.quantity, now, l.productID,
		); execErr != nil {
			err = fmt.Errorf("repository: failed to restore stock for product %s: %w", l.productID, execErr)
			return false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("repository: failed to commit status update: %w", err)
	}
	return true, nil
}

func (r *postgresRepository) GetByPaymentReference(ctx context.Context, reference string) (*Order, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM orders WHERE payment_reference = $1`, reference,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by payment reference: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *postgresRepository) SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE orders SET payment_reference = $1, updated_at = $2 WHERE id = $3`,
		reference, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to set payment reference for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
