package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

// eligibleFilter restricts products to those a customer may actually buy:
// not soft-deleted, approved live category, approved verified live vendor.
const eligibleFilter = `
	p.is_deleted = FALSE
	AND c.status = 'APPROVED' AND c.is_deleted = FALSE
	AND a.status = 'APPROVED' AND a.is_verified = TRUE AND a.is_deleted = FALSE
`

type Repository interface {
	GetEligibleByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	GetEligibleByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// GetByIDs skips the eligibility filter. Historical order lines must keep
	// their product detail after soft-deletion or vendor demotion.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetEligibleByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	query := `
		SELECT p.id, p.vendor_id, p.category_id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		JOIN vendors v ON v.id = p.vendor_id
		JOIN auths a ON a.id = v.auth_id
		WHERE p.id = ANY($1) AND ` + eligibleFilter

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query eligible products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *postgresRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.vendor_id, p.category_id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at
		FROM products p
		WHERE p.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *postgresRepository) GetEligibleByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	products, err := r.GetEligibleByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}
	return &products[0], nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := []string{eligibleFilter}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		where = append(where, "p.name ILIKE "+arg("%"+filter.Search+"%"))
	}
	if filter.CategoryID != uuid.Nil {
		where = append(where, "p.category_id = "+arg(filter.CategoryID))
	}
	if filter.VendorID != uuid.Nil {
		where = append(where, "p.vendor_id = "+arg(filter.VendorID))
	}
	if filter.MinPrice != nil {
		where = append(where, "p.price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		where = append(where, "p.price <= "+arg(*filter.MaxPrice))
	}

	base := `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		JOIN vendors v ON v.id = p.vendor_id
		JOIN auths a ON a.id = v.auth_id
		WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count products: %w", err)
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
		SELECT p.id, p.vendor_id, p.category_id, p.name, p.description, p.price, p.stock, p.created_at, p.updated_at ` +
		base + `
		ORDER BY p.created_at DESC
		LIMIT ` + arg(limit) + ` OFFSET ` + arg((page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		err := rows.Scan(
			&p.ID,
			&p.VendorID,
			&p.CategoryID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}
	return products, nil
}
