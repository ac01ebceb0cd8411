package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound    = errors.New("account not found")
	ErrEmailExists = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, a *Auth) error
	GetByEmail(ctx context.Context, email string) (*Auth, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Auth, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// ProvisionProfile creates the role-specific profile row (users or
	// vendors) for a fresh account.
	ProvisionProfile(ctx context.Context, a *Auth) (uuid.UUID, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const authColumns = `id, email, password_hash, role, status, is_verified, is_deleted, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, a *Auth) error {
	if a.ID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate auth ID: %w", err)
		}
		a.ID = genID
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO auths (id, email, password_hash, role, status, is_verified, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		a.ID,
		a.Email,
		a.PasswordHash,
		string(a.Role),
		string(a.Status),
		a.IsVerified,
		a.IsDeleted,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert auth: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Auth, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+authColumns+` FROM auths WHERE email = $1 AND is_deleted = FALSE`, email)
	return scanAuth(row)
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Auth, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+authColumns+` FROM auths WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanAuth(row)
}

func scanAuth(row pgx.Row) (*Auth, error) {
	var a Auth
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Status,
		&a.IsVerified,
		&a.IsDeleted,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan auth: %w", err)
	}
	return &a, nil
}

func (r *postgresRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE auths SET is_verified = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to mark auth verified: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE auths SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update password: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ProvisionProfile(ctx context.Context, a *Auth) (uuid.UUID, error) {
	profileID, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate profile ID: %w", err)
	}

	now := time.Now().UTC()
	table := "users"
	if a.Role == RoleVendor {
		table = "vendors"
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, auth_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (auth_id) DO NOTHING
	`, table), profileID, a.ID, now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to provision %s profile: %w", table, err)
	}
	return profileID, nil
}
