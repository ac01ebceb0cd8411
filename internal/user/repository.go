package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AuthID    uuid.UUID `json:"auth_id" db:"auth_id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Repository interface {
	GetByAuthID(ctx context.Context, authID uuid.UUID) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*User, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByAuthID(ctx context.Context, authID uuid.UUID) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		SELECT id, auth_id, name, phone, created_at, updated_at FROM users WHERE auth_id = $1
	`, authID).Scan(&u.ID, &u.AuthID, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by auth id: %w", err)
	}
	return &u, nil
}

func (r *postgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		UPDATE users SET name = $1, phone = $2, updated_at = $3 WHERE id = $4
		RETURNING id, auth_id, name, phone, created_at, updated_at
	`, name, phone, time.Now().UTC(), id).Scan(&u.ID, &u.AuthID, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to update user profile: %w", err)
	}
	return &u, nil
}
