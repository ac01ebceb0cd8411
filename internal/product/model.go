package product

import (
	"time"

	"github.com/gofrs/uuid"
)

type CategoryStatus string

const (
	CategoryPending  CategoryStatus = "PENDING"
	CategoryApproved CategoryStatus = "APPROVED"
	CategoryRejected CategoryStatus = "REJECTED"
)

type Category struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Status    CategoryStatus `json:"status" db:"status"`
	IsDeleted bool           `json:"-" db:"is_deleted"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	VendorID    uuid.UUID `json:"vendor_id" db:"vendor_id"`
	CategoryID  uuid.UUID `json:"category_id" db:"category_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	IsDeleted   bool      `json:"-" db:"is_deleted"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	Category *Category `json:"category,omitempty" db:"-"`
}

// ListFilter narrows the public catalog listing. Zero values mean "no filter".
type ListFilter struct {
	Search     string
	CategoryID uuid.UUID
	VendorID   uuid.UUID
	MinPrice   *float64
	MaxPrice   *float64
	Page       int
	Limit      int
}
