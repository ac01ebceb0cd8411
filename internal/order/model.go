package order

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/vendhub/marketplace/internal/product"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusProcessing Status = "PROCESSING"
	StatusInTransit  Status = "IN_TRANSIT"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRejected   Status = "REJECTED"
	StatusReturned   Status = "RETURNED"
)

func (s Status) String() string {
	return string(s)
}

// RestoresStock reports whether moving an order into this status puts the
// reserved quantities back on the shelf.
func (s Status) RestoresStock() bool {
	return s == StatusCancelled || s == StatusRejected
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) String() string {
	return string(s)
}

type Role string

const (
	RoleUser   Role = "USER"
	RoleVendor Role = "VENDOR"
	RoleAdmin  Role = "ADMIN"
)

// Actor identifies who is acting on an order. UserID is set for users,
// VendorID for vendors; admins carry neither.
type Actor struct {
	Role     Role
	UserID   uuid.UUID
	VendorID uuid.UUID
}

// allowedTargets is the per-role transition permission table. Users may only
// cancel their own orders, vendors approve or reject orders made entirely of
// their products, admins may set anything.
var allowedTargets = map[Role]map[Status]bool{
	RoleUser: {
		StatusCancelled: true,
	},
	RoleVendor: {
		StatusApproved: true,
		StatusRejected: true,
	},
	RoleAdmin: {
		StatusPending:    true,
		StatusApproved:   true,
		StatusProcessing: true,
		StatusInTransit:  true,
		StatusDelivered:  true,
		StatusCancelled:  true,
		StatusRejected:   true,
		StatusReturned:   true,
	},
}

type Line struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Price     float64   `json:"price" db:"price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Product *product.Product `json:"product,omitempty" db:"-"`
}

type Order struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	UserID           uuid.UUID     `json:"user_id" db:"user_id"`
	TotalPrice       float64       `json:"total_price" db:"total_price"`
	Status           Status        `json:"status" db:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentReference string        `json:"payment_reference,omitempty" db:"payment_reference"`
	Lines            []Line        `json:"lines" db:"-"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// ItemInput is one requested product-quantity pair for order creation.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

type ListFilter struct {
	Status   Status
	MinTotal *float64
	MaxTotal *float64
	Sort     string // LATEST or OLDEST
	Page     int
	Limit    int
}
