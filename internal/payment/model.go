package payment

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPaid     Status = "PAID"
	StatusRefunded Status = "REFUNDED"
)

type TransferStatus string

const (
	TransferProcessing TransferStatus = "PROCESSING"
	TransferCompleted  TransferStatus = "COMPLETED"
	TransferFailed     TransferStatus = "FAILED"
)

type Type string

const (
	TypeCharge Type = "CHARGE"
	TypeRefund Type = "REFUND"
)

// Payment is one vendor's share of a settled order. Reference is unique:
// it is derived as <gatewayReference>_<vendorID>, which both distinguishes
// vendors sharing one order-level reference and deduplicates repeated
// webhook deliveries.
type Payment struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	OrderID           uuid.UUID      `json:"order_id" db:"order_id"`
	VendorID          uuid.UUID      `json:"vendor_id" db:"vendor_id"`
	Amount            float64        `json:"amount" db:"amount"`
	PlatformFee       float64        `json:"platform_fee" db:"platform_fee"`
	VendorAmount      float64        `json:"vendor_amount" db:"vendor_amount"`
	Status            Status         `json:"status" db:"status"`
	TransferStatus    TransferStatus `json:"transfer_status,omitempty" db:"transfer_status"`
	Type              Type           `json:"type" db:"type"`
	Reference         string         `json:"reference" db:"reference"`
	TransferReference string         `json:"transfer_reference,omitempty" db:"transfer_reference"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// InitializeResult is returned to the caller so the client can be redirected
// to the gateway's checkout page.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// WebhookEvent is the gateway's webhook payload shape.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}
