package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

const (
	TypeOrderCreated       = "OrderCreated"
	TypeOrderStatusChanged = "OrderStatusChanged"
	TypePaymentSettled     = "PaymentSettled"
	TypePaymentRefunded    = "PaymentRefunded"
	TypeTransferUpdated    = "TransferUpdated"
)

// Envelope wraps every published domain event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	TotalPrice float64   `json:"total_price"`
}

type OrderStatusChangedPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
}

type PaymentSettledPayload struct {
	OrderID   uuid.UUID   `json:"order_id"`
	Reference string      `json:"reference"`
	VendorIDs []uuid.UUID `json:"vendor_ids"`
	Amount    float64     `json:"amount"`
}

type PaymentRefundedPayload struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Amount    float64   `json:"amount"`
}

type TransferUpdatedPayload struct {
	PaymentID         uuid.UUID `json:"payment_id"`
	TransferReference string    `json:"transfer_reference"`
	TransferStatus    string    `json:"transfer_status"`
}

// Publisher emits domain events. Implementations must not block request
// handling; delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, eventType string, key string, payload any)
}

// NopPublisher discards all events. Used in tests and when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, key string, payload any) {}
