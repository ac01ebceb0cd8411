package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendhub/marketplace/internal/order"
	"github.com/vendhub/marketplace/internal/payment"
	"github.com/vendhub/marketplace/internal/paystack"
)

type mockPaymentService struct {
	handleWebhookFunc func(ctx context.Context, rawBody []byte, signature string) error
	refundFunc        func(ctx context.Context, paymentID uuid.UUID, amount *float64) (string, error)
}

func (m *mockPaymentService) Initialize(ctx context.Context, userID, orderID uuid.UUID, email, callbackURL string) (*payment.InitializeResult, error) {
	return nil, nil
}

func (m *mockPaymentService) Verify(ctx context.Context, reference string) (*order.Order, error) {
	return nil, nil
}

func (m *mockPaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, error) {
	return nil, nil
}

func (m *mockPaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	return m.handleWebhookFunc(ctx, rawBody, signature)
}

func (m *mockPaymentService) Refund(ctx context.Context, paymentID uuid.UUID, amount *float64) (string, error) {
	return m.refundFunc(ctx, paymentID, amount)
}

func (m *mockPaymentService) RegisterTransferRecipient(ctx context.Context, vendorID uuid.UUID, bankCode string) (string, error) {
	return "", nil
}

func (m *mockPaymentService) InitiateTransfer(ctx context.Context, paymentID uuid.UUID) (string, error) {
	return "", nil
}

func (m *mockPaymentService) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	return nil, nil
}

func TestPaymentHandler_Webhook(t *testing.T) {
	tests := []struct {
		name       string
		handleErr  error
		wantStatus int
	}{
		{name: "processed", handleErr: nil, wantStatus: http.StatusOK},
		{name: "bad signature", handleErr: payment.ErrInvalidSignature, wantStatus: http.StatusForbidden},
		// Internal failures still answer 200 so the gateway does not retry
		// forever against a broken backend.
		{name: "processing failure", handleErr: assert.AnError, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody []byte
			var gotSignature string
			svc := &mockPaymentService{
				handleWebhookFunc: func(ctx context.Context, rawBody []byte, signature string) error {
					gotBody = rawBody
					gotSignature = signature
					return tt.handleErr
				},
			}
			h := NewPaymentHandler(svc, validator.New())

			body := `{"event":"charge.success","data":{"reference":"order_ref_1"}}`
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
			req.Header.Set("X-Paystack-Signature", "sig-value")
			rec := httptest.NewRecorder()

			h.Webhook(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, body, string(gotBody), "the raw body must reach the service unmodified")
			assert.Equal(t, "sig-value", gotSignature)
		})
	}
}

func TestPaymentHandler_Refund(t *testing.T) {
	paymentID, err := uuid.NewV4()
	require.NoError(t, err)

	t.Run("bad body", func(t *testing.T) {
		h := NewPaymentHandler(&mockPaymentService{}, validator.New())

		req := httptest.NewRequest(http.MethodPost, "/payments/refund", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.Refund(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("already refunded", func(t *testing.T) {
		svc := &mockPaymentService{
			refundFunc: func(ctx context.Context, id uuid.UUID, amount *float64) (string, error) {
				return "", payment.ErrPaymentNotFound
			},
		}
		h := NewPaymentHandler(svc, validator.New())

		req := httptest.NewRequest(http.MethodPost, "/payments/refund",
			strings.NewReader(`{"payment_id":"`+paymentID.String()+`"}`))
		rec := httptest.NewRecorder()
		h.Refund(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		svc := &mockPaymentService{
			refundFunc: func(ctx context.Context, id uuid.UUID, amount *float64) (string, error) {
				assert.Equal(t, paymentID, id)
				assert.Nil(t, amount)
				return "refund_ref_1", nil
			},
		}
		h := NewPaymentHandler(svc, validator.New())

		req := httptest.NewRequest(http.MethodPost, "/payments/refund",
			strings.NewReader(`{"payment_id":"`+paymentID.String()+`"}`))
		rec := httptest.NewRecorder()
		h.Refund(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "refund_ref_1")
	})
}
