package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vendhub/marketplace/internal/event"
	"github.com/vendhub/marketplace/internal/order"
	"github.com/vendhub/marketplace/internal/paystack"
	"github.com/vendhub/marketplace/internal/vendor"
)

var (
	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrBankDetailsMissing = errors.New("bank account details are required")
	ErrNoRecipientCode    = errors.New("vendor has no transfer recipient code")
)

// Gateway is the slice of the payment gateway the settlement engine needs.
// Implemented by paystack.Client.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
	CreateTransferRecipient(ctx context.Context, req paystack.RecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, req paystack.TransferRequest) (string, error)
	CreateRefund(ctx context.Context, req paystack.RefundRequest) (string, error)
	ListBanks(ctx context.Context, country string) ([]paystack.Bank, error)
}

// Config carries the settlement parameters. Injected at construction rather
// than read from ambient state.
type Config struct {
	PlatformFeePercentage float64
	WebhookSecret         string
	BankCountry           string
}

type Service interface {
	Initialize(ctx context.Context, userID, orderID uuid.UUID, email, callbackURL string) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*order.Order, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) error
	Refund(ctx context.Context, paymentID uuid.UUID, amount *float64) (string, error)
	RegisterTransferRecipient(ctx context.Context, vendorID uuid.UUID, bankCode string) (string, error)
	InitiateTransfer(ctx context.Context, paymentID uuid.UUID) (string, error)
	ListBanks(ctx context.Context) ([]paystack.Bank, error)
}

type service struct {
	repo      Repository
	orders    order.Repository
	vendors   vendor.Repository
	gateway   Gateway
	cfg       Config
	publisher event.Publisher
}

func NewService(repo Repository, orders order.Repository, vendors vendor.Repository, gateway Gateway, cfg Config, publisher event.Publisher) Service {
	return &service{
		repo:      repo,
		orders:    orders,
		vendors:   vendors,
		gateway:   gateway,
		cfg:       cfg,
		publisher: publisher,
	}
}

func (s *service) Initialize(ctx context.Context, userID, orderID uuid.UUID, email, callbackURL string) (*InitializeResult, error) {
	actor := order.Actor{Role: order.RoleUser, UserID: userID}
	o, err := s.orders.GetForActor(ctx, actor, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	if o.PaymentStatus != order.PaymentPending {
		return nil, ErrOrderNotPayable
	}

	reference := fmt.Sprintf("order_%s_%d", o.ID, time.Now().UnixMilli())

	resp, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Amount:      o.TotalPrice,
		Email:       email,
		Reference:   reference,
		CallbackURL: callbackURL,
		Metadata: map[string]string{
			"order_id": o.ID.String(),
			"user_id":  o.UserID.String(),
		},
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to initialize transaction")
		return nil, fmt.Errorf("service: failed to initialize transaction: %w", err)
	}

	// A retry before verification simply attaches a fresh reference; the
	// previous one is abandoned.
	if err := s.orders.SetPaymentReference(ctx, o.ID, resp.Reference); err != nil {
		return nil, fmt.Errorf("service: failed to store payment reference: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("reference", resp.Reference).Msg("service: payment initialized")

	return &InitializeResult{
		AuthorizationURL: resp.AuthorizationURL,
		Reference:        resp.Reference,
	}, nil
}

func (s *service) Verify(ctx context.Context, reference string) (*order.Order, error) {
	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("service: gateway verification call failed")
		return nil, fmt.Errorf("service: failed to verify transaction: %w", err)
	}
	if !tx.Success() {
		return nil, ErrVerificationFailed
	}

	o, err := s.orders.GetByPaymentReference(ctx, reference)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for reference %s: %w", reference, err)
	}

	productIDs := make([]uuid.UUID, 0, len(o.Lines))
	for _, line := range o.Lines {
		productIDs = append(productIDs, line.ProductID)
	}

	vendors, err := s.repo.VendorsForProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to resolve line vendors: %w", err)
	}

	shares := SplitByVendor(o.Lines, func(productID uuid.UUID) uuid.UUID {
		return vendors[productID]
	}, s.cfg.PlatformFeePercentage)

	payments := make([]Payment, 0, len(shares))
	vendorIDs := make([]uuid.UUID, 0, len(shares))
	for _, share := range shares {
		payments = append(payments, Payment{
			OrderID:      o.ID,
			VendorID:     share.VendorID,
			Amount:       share.Amount,
			PlatformFee:  share.PlatformFee,
			VendorAmount: share.VendorAmount,
			Status:       StatusPaid,
			Type:         TypeCharge,
			Reference:    fmt.Sprintf("%s_%s", reference, share.VendorID),
		})
		vendorIDs = append(vendorIDs, share.VendorID)
	}

	created, err := s.repo.SettleOrder(ctx, o.ID, payments)
	if err != nil {
		return nil, fmt.Errorf("service: failed to settle order %s: %w", o.ID, err)
	}
	if created == 0 {
		log.Info().Stringer("order_id", o.ID).Str("reference", reference).Msg("service: duplicate verification, order already settled")
	} else {
		log.Info().Stringer("order_id", o.ID).Str("reference", reference).Int("payments", created).Msg("service: order settled")
		s.publisher.Publish(ctx, event.TypePaymentSettled, o.ID.String(), event.PaymentSettledPayload{
			OrderID:   o.ID,
			Reference: reference,
			VendorIDs: vendorIDs,
			Amount:    o.TotalPrice,
		})
	}

	return s.orders.GetByID(ctx, o.ID)
}

func (s *service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch payment: %w", err)
	}
	return p, nil
}

// VerifySignature recomputes the HMAC-SHA512 of the raw webhook body and
// compares it in constant time against the signature header.
func (s *service) VerifySignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(s.cfg.WebhookSecret))
	mac.Write(rawBody)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(signature))
}

func (s *service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if !s.VerifySignature(rawBody, signature) {
		return ErrInvalidSignature
	}

	var evt WebhookEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return fmt.Errorf("service: failed to decode webhook payload: %w", err)
	}

	switch evt.Event {
	case "charge.success":
		if _, err := s.Verify(ctx, evt.Data.Reference); err != nil {
			return fmt.Errorf("service: webhook charge verification failed: %w", err)
		}
	case "transfer.success":
		return s.applyTransferStatus(ctx, evt.Data.Reference, TransferCompleted)
	case "transfer.failed":
		return s.applyTransferStatus(ctx, evt.Data.Reference, TransferFailed)
	default:
		log.Debug().Str("event", evt.Event).Msg("service: ignoring unhandled webhook event")
	}
	return nil
}

func (s *service) applyTransferStatus(ctx context.Context, transferReference string, status TransferStatus) error {
	p, err := s.repo.GetByTransferReference(ctx, transferReference)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			log.Warn().Str("transfer_reference", transferReference).Msg("service: transfer event for unknown payment")
			return nil
		}
		return fmt.Errorf("service: failed to fetch payment for transfer %s: %w", transferReference, err)
	}

	if err := s.repo.SetTransferStatus(ctx, transferReference, status); err != nil {
		return fmt.Errorf("service: failed to update transfer status: %w", err)
	}

	log.Info().Stringer("payment_id", p.ID).Str("transfer_reference", transferReference).Str("transfer_status", string(status)).Msg("service: transfer status updated")

	s.publisher.Publish(ctx, event.TypeTransferUpdated, p.ID.String(), event.TransferUpdatedPayload{
		PaymentID:         p.ID,
		TransferReference: transferReference,
		TransferStatus:    string(status),
	})
	return nil
}

func (s *service) Refund(ctx context.Context, paymentID uuid.UUID, amount *float64) (string, error) {
	p, err := s.repo.GetPaidByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return "", ErrPaymentNotFound
		}
		return "", fmt.Errorf("service: failed to fetch payment: %w", err)
	}

	refundAmount := p.Amount
	if amount != nil {
		refundAmount = *amount
	}

	refundReference, err := s.gateway.CreateRefund(ctx, paystack.RefundRequest{
		TransactionReference: p.Reference,
		Amount:               refundAmount,
	})
	if err != nil {
		log.Error().Err(err).Stringer("payment_id", p.ID).Msg("service: gateway refund call failed")
		return "", fmt.Errorf("service: failed to process refund: %w", err)
	}

	// Stock is deliberately not restored here; returns are a separate
	// compensating flow from cancellations.
	if err := s.repo.MarkRefunded(ctx, p.ID, p.OrderID); err != nil {
		return "", fmt.Errorf("service: failed to record refund: %w", err)
	}

	log.Info().Stringer("payment_id", p.ID).Stringer("order_id", p.OrderID).Float64("amount", refundAmount).Msg("service: payment refunded")

	s.publisher.Publish(ctx, event.TypePaymentRefunded, p.ID.String(), event.PaymentRefundedPayload{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Amount:    refundAmount,
	})

	return refundReference, nil
}

func (s *service) RegisterTransferRecipient(ctx context.Context, vendorID uuid.UUID, bankCode string) (string, error) {
	v, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrVendorNotFound) {
			return "", vendor.ErrVendorNotFound
		}
		return "", fmt.Errorf("service: failed to fetch vendor: %w", err)
	}

	if v.AccountNumber == "" || v.AccountName == "" {
		return "", ErrBankDetailsMissing
	}

	code, err := s.gateway.CreateTransferRecipient(ctx, paystack.RecipientRequest{
		Name:          v.AccountName,
		AccountNumber: v.AccountNumber,
		BankCode:      bankCode,
	})
	if err != nil {
		log.Error().Err(err).Stringer("vendor_id", v.ID).Msg("service: gateway recipient call failed")
		return "", fmt.Errorf("service: failed to create transfer recipient: %w", err)
	}

	if err := s.vendors.SetRecipientCode(ctx, v.ID, code); err != nil {
		return "", fmt.Errorf("service: failed to store recipient code: %w", err)
	}

	log.Info().Stringer("vendor_id", v.ID).Msg("service: transfer recipient registered")
	return code, nil
}

func (s *service) InitiateTransfer(ctx context.Context, paymentID uuid.UUID) (string, error) {
	p, err := s.repo.GetPaidByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return "", ErrPaymentNotFound
		}
		return "", fmt.Errorf("service: failed to fetch payment: %w", err)
	}

	v, err := s.vendors.GetByID(ctx, p.VendorID)
	if err != nil {
		return "", fmt.Errorf("service: failed to fetch vendor: %w", err)
	}
	if v.RecipientCode == "" {
		return "", ErrNoRecipientCode
	}

	reference := fmt.Sprintf("transfer_%s_%d", p.ID, time.Now().UnixMilli())

	transferReference, err := s.gateway.InitiateTransfer(ctx, paystack.TransferRequest{
		Amount:    p.VendorAmount,
		Recipient: v.RecipientCode,
		Reason:    fmt.Sprintf("Payment for order %s", p.OrderID),
		Reference: reference,
	})
	if err != nil {
		log.Error().Err(err).Stringer("payment_id", p.ID).Msg("service: gateway transfer call failed")
		return "", fmt.Errorf("service: failed to initiate transfer: %w", err)
	}

	// Completion or failure arrives later through the webhook; here the
	// transfer only moves to PROCESSING.
	if err := s.repo.SetTransferInitiated(ctx, p.ID, transferReference); err != nil {
		return "", fmt.Errorf("service: failed to record transfer: %w", err)
	}

	log.Info().Stringer("payment_id", p.ID).Str("transfer_reference", transferReference).Msg("service: transfer initiated")
	return transferReference, nil
}

func (s *service) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	banks, err := s.gateway.ListBanks(ctx, s.cfg.BankCountry)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch banks: %w", err)
	}
	return banks, nil
}
