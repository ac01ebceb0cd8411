package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vendhub/marketplace/internal/payment"
)

// signatureHeader carries the gateway's HMAC over the raw webhook body.
const signatureHeader = "X-Paystack-Signature"

type PaymentHandler struct {
	svc      payment.Service
	validate *validator.Validate
}

func NewPaymentHandler(svc payment.Service, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{svc: svc, validate: validate}
}

type initializePaymentRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	CallbackURL string    `json:"callback_url" validate:"required,url"`
}

func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req initializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Initialize(r.Context(), identity.UserID, req.OrderID, identity.Email, req.CallbackURL)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		respondWithError(w, http.StatusBadRequest, "reference is required")
		return
	}

	o, err := h.svc.Verify(r.Context(), reference)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	p, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"payment": p})
}

// Webhook receives gateway callbacks. Anything past the signature check
// answers 200 so the gateway does not amplify internal problems into retry
// storms; failures are logged instead.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	err = h.svc.HandleWebhook(r.Context(), rawBody, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			respondWithError(w, http.StatusForbidden, "invalid signature")
			return
		}
		log.Error().Err(err).Msg("handler: webhook processing failed")
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "webhook processed"})
}

type refundRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Amount    *float64  `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reference, err := h.svc.Refund(r.Context(), req.PaymentID, req.Amount)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "refund_reference": reference})
}

type transferRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
}

func (h *PaymentHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reference, err := h.svc.InitiateTransfer(r.Context(), req.PaymentID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"transfer_reference": reference})
}

func (h *PaymentHandler) Banks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.svc.ListBanks(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"banks": banks})
}
