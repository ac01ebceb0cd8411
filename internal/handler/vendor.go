package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vendhub/marketplace/internal/payment"
	"github.com/vendhub/marketplace/internal/vendor"
)

type VendorHandler struct {
	vendors  vendor.Repository
	payments payment.Service
	validate *validator.Validate
}

func NewVendorHandler(vendors vendor.Repository, payments payment.Service, validate *validator.Validate) *VendorHandler {
	return &VendorHandler{vendors: vendors, payments: payments, validate: validate}
}

type updateBankRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	BankCode      string `json:"bank_code" validate:"required"`
}

// UpdateBank stores the vendor's payout details and registers them with the
// gateway as a transfer recipient.
func (h *VendorHandler) UpdateBank(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.vendors.UpdateBankDetails(r.Context(), identity.VendorID, vendor.BankDetails{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankCode:      req.BankCode,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	if _, err := h.payments.RegisterTransferRecipient(r.Context(), v.ID, req.BankCode); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"vendor": v})
}

func (h *VendorHandler) GetBank(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	v, err := h.vendors.GetByID(r.Context(), identity.VendorID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"bank_name":      v.BankName,
		"account_number": v.AccountNumber,
		"account_name":   v.AccountName,
	})
}
