package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vendhub/marketplace/internal/auth"
	"github.com/vendhub/marketplace/internal/order"
	"github.com/vendhub/marketplace/internal/payment"
	"github.com/vendhub/marketplace/internal/paystack"
	"github.com/vendhub/marketplace/internal/product"
	"github.com/vendhub/marketplace/internal/user"
	"github.com/vendhub/marketplace/internal/vendor"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// mapErrorToStatusCode translates domain sentinels into transport codes.
// Not-found deliberately covers out-of-scope entities as well, so callers
// cannot probe for existence.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, vendor.ErrVendorNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrProductUnavailable),
		errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrMultipleVendors),
		errors.Is(err, payment.ErrOrderNotPayable),
		errors.Is(err, payment.ErrVerificationFailed),
		errors.Is(err, payment.ErrBankDetailsMissing),
		errors.Is(err, payment.ErrNoRecipientCode),
		errors.Is(err, auth.ErrOtpInvalid):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrTransitionNotAllowed),
		errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, paystack.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("handler: internal error")
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}
