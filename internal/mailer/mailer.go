// Package mailer provides the default auth.Mailer. Actual email delivery is
// an external concern; this implementation records the send in the log so
// local environments can complete the OTP flow.
package mailer

import (
	"github.com/rs/zerolog/log"

	"github.com/vendhub/marketplace/internal/auth"
)

type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) SendOTP(email, code string, otpType auth.OtpType) error {
	log.Info().Str("email", email).Str("otp_type", string(otpType)).Msg("mailer: OTP issued")
	return nil
}
