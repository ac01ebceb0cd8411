package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Service interface {
	Register(ctx context.Context, email, password string, role Role) (string, error)
	Login(ctx context.Context, email, password string) (string, *Auth, error)
	VerifyOTP(ctx context.Context, email, code string, otpType OtpType) error
	ResendOTP(ctx context.Context, email string, otpType OtpType) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type service struct {
	repo   Repository
	otp    OtpStore
	signer TokenSigner
	mailer Mailer
}

func NewService(repo Repository, otp OtpStore, signer TokenSigner, mailer Mailer) Service {
	return &service{repo: repo, otp: otp, signer: signer, mailer: mailer}
}

func (s *service) Register(ctx context.Context, email, password string, role Role) (string, error) {
	if password == "" {
		return "", ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("service: failed to hash password: %w", err)
	}

	a := &Auth{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       StatusPending,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return "", ErrEmailExists
		}
		log.Error().Err(err).Str("email", email).Msg("service: failed to create account")
		return "", fmt.Errorf("service: failed to create account: %w", err)
	}

	if _, err := s.repo.ProvisionProfile(ctx, a); err != nil {
		return "", fmt.Errorf("service: failed to provision profile: %w", err)
	}

	s.issueOTP(ctx, a, OtpVerifyEmail)

	token, err := s.signer.Sign(a.ID, a.Role)
	if err != nil {
		return "", fmt.Errorf("service: failed to sign token: %w", err)
	}

	log.Info().Stringer("auth_id", a.ID).Str("role", string(a.Role)).Msg("service: account registered")
	return token, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *Auth, error) {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("service: failed to fetch account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.signer.Sign(a.ID, a.Role)
	if err != nil {
		return "", nil, fmt.Errorf("service: failed to sign token: %w", err)
	}

	// Unverified accounts get a fresh code and no profile payload.
	if !a.IsVerified {
		s.issueOTP(ctx, a, OtpVerifyEmail)
		return token, nil, nil
	}

	return token, a, nil
}

func (s *service) VerifyOTP(ctx context.Context, email, code string, otpType OtpType) error {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("service: failed to fetch account: %w", err)
	}

	if err := s.otp.Check(ctx, a.ID, otpType, code); err != nil {
		return err
	}

	if otpType == OtpVerifyEmail {
		if err := s.repo.MarkVerified(ctx, a.ID); err != nil {
			return fmt.Errorf("service: failed to mark account verified: %w", err)
		}
		log.Info().Stringer("auth_id", a.ID).Msg("service: account verified")
	}
	return nil
}

func (s *service) ResendOTP(ctx context.Context, email string, otpType OtpType) error {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("service: failed to fetch account: %w", err)
	}

	s.issueOTP(ctx, a, otpType)
	return nil
}

// ResetPassword consumes a RESET_PASSWORD code and replaces the account
// password. Unknown emails read as an invalid code, same as VerifyOTP.
func (s *service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidCredentials
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("service: failed to fetch account: %w", err)
	}

	if err := s.otp.Check(ctx, a.ID, OtpResetPassword, code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("service: failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, a.ID, string(hash)); err != nil {
		return fmt.Errorf("service: failed to update password: %w", err)
	}

	log.Info().Stringer("auth_id", a.ID).Msg("service: password reset")
	return nil
}

// issueOTP generates, stores and sends a code. Delivery problems are logged
// rather than surfaced; the account flow should not fail on a mail hiccup.
func (s *service) issueOTP(ctx context.Context, a *Auth, otpType OtpType) {
	code, err := s.otp.Issue(ctx, a.ID, otpType)
	if err != nil {
		log.Error().Err(err).Stringer("auth_id", a.ID).Msg("service: failed to issue OTP")
		return
	}
	if err := s.mailer.SendOTP(a.Email, code, otpType); err != nil {
		log.Error().Err(err).Stringer("auth_id", a.ID).Msg("service: failed to send OTP")
	}
}
