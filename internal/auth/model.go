package auth

import (
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleUser   Role = "USER"
	RoleVendor Role = "VENDOR"
	RoleAdmin  Role = "ADMIN"
)

type AccountStatus string

const (
	StatusPending  AccountStatus = "PENDING"
	StatusApproved AccountStatus = "APPROVED"
	StatusRejected AccountStatus = "REJECTED"
)

type OtpType string

const (
	OtpVerifyEmail   OtpType = "VERIFY_EMAIL"
	OtpResetPassword OtpType = "RESET_PASSWORD"
)

type Auth struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	Email        string        `json:"email" db:"email"`
	PasswordHash string        `json:"-" db:"password_hash"`
	Role         Role          `json:"role" db:"role"`
	Status       AccountStatus `json:"status" db:"status"`
	IsVerified   bool          `json:"is_verified" db:"is_verified"`
	IsDeleted    bool          `json:"-" db:"is_deleted"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// TokenSigner issues and verifies opaque authentication tokens. Signing
// mechanics live outside this package.
type TokenSigner interface {
	Sign(authID uuid.UUID, role Role) (string, error)
	Verify(token string) (uuid.UUID, Role, error)
}

// Mailer delivers OTP codes out of band.
type Mailer interface {
	SendOTP(email, code string, otpType OtpType) error
}
