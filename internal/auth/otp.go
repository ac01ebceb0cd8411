package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrOtpInvalid = errors.New("invalid or expired OTP code")

const otpTTL = 10 * time.Minute

// OtpStore keeps one live code per account and OTP type. Reissuing replaces
// the previous code; codes expire with the key.
type OtpStore interface {
	Issue(ctx context.Context, authID uuid.UUID, otpType OtpType) (string, error)
	Check(ctx context.Context, authID uuid.UUID, otpType OtpType, code string) error
}

type redisOtpStore struct {
	client *redis.Client
}

func NewOtpStore(client *redis.Client) OtpStore {
	return &redisOtpStore{client: client}
}

func otpKey(authID uuid.UUID, otpType OtpType) string {
	return fmt.Sprintf("otp:%s:%s", otpType, authID)
}

func (s *redisOtpStore) Issue(ctx context.Context, authID uuid.UUID, otpType OtpType) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("otp: failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	if err := s.client.Set(ctx, otpKey(authID, otpType), code, otpTTL).Err(); err != nil {
		return "", fmt.Errorf("otp: failed to store code: %w", err)
	}
	return code, nil
}

func (s *redisOtpStore) Check(ctx context.Context, authID uuid.UUID, otpType OtpType, code string) error {
	key := otpKey(authID, otpType)

	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("otp: failed to read code: %w", err)
	}
	if stored != code {
		return ErrOtpInvalid
	}

	// A code is single-use.
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("otp: failed to consume code: %w", err)
	}
	return nil
}
