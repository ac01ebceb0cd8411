// Package token implements a minimal HMAC-signed bearer token. It exists to
// satisfy the auth.TokenSigner capability without pulling in a full JWT
// implementation.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vendhub/marketplace/internal/auth"
)

var ErrInvalidToken = errors.New("invalid token")

type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) Sign(authID uuid.UUID, role auth.Role) (string, error) {
	expiry := time.Now().Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s|%s|%d", authID, role, expiry)
	sig := s.signature(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + sig, nil
}

func (s *Signer) Verify(token string) (uuid.UUID, auth.Role, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return uuid.Nil, "", ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	payload := string(raw)

	if !hmac.Equal([]byte(s.signature(payload)), []byte(sig)) {
		return uuid.Nil, "", ErrInvalidToken
	}

	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return uuid.Nil, "", ErrInvalidToken
	}

	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		return uuid.Nil, "", ErrInvalidToken
	}

	authID, err := uuid.FromString(parts[0])
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}

	return authID, auth.Role(parts[1]), nil
}

func (s *Signer) signature(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
