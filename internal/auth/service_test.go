package auth

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockRepository struct {
	createFunc           func(ctx context.Context, a *Auth) error
	getByEmailFunc       func(ctx context.Context, email string) (*Auth, error)
	markVerifiedFunc     func(ctx context.Context, id uuid.UUID) error
	updatePasswordFunc   func(ctx context.Context, id uuid.UUID, passwordHash string) error
	provisionProfileFunc func(ctx context.Context, a *Auth) (uuid.UUID, error)
}

func (m *mockRepository) Create(ctx context.Context, a *Auth) error {
	return m.createFunc(ctx, a)
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*Auth, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Auth, error) {
	return nil, ErrNotFound
}

func (m *mockRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return m.markVerifiedFunc(ctx, id)
}

func (m *mockRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.updatePasswordFunc(ctx, id, passwordHash)
}

func (m *mockRepository) ProvisionProfile(ctx context.Context, a *Auth) (uuid.UUID, error) {
	return m.provisionProfileFunc(ctx, a)
}

type mockOtpStore struct {
	issueFunc func(ctx context.Context, authID uuid.UUID, otpType OtpType) (string, error)
	checkFunc func(ctx context.Context, authID uuid.UUID, otpType OtpType, code string) error
}

func (m *mockOtpStore) Issue(ctx context.Context, authID uuid.UUID, otpType OtpType) (string, error) {
	return m.issueFunc(ctx, authID, otpType)
}

func (m *mockOtpStore) Check(ctx context.Context, authID uuid.UUID, otpType OtpType, code string) error {
	return m.checkFunc(ctx, authID, otpType, code)
}

type mockSigner struct{}

func (mockSigner) Sign(authID uuid.UUID, role Role) (string, error) {
	return "token-" + authID.String(), nil
}

func (mockSigner) Verify(token string) (uuid.UUID, Role, error) {
	return uuid.Nil, "", nil
}

type recordingMailer struct {
	sent []string
}

func (m *recordingMailer) SendOTP(email, code string, otpType OtpType) error {
	m.sent = append(m.sent, email)
	return nil
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestService_Register(t *testing.T) {
	t.Run("creates the account, profile and OTP", func(t *testing.T) {
		authID := mustUUID(t)
		var provisioned *Auth
		repo := &mockRepository{
			createFunc: func(ctx context.Context, a *Auth) error {
				a.ID = authID
				return nil
			},
			provisionProfileFunc: func(ctx context.Context, a *Auth) (uuid.UUID, error) {
				provisioned = a
				return mustUUID(t), nil
			},
		}
		otp := &mockOtpStore{
			issueFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType) (string, error) {
				assert.Equal(t, authID, id)
				assert.Equal(t, OtpVerifyEmail, otpType)
				return "123456", nil
			},
		}
		mailer := &recordingMailer{}
		svc := NewService(repo, otp, mockSigner{}, mailer)

		token, err := svc.Register(context.Background(), "vendor@example.com", "s3cret-pass", RoleVendor)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		require.NotNil(t, provisioned)
		assert.Equal(t, RoleVendor, provisioned.Role)
		assert.Equal(t, StatusPending, provisioned.Status)
		assert.Equal(t, []string{"vendor@example.com"}, mailer.sent)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, a *Auth) error { return ErrEmailExists },
		}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		_, err := svc.Register(context.Background(), "dup@example.com", "s3cret-pass", RoleUser)
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("empty password", func(t *testing.T) {
		svc := NewService(&mockRepository{}, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		_, err := svc.Register(context.Background(), "user@example.com", "", RoleUser)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_Login(t *testing.T) {
	authID := mustUUID(t)
	passwordHash := hashOf(t, "s3cret-pass")

	account := func(verified bool) *Auth {
		return &Auth{
			ID:           authID,
			Email:        "user@example.com",
			PasswordHash: passwordHash,
			Role:         RoleUser,
			IsVerified:   verified,
		}
	}

	t.Run("unknown email", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return nil, ErrNotFound
			},
		}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return account(true), nil
			},
		}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		_, _, err := svc.Login(context.Background(), "user@example.com", "not-the-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("verified account gets a token and its profile", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return account(true), nil
			},
		}
		mailer := &recordingMailer{}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, mailer)

		token, a, err := svc.Login(context.Background(), "user@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		require.NotNil(t, a)
		assert.Equal(t, authID, a.ID)
		assert.Empty(t, mailer.sent, "verified logins do not reissue codes")
	})

	t.Run("unverified account gets a fresh code and no profile", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return account(false), nil
			},
		}
		otp := &mockOtpStore{
			issueFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType) (string, error) {
				return "654321", nil
			},
		}
		mailer := &recordingMailer{}
		svc := NewService(repo, otp, mockSigner{}, mailer)

		token, a, err := svc.Login(context.Background(), "user@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Nil(t, a)
		assert.Equal(t, []string{"user@example.com"}, mailer.sent)
	})
}

func TestService_VerifyOTP(t *testing.T) {
	authID := mustUUID(t)

	repoWith := func(markVerified *bool) *mockRepository {
		return &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return &Auth{ID: authID, Email: email}, nil
			},
			markVerifiedFunc: func(ctx context.Context, id uuid.UUID) error {
				*markVerified = true
				return nil
			},
		}
	}

	t.Run("valid code marks the account verified", func(t *testing.T) {
		marked := false
		otp := &mockOtpStore{
			checkFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType, code string) error {
				assert.Equal(t, "123456", code)
				return nil
			},
		}
		svc := NewService(repoWith(&marked), otp, mockSigner{}, &recordingMailer{})

		err := svc.VerifyOTP(context.Background(), "user@example.com", "123456", OtpVerifyEmail)
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("wrong or expired code", func(t *testing.T) {
		marked := false
		otp := &mockOtpStore{
			checkFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType, code string) error {
				return ErrOtpInvalid
			},
		}
		svc := NewService(repoWith(&marked), otp, mockSigner{}, &recordingMailer{})

		err := svc.VerifyOTP(context.Background(), "user@example.com", "000000", OtpVerifyEmail)
		assert.ErrorIs(t, err, ErrOtpInvalid)
		assert.False(t, marked)
	})

	t.Run("unknown account reads as an invalid code", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return nil, ErrNotFound
			},
		}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		err := svc.VerifyOTP(context.Background(), "ghost@example.com", "123456", OtpVerifyEmail)
		assert.ErrorIs(t, err, ErrOtpInvalid)
	})

	t.Run("reset-password codes do not touch verification", func(t *testing.T) {
		marked := false
		otp := &mockOtpStore{
			checkFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType, code string) error {
				return nil
			},
		}
		svc := NewService(repoWith(&marked), otp, mockSigner{}, &recordingMailer{})

		err := svc.VerifyOTP(context.Background(), "user@example.com", "123456", OtpResetPassword)
		require.NoError(t, err)
		assert.False(t, marked)
	})
}

func TestService_ResetPassword(t *testing.T) {
	authID := mustUUID(t)

	account := func(ctx context.Context, email string) (*Auth, error) {
		return &Auth{ID: authID, Email: email, PasswordHash: hashOf(t, "old-password")}, nil
	}

	t.Run("valid code replaces the password", func(t *testing.T) {
		var storedHash string
		repo := &mockRepository{
			getByEmailFunc: account,
			updatePasswordFunc: func(ctx context.Context, id uuid.UUID, passwordHash string) error {
				assert.Equal(t, authID, id)
				storedHash = passwordHash
				return nil
			},
		}
		otp := &mockOtpStore{
			checkFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType, code string) error {
				assert.Equal(t, OtpResetPassword, otpType)
				assert.Equal(t, "123456", code)
				return nil
			},
		}
		svc := NewService(repo, otp, mockSigner{}, &recordingMailer{})

		err := svc.ResetPassword(context.Background(), "user@example.com", "123456", "new-password-1")
		require.NoError(t, err)
		require.NotEmpty(t, storedHash, "a consumed reset code must change the stored password")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("new-password-1")))
	})

	t.Run("wrong code leaves the password alone", func(t *testing.T) {
		updated := false
		repo := &mockRepository{
			getByEmailFunc: account,
			updatePasswordFunc: func(ctx context.Context, id uuid.UUID, passwordHash string) error {
				updated = true
				return nil
			},
		}
		otp := &mockOtpStore{
			checkFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType, code string) error {
				return ErrOtpInvalid
			},
		}
		svc := NewService(repo, otp, mockSigner{}, &recordingMailer{})

		err := svc.ResetPassword(context.Background(), "user@example.com", "000000", "new-password-1")
		assert.ErrorIs(t, err, ErrOtpInvalid)
		assert.False(t, updated)
	})

	t.Run("unknown account reads as an invalid code", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return nil, ErrNotFound
			},
		}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		err := svc.ResetPassword(context.Background(), "ghost@example.com", "123456", "new-password-1")
		assert.ErrorIs(t, err, ErrOtpInvalid)
	})

	t.Run("empty password", func(t *testing.T) {
		svc := NewService(&mockRepository{}, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		err := svc.ResetPassword(context.Background(), "user@example.com", "123456", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_ResendOTP(t *testing.T) {
	authID := mustUUID(t)

	t.Run("reissues for a known account", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return &Auth{ID: authID, Email: email}, nil
			},
		}
		issued := 0
		otp := &mockOtpStore{
			issueFunc: func(ctx context.Context, id uuid.UUID, otpType OtpType) (string, error) {
				issued++
				return "123456", nil
			},
		}
		mailer := &recordingMailer{}
		svc := NewService(repo, otp, mockSigner{}, mailer)

		require.NoError(t, svc.ResendOTP(context.Background(), "user@example.com", OtpVerifyEmail))
		assert.Equal(t, 1, issued)
		assert.Len(t, mailer.sent, 1)
	})

	t.Run("unknown account", func(t *testing.T) {
		repo := &mockRepository{
			getByEmailFunc: func(ctx context.Context, email string) (*Auth, error) {
				return nil, ErrNotFound
			},
		}
		svc := NewService(repo, &mockOtpStore{}, mockSigner{}, &recordingMailer{})

		err := svc.ResendOTP(context.Background(), "ghost@example.com", OtpVerifyEmail)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
