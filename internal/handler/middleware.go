package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/vendhub/marketplace/internal/auth"
	"github.com/vendhub/marketplace/internal/order"
	"github.com/vendhub/marketplace/internal/user"
	"github.com/vendhub/marketplace/internal/vendor"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller, resolved down to the role-specific
// profile ID.
type Identity struct {
	AuthID   uuid.UUID
	Email    string
	Role     auth.Role
	UserID   uuid.UUID
	VendorID uuid.UUID
}

// Actor converts the identity into an order-scope actor.
func (i Identity) Actor() order.Actor {
	switch i.Role {
	case auth.RoleVendor:
		return order.Actor{Role: order.RoleVendor, VendorID: i.VendorID}
	case auth.RoleAdmin:
		return order.Actor{Role: order.RoleAdmin}
	default:
		return order.Actor{Role: order.RoleUser, UserID: i.UserID}
	}
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

type AuthMiddleware struct {
	signer  auth.TokenSigner
	auths   auth.Repository
	users   user.Repository
	vendors vendor.Repository
}

func NewAuthMiddleware(signer auth.TokenSigner, auths auth.Repository, users user.Repository, vendors vendor.Repository) *AuthMiddleware {
	return &AuthMiddleware{signer: signer, auths: auths, users: users, vendors: vendors}
}

// Authenticate resolves the bearer token into an Identity and stores it on
// the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondWithError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		authID, role, err := m.signer.Verify(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		account, err := m.auths.GetByID(r.Context(), authID)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				respondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			respondWithDomainError(w, err)
			return
		}

		identity := Identity{AuthID: authID, Email: account.Email, Role: role}

		switch role {
		case auth.RoleUser:
			u, err := m.users.GetByAuthID(r.Context(), authID)
			if err != nil {
				respondWithDomainError(w, err)
				return
			}
			identity.UserID = u.ID
		case auth.RoleVendor:
			v, err := m.vendors.GetByAuthID(r.Context(), authID)
			if err != nil {
				respondWithDomainError(w, err)
				return
			}
			identity.VendorID = v.ID
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route to the given roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFrom(r.Context())
			if !ok || !allowed[identity.Role] {
				respondWithError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
