package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/teeroy47/murimi/internal/domain"
	"github.com/teeroy47/murimi/internal/permissions"
)

// Trusted headers set by the authenticating reverse proxy in front of
// this service. Token verification is out of scope here.
const (
	HeaderUser        = "X-Murimi-User"
	HeaderFarm        = "X-Murimi-Farm"
	HeaderPermissions = "X-Murimi-Permissions"
)

// Middleware extracts the caller identity from request headers and
// stores it in the request context. Requests without a user or a valid
// farm scope are rejected before reaching any handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUser))
		if userID == "" {
			http.Error(w, "missing caller identity", http.StatusUnauthorized)
			return
		}

		farmID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderFarm)))
		if err != nil || farmID == uuid.Nil {
			http.Error(w, "missing or invalid farm scope", http.StatusUnauthorized)
			return
		}

		identity := Identity{
			UserID:      userID,
			FarmID:      farmID,
			Permissions: permissions.ParseList(r.Header.Get(HeaderPermissions)),
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// ContextChecker answers sync permission checks from the permission set
// carried in the request context.
type ContextChecker struct{}

// Allowed reports whether the caller may perform op on entityType. A
// missing permission mapping is treated the same as an unsupported
// entity type.
func (ContextChecker) Allowed(ctx context.Context, farmID uuid.UUID, userID, entityType string, op domain.Operation) bool {
	code, ok := permissions.ForSync(entityType, op)
	if !ok {
		return false
	}

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	if identity.FarmID != farmID || identity.UserID != userID {
		return false
	}
	return identity.Permissions.Has(code)
}
