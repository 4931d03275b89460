package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/teeroy47/murimi/internal/permissions"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller scope for one request: the user,
// the farm they are acting in, and the permission codes granted there.
// Session issuance and permission evaluation happen upstream; the sync
// engine only reads this.
type Identity struct {
	UserID      string
	FarmID      uuid.UUID
	Permissions permissions.Set
}

// ContextWithIdentity returns a new context that carries the caller identity.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the caller identity from the context, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	value := ctx.Value(identityKey)
	if value == nil {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	if !ok {
		return Identity{}, false
	}
	if identity.FarmID == uuid.Nil {
		return Identity{}, false
	}
	return identity, true
}

// EnforceFarmScope ensures the provided farm matches the authenticated scope.
func EnforceFarmScope(ctx context.Context, farmID uuid.UUID) error {
	if farmID == uuid.Nil {
		return fmt.Errorf("farmId is required")
	}
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return fmt.Errorf("caller identity missing from context")
	}
	if identity.FarmID != farmID {
		return fmt.Errorf("farmId %s does not match authenticated scope", farmID)
	}
	return nil
}
