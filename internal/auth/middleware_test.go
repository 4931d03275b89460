package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeroy47/murimi/internal/domain"
	"github.com/teeroy47/murimi/internal/permissions"
)

func TestMiddlewareExtractsIdentity(t *testing.T) {
	farmID := uuid.New()
	var captured Identity
	var found bool

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, found = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUser, "user-7")
	req.Header.Set(HeaderFarm, farmID.String())
	req.Header.Set(HeaderPermissions, "animals.edit, health.edit")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, found)
	assert.Equal(t, "user-7", captured.UserID)
	assert.Equal(t, farmID, captured.FarmID)
	assert.True(t, captured.Permissions.Has(permissions.AnimalsEdit))
	assert.True(t, captured.Permissions.Has(permissions.HealthEdit))
	assert.False(t, captured.Permissions.Has(permissions.MapEdit))
}

func TestMiddlewareRejectsIncompleteHeaders(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no headers", headers: map[string]string{}},
		{name: "missing farm", headers: map[string]string{HeaderUser: "user-7"}},
		{name: "farm not a uuid", headers: map[string]string{HeaderUser: "user-7", HeaderFarm: "farm-1"}},
		{name: "nil farm", headers: map[string]string{HeaderUser: "user-7", HeaderFarm: uuid.Nil.String()}},
		{name: "blank user", headers: map[string]string{HeaderUser: "  ", HeaderFarm: uuid.NewString()}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for key, value := range tc.headers {
				req.Header.Set(key, value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestContextCheckerAllowed(t *testing.T) {
	farmID := uuid.New()
	identity := Identity{
		UserID:      "user-7",
		FarmID:      farmID,
		Permissions: permissions.NewSet(permissions.AnimalsEdit),
	}
	ctx := ContextWithIdentity(context.Background(), identity)
	checker := ContextChecker{}

	assert.True(t, checker.Allowed(ctx, farmID, "user-7", "Animal", domain.OpUpdate))

	// Missing permission code.
	assert.False(t, checker.Allowed(ctx, farmID, "user-7", "TreatmentEvent", domain.OpUpdate))
	// Unsupported entity type.
	assert.False(t, checker.Allowed(ctx, farmID, "user-7", "Tractor", domain.OpCreate))
	// Identity scoped to another farm.
	assert.False(t, checker.Allowed(ctx, uuid.New(), "user-7", "Animal", domain.OpUpdate))
	// Acting user does not match the authenticated one.
	assert.False(t, checker.Allowed(ctx, farmID, "someone-else", "Animal", domain.OpUpdate))
	// No identity in context at all.
	assert.False(t, checker.Allowed(context.Background(), farmID, "user-7", "Animal", domain.OpUpdate))
}
