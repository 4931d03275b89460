package sync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/teeroy47/murimi/internal/auth"
	"github.com/teeroy47/murimi/internal/domain"
)

func newTestHandler(engine *testEngine) http.Handler {
	return auth.Middleware(NewHTTPHandler(engine.service))
}

func authedRequest(engine *testEngine, method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(auth.HeaderUser, engine.userID)
	req.Header.Set(auth.HeaderFarm, engine.farmID.String())
	req.Header.Set(auth.HeaderPermissions, "animals.edit,nutrition.edit")
	return req
}

func TestHandlerPushRoundTrip(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)
	entityID := uuid.New()

	payload := map[string]any{
		"farmId":   engine.farmID,
		"deviceId": engine.deviceID,
		"changes": []domain.MutationRecord{
			create("Animal", entityID, "m-1", map[string]any{"tag": "PIG-001"}),
		},
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/push", payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("push status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	var resp PushResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Status != domain.StatusApplied {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if resp.Results[0].EntityID != entityID {
		t.Fatalf("result entityId = %s, want %s", resp.Results[0].EntityID, entityID)
	}
}

func TestHandlerRejectsMissingIdentity(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)

	for _, target := range []string{"/push", "/resolve-conflict"} {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without identity: status = %d, want 401", target, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/pull", nil)
	req.Header.Set(auth.HeaderUser, engine.userID)
	// Farm header present but not a UUID.
	req.Header.Set(auth.HeaderFarm, "not-a-farm")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("pull with bad farm header: status = %d, want 401", rec.Code)
	}
}

func TestHandlerPushFarmMismatch(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)

	payload := map[string]any{
		"farmId":   uuid.New(), // not the authenticated farm
		"deviceId": engine.deviceID,
		"changes":  []domain.MutationRecord{create("Animal", uuid.New(), "m-1", nil)},
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/push", payload))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "does not match authenticated scope") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandlerPushRejectsMalformedChanges(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)

	cases := []struct {
		name string
		body string
	}{
		{
			name: "unknown op",
			body: fmt.Sprintf(`{"farmId":%q,"deviceId":"device-1","changes":[{"entityType":"Animal","entityId":%q,"op":"UPSERT","clientMutationId":"m-1"}]}`,
				engine.farmID, uuid.New()),
		},
		{
			name: "missing clientMutationId",
			body: fmt.Sprintf(`{"farmId":%q,"deviceId":"device-1","changes":[{"entityType":"Animal","entityId":%q,"op":"CREATE","clientMutationId":"  "}]}`,
				engine.farmID, uuid.New()),
		},
		{
			name: "not json",
			body: "{",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/push", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandlerPullResumesFromCursor(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)
	engine.mustPush(t, create("Animal", uuid.New(), "m-1", nil))
	engine.mustPush(t, create("Animal", uuid.New(), "m-2", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodGet, "/pull", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pull status = %d, body %s", rec.Code, rec.Body.String())
	}

	var first PullResponse
	if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(first.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(first.Changes))
	}

	// Resuming from the returned cursor yields nothing new.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodGet, "/pull?sinceCursor="+first.NewCursor, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("resumed pull status = %d, body %s", rec.Code, rec.Body.String())
	}
	var second PullResponse
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(second.Changes) != 0 {
		t.Fatalf("resumed pull must be empty, got %d changes", len(second.Changes))
	}
	if second.NewCursor != first.NewCursor {
		t.Fatalf("exhausted pull must keep the cursor")
	}
}

func TestHandlerPullRejectsMalformedCursor(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodGet, "/pull?sinceCursor=garbage", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerResolveStatusCodes(t *testing.T) {
	engine := newTestEngine(t, "Animal")
	handler := newTestHandler(engine)
	entityID := uuid.New()
	engine.mustPush(t, create("Animal", entityID, "m-1", map[string]any{"tag": "X"}))

	resolveBody := func(entityType string, id uuid.UUID, resolution string) map[string]any {
		return map[string]any{
			"farmId":            engine.farmID,
			"deviceId":          engine.deviceID,
			"entityType":        entityType,
			"entityId":          id,
			"resolution":        resolution,
			"baseServerVersion": 1,
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/resolve-conflict", resolveBody("Animal", entityID, "KEEP_SERVER")))
	if rec.Code != http.StatusOK {
		t.Fatalf("KEEP_SERVER status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ResolveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Resolution != KeepServer || resp.ServerState.Version != 1 {
		t.Fatalf("unexpected resolve response: %+v", resp)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/resolve-conflict", resolveBody("Tractor", entityID, "KEEP_SERVER")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported type status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/resolve-conflict", resolveBody("Animal", entityID, "SPLIT_DIFFERENCE")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid resolution status = %d, want 400", rec.Code)
	}

	engine.perms.deny["Animal"] = true
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(engine, http.MethodPost, "/resolve-conflict", resolveBody("Animal", entityID, "KEEP_MINE")))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("denied KEEP_MINE status = %d, want 403", rec.Code)
	}
}
