package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teeroy47/murimi/internal/auth"
	"github.com/teeroy47/murimi/internal/domain"
)

// Handler exposes the sync engine as JSON endpoints.
type Handler struct {
	service *Service
}

// NewHTTPHandler mounts push, pull and resolve routes on a chi router.
// The auth middleware must run before these handlers.
func NewHTTPHandler(service *Service) http.Handler {
	h := &Handler{service: service}

	r := chi.NewRouter()
	r.Post("/push", h.push)
	r.Get("/pull", h.pull)
	r.Post("/resolve-conflict", h.resolve)
	return r
}

type pushPayload struct {
	FarmID   uuid.UUID               `json:"farmId"`
	DeviceID string                  `json:"deviceId"`
	Changes  []domain.MutationRecord `json:"changes"`
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "caller identity missing", http.StatusUnauthorized)
		return
	}

	var payload pushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid push payload: %v", err), http.StatusBadRequest)
		return
	}

	if err := auth.EnforceFarmScope(r.Context(), payload.FarmID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, change := range payload.Changes {
		if _, err := domain.ParseOperation(string(change.Op)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(change.ClientMutationID) == "" {
			http.Error(w, "clientMutationId is required", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.service.Push(r.Context(), PushRequest{
		FarmID:    payload.FarmID,
		DeviceID:  payload.DeviceID,
		UserID:    identity.UserID,
		Mutations: payload.Changes,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) pull(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "caller identity missing", http.StatusUnauthorized)
		return
	}

	resp, err := h.service.Pull(r.Context(), identity.FarmID, r.URL.Query().Get("sinceCursor"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type resolvePayload struct {
	FarmID            uuid.UUID      `json:"farmId"`
	DeviceID          string         `json:"deviceId"`
	EntityType        string         `json:"entityType"`
	EntityID          uuid.UUID      `json:"entityId"`
	Resolution        Resolution     `json:"resolution"`
	BaseServerVersion int64          `json:"baseServerVersion"`
	PayloadIfKeepMine map[string]any `json:"payloadIfKeepMine,omitempty"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "caller identity missing", http.StatusUnauthorized)
		return
	}

	var payload resolvePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid resolve payload: %v", err), http.StatusBadRequest)
		return
	}

	if err := auth.EnforceFarmScope(r.Context(), payload.FarmID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.Resolve(r.Context(), ResolveRequest{
		FarmID:            payload.FarmID,
		DeviceID:          payload.DeviceID,
		UserID:            identity.UserID,
		EntityType:        payload.EntityType,
		EntityID:          payload.EntityID,
		Resolution:        payload.Resolution,
		BaseServerVersion: payload.BaseServerVersion,
		PayloadIfKeepMine: payload.PayloadIfKeepMine,
	})
	if err != nil {
		http.Error(w, err.Error(), resolveStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func resolveStatus(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrEntityNotFound),
		errors.Is(err, ErrUnsupportedEntityType),
		errors.Is(err, ErrVersionChangedAgain),
		errors.Is(err, ErrInvalidResolution):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
