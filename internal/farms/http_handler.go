// Package farms exposes tenant provisioning endpoints. Farm creation
// is an operator action, not a device one, so these routes sit outside
// the device-facing sync surface; like the sync routes they are only
// reachable through the trusted reverse proxy.
package farms

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teeroy47/murimi/internal/domain"
	"github.com/teeroy47/murimi/internal/repository"
)

// Handler exposes farm provisioning as JSON endpoints.
type Handler struct {
	repo repository.FarmRepository
}

// NewHTTPHandler mounts the farm routes on a chi router.
func NewHTTPHandler(repo repository.FarmRepository) http.Handler {
	h := &Handler{repo: repo}

	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	return r
}

type createPayload struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid farm payload: %v", err), http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if _, err := h.repo.GetByName(r.Context(), name); err == nil {
		http.Error(w, "farm already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	farm, err := h.repo.Create(r.Context(), domain.NewFarm(name, strings.TrimSpace(payload.Location)))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, farm)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	farms, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"farms": farms})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
