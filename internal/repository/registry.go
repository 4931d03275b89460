package repository

import (
	"github.com/jackc/pgx/v5"

	"github.com/teeroy47/murimi/internal/db"
)

// SyncedEntityTypes lists every entity type the engine synchronizes.
// Adding a type here (plus its permission mapping) is all that is
// needed to make it syncable.
var SyncedEntityTypes = []string{
	"Animal",
	"FeedType",
	"WeightRecord",
	"TreatmentEvent",
	"SlaughterRule",
	"FarmMap",
}

// Registry is the static mapping from entity type to its store. It
// replaces dynamic delegate lookup with an explicit capability set per
// type.
type Registry struct {
	stores map[string]EntityStore
}

// NewRegistry builds stores for every synchronized entity type.
func NewRegistry(q db.Querier) *Registry {
	stores := make(map[string]EntityStore, len(SyncedEntityTypes))
	for _, entityType := range SyncedEntityTypes {
		stores[entityType] = NewEntityStore(q, entityType)
	}
	return &Registry{stores: stores}
}

// NewRegistryOf builds a registry from explicit stores, keyed by their
// entity type.
func NewRegistryOf(stores ...EntityStore) *Registry {
	byType := make(map[string]EntityStore, len(stores))
	for _, store := range stores {
		byType[store.EntityType()] = store
	}
	return &Registry{stores: byType}
}

// Store returns the store for an entity type, or false when the type is
// not synchronized.
func (r *Registry) Store(entityType string) (EntityStore, bool) {
	store, ok := r.stores[entityType]
	return store, ok
}

// WithTx returns a registry whose stores are bound to the transaction.
func (r *Registry) WithTx(tx pgx.Tx) *Registry {
	stores := make(map[string]EntityStore, len(r.stores))
	for entityType, store := range r.stores {
		stores[entityType] = store.WithTx(tx)
	}
	return &Registry{stores: stores}
}
