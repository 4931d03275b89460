package sync

import "errors"

// Request-level errors abort the whole call. Per-mutation failures are
// reported inside the result list instead and never abort sibling
// mutations.
var (
	// ErrFarmRequired is returned when the push envelope lacks a farm id.
	ErrFarmRequired = errors.New("farmId is required")
	// ErrDeviceRequired is returned when the push envelope lacks a device id.
	ErrDeviceRequired = errors.New("deviceId is required")
	// ErrUnknownFarm is returned when the push envelope names a farm
	// that does not exist.
	ErrUnknownFarm = errors.New("unknown farm")
	// ErrUnsupportedEntityType is returned by resolve when no store is
	// registered for the entity type.
	ErrUnsupportedEntityType = errors.New("unsupported entityType")
	// ErrEntityNotFound is returned by resolve when the target entity
	// does not exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrPermissionDenied is returned by resolve when the caller lacks
	// the edit capability for the entity type.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrVersionChangedAgain is returned by a KEEP_MINE resolution when
	// another writer moved the entity after the conflict was observed.
	ErrVersionChangedAgain = errors.New("server version changed again; refresh and retry")
	// ErrInvalidResolution is returned for a resolution tag other than
	// KEEP_SERVER or KEEP_MINE.
	ErrInvalidResolution = errors.New("resolution must be KEEP_SERVER or KEEP_MINE")
)

// Per-mutation rejection reasons.
const (
	reasonUnsupportedOrDenied = "unsupported entity or permission denied"
	reasonAlreadyExists       = "entity already exists"
	reasonNotFound            = "entity not found"
)
