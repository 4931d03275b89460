// Package permissions holds the permission code catalogue and the
// mapping from synchronized entity types to the capability a caller
// needs. Evaluation of who holds which codes is done upstream; this
// package only names them.
package permissions

import (
	"strings"

	"github.com/teeroy47/murimi/internal/domain"
)

// Permission codes. The catalogue is shared with the permission
// evaluation service; sync only consumes the edit capabilities.
const (
	AnimalsView     = "animals.view"
	AnimalsEdit     = "animals.edit"
	NutritionView   = "nutrition.view"
	NutritionEdit   = "nutrition.edit"
	BreedingView    = "breeding.view"
	BreedingEdit    = "breeding.edit"
	HealthView      = "health.view"
	HealthEdit      = "health.edit"
	SlaughterView   = "slaughter.view"
	SlaughterEdit   = "slaughter.edit"
	MapView         = "map.view"
	MapEdit         = "map.edit"
	ReportsView     = "reports.view"
	AuditView       = "audit.view"
	SettingsManage  = "settings.manage_users"
	KnowledgeManage = "kb.manage"
	RolesManage     = "roles.manage"
)

type entityPermissions struct {
	view string
	edit string
}

var syncPermissions = map[string]entityPermissions{
	"Animal":         {view: AnimalsView, edit: AnimalsEdit},
	"FeedType":       {view: NutritionView, edit: NutritionEdit},
	"WeightRecord":   {view: NutritionView, edit: NutritionEdit},
	"TreatmentEvent": {view: HealthView, edit: HealthEdit},
	"SlaughterRule":  {view: SlaughterView, edit: SlaughterEdit},
	"FarmMap":        {view: MapView, edit: MapEdit},
}

// ForSync returns the permission code a caller needs to push the given
// operation for an entity type. ok is false when the type has no
// permission mapping, which the engine treats the same as an
// unsupported entity.
func ForSync(entityType string, op domain.Operation) (string, bool) {
	entry, ok := syncPermissions[entityType]
	if !ok {
		return "", false
	}
	switch op {
	case domain.OpCreate, domain.OpUpdate, domain.OpDelete:
		return entry.edit, true
	}
	return entry.view, true
}

// Set is an unordered collection of permission codes.
type Set map[string]struct{}

// NewSet builds a set from codes, ignoring empty entries.
func NewSet(codes ...string) Set {
	set := make(Set, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

// ParseList builds a set from a comma-separated header value.
func ParseList(raw string) Set {
	return NewSet(strings.Split(raw, ",")...)
}

// Has reports whether the set grants the code.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}
