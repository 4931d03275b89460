package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChangeCursorEntry is one row of the per-farm append-only change log.
// Entries are created once per accepted mutation and never updated or
// deleted; ChangedAt with the insertion sequence as tie-break is the
// ordering key for the pull feed.
type ChangeCursorEntry struct {
	Seq        int64      `json:"-"`
	FarmID     uuid.UUID  `json:"-"`
	EntityType string     `json:"entityType"`
	EntityID   uuid.UUID  `json:"entityId"`
	Version    int64      `json:"version"`
	ChangedAt  time.Time  `json:"changedAt"`
	DeletedAt  *time.Time `json:"deletedAt"`
}

// cursorLayout keeps nanosecond precision so no entry committed between
// two pulls can fall inside rounding slop.
const cursorLayout = time.RFC3339Nano

// cursorSep joins the timestamp and sequence halves of a cursor.
const cursorSep = "~"

// FormatCursor renders a feed position as the opaque string clients
// persist and pass back verbatim. The position is the (changedAt, seq)
// pair of the last entry handed out, so a page boundary falling inside
// a group of entries sharing one timestamp cannot skip the rest of the
// group.
func FormatCursor(at time.Time, seq int64) string {
	return at.UTC().Format(cursorLayout) + cursorSep + strconv.FormatInt(seq, 10)
}

// ParseCursor decodes a client-held cursor into the (changedAt, seq)
// position to resume strictly after. An empty cursor means the epoch,
// i.e. replay the whole feed. A bare timestamp from an older client is
// still accepted and resumes strictly after that timestamp.
func ParseCursor(raw string) (time.Time, int64, error) {
	if raw == "" {
		return time.Unix(0, 0).UTC(), 0, nil
	}

	timePart, seqPart, composite := strings.Cut(raw, cursorSep)

	at, err := time.Parse(cursorLayout, timePart)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid sync cursor %q: %w", raw, err)
	}
	if !composite {
		return at.UTC(), math.MaxInt64, nil
	}

	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid sync cursor %q: %w", raw, err)
	}
	return at.UTC(), seq, nil
}
