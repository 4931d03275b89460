package domain

// HasVersionConflict decides whether a client write may proceed against
// the current server version. The rule is intentionally strict: an
// absent base version is always a potential lost update and never
// optimistically accepted. Used identically for UPDATE and DELETE.
func HasVersionConflict(baseVersion *int64, currentVersion int64) bool {
	if baseVersion == nil {
		return true
	}
	return *baseVersion != currentVersion
}
