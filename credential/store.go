package credential

// Store provides durable persistence for the current session record.
// Implementations hold at most one record, must write it atomically (a
// crash mid-write must never leave a readable half-written record), and
// never validate token content.
type Store interface {
	// Load retrieves the persisted session.
	// Returns nil, nil if no record exists.
	Load() (*PersistedSession, error)

	// Save stores the record, replacing any previous one as a single unit.
	Save(session *PersistedSession) error

	// Clear removes the record. Clearing an empty store is a no-op.
	Clear() error
}
