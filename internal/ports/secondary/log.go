package secondary

import (
	"context"
	"time"
)

// AuditLog defines the interface for writing audit entries.
// Implementations extract the actor from context.
type AuditLog interface {
	// LogUpdate logs a field change on an entity.
	LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error

	// LogAction logs a named administrative action with a free-text detail.
	LogAction(ctx context.Context, entityType, entityID, action, detail string) error

	// List returns entries for an entity, oldest first.
	List(ctx context.Context, entityType, entityID string) ([]*AuditRecord, error)
}

// AuditRecord represents an audit entry as stored in persistence.
type AuditRecord struct {
	ID         string
	ActorID    string
	EntityType string
	EntityID   string
	Action     string // "update" or an administrative action name
	FieldName  string
	OldValue   string
	NewValue   string
	CreatedAt  time.Time
}

// CityLocker serialises read-modify-write operations on a single city.
type CityLocker interface {
	// Lock blocks until the city's lock is held or ctx is done.
	// The returned func releases it.
	Lock(ctx context.Context, cityID int64) (unlock func(), err error)
}
