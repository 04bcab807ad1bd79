package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/rollout/internal/ctxutil"
	"github.com/example/rollout/internal/ports/secondary"
)

// AuditLog implements secondary.AuditLog with the audit_log table.
type AuditLog struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditLog creates a new SQLite audit log.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db, now: time.Now}
}

// LogUpdate logs an update operation for an entity field.
func (a *AuditLog) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	return a.write(ctx, &secondary.AuditRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     "update",
		FieldName:  fieldName,
		OldValue:   oldValue,
		NewValue:   newValue,
	})
}

// LogAction logs a named administrative action with free-text detail.
func (a *AuditLog) LogAction(ctx context.Context, entityType, entityID, action, detail string) error {
	return a.write(ctx, &secondary.AuditRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		NewValue:   detail,
	})
}

// write attributes the entry to the actor carried by ctx.
func (a *AuditLog) write(ctx context.Context, rec *secondary.AuditRecord) error {
	rec.ID = uuid.NewString()
	rec.ActorID = ctxutil.ActorFromContext(ctx)
	rec.CreatedAt = utc(a.now())

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ActorID, rec.EntityType, rec.EntityID, rec.Action,
		nullString(rec.FieldName), nullString(rec.OldValue), nullString(rec.NewValue), rec.CreatedAt,
	)
	return wrap("write audit entry", err)
}

// List returns entries for an entity, oldest first.
func (a *AuditLog) List(ctx context.Context, entityType, entityID string) ([]*secondary.AuditRecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, created_at
		 FROM audit_log WHERE entity_type = ? AND entity_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, wrap("list audit entries", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditRecord
	for rows.Next() {
		var (
			field, oldValue, newValue sql.NullString
			createdAt                 sql.NullTime
		)
		rec := &secondary.AuditRecord{}
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.EntityType, &rec.EntityID, &rec.Action,
			&field, &oldValue, &newValue, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		rec.FieldName = field.String
		rec.OldValue = oldValue.String
		rec.NewValue = newValue.String
		rec.CreatedAt = createdAt.Time
		entries = append(entries, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate audit entries", err)
	}
	return entries, nil
}

var _ secondary.AuditLog = (*AuditLog)(nil)
