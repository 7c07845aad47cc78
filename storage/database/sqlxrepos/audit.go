package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core/audit"
)

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *sqlx.DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) InsertEvent(ctx context.Context, evt audit.Event) error {
	q := `
INSERT INTO audit_event (id, event_type, child_id, checklist_instance_id, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	var payload interface{}
	if len(evt.Payload) > 0 {
		payload = string(evt.Payload)
	}
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(q),
		evt.ID, evt.Type, evt.ChildID, evt.InstanceID, payload, evt.CreatedAt)
	return errors.Wrap(err, "inserting audit event")
}

func (repo *auditRepository) ListEventsByInstance(ctx context.Context, instanceID int) ([]audit.Event, error) {
	q := `
SELECT id, event_type, child_id, checklist_instance_id, payload_json, created_at
FROM audit_event
WHERE checklist_instance_id = ?
ORDER BY created_at, id`
	events := make([]audit.Event, 0)
	err := sqlx.SelectContext(ctx, repo.db, &events, repo.db.Rebind(q), instanceID)
	return events, errors.Wrap(err, "listing audit events")
}
