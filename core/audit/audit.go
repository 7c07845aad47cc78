// Package audit keeps the append-only event log. Recording is best-effort:
// a failed insert is logged, never surfaced to the operation that caused it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
)

// Event types written by the checklist service.
const (
	EventChecklistEnsured   = "checklist_ensured"
	EventTemplateReselected = "template_reselected"
	EventItemToggled        = "item_toggled"
	EventSubjectAcked       = "subject_acknowledged"
)

type (
	Event struct {
		ID         string          `db:"id" json:"id"`
		Type       string          `db:"event_type" json:"eventType"`
		ChildID    null.Int        `db:"child_id" json:"childId,omitempty"`
		InstanceID null.Int        `db:"checklist_instance_id" json:"checklistInstanceId,omitempty"`
		Payload    json.RawMessage `db:"payload_json" json:"payload,omitempty"`
		CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	}

	Repository interface {
		InsertEvent(ctx context.Context, evt Event) error
		ListEventsByInstance(ctx context.Context, instanceID int) ([]Event, error)
	}

	Service interface {
		Record(ctx context.Context, evt Event)
		ByInstance(ctx context.Context, instanceID int) ([]Event, error)
	}

	service struct {
		repo Repository
		log  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, log core.Logger) Service {
	return &service{repo: repo, log: log}
}

func (svc *service) Record(ctx context.Context, evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	if err := svc.repo.InsertEvent(ctx, evt); err != nil {
		svc.log.Error(fmt.Sprintf("recording audit event %s: %v", evt.Type, err), err)
	}
}

func (svc *service) ByInstance(ctx context.Context, instanceID int) ([]Event, error) {
	return svc.repo.ListEventsByInstance(ctx, instanceID)
}
