package inmemdb

import (
	"context"

	"github.com/trezcool/begi/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) InsertEvent(_ context.Context, evt audit.Event) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.events = append(repo.db.events, evt)
	return nil
}

func (repo *auditRepository) ListEventsByInstance(_ context.Context, instanceID int) ([]audit.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]audit.Event, 0)
	for _, evt := range repo.db.events {
		if evt.InstanceID.Valid && evt.InstanceID.Int == instanceID {
			events = append(events, evt)
		}
	}
	return events, nil
}
