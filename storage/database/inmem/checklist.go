package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/checklist"
)

type checklistRepository struct {
	db *DB
}

var _ checklist.Repository = (*checklistRepository)(nil)

func NewChecklistRepository(db *DB) checklist.Repository {
	return &checklistRepository{db: db}
}

func (repo *checklistRepository) Atomic(_ context.Context, fn func(r checklist.Repository) error) error {
	return fn(repo)
}

func (repo *checklistRepository) GetInstance(_ context.Context, childID int, targetDate core.Date) (checklist.Instance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inst := range repo.db.instances {
		if inst.ChildID == childID && inst.TargetDate.Equal(targetDate) {
			return inst, nil
		}
	}
	return checklist.Instance{}, checklist.ErrInstanceNotFound
}

func (repo *checklistRepository) GetInstanceByID(_ context.Context, id int) (checklist.Instance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inst, ok := repo.db.instances[id]; ok {
		return inst, nil
	}
	return checklist.Instance{}, checklist.ErrInstanceNotFound
}

func (repo *checklistRepository) CreateInstance(_ context.Context, childID int, targetDate core.Date, versionID int) (checklist.Instance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, inst := range repo.db.instances {
		if inst.ChildID == childID && inst.TargetDate.Equal(targetDate) {
			return checklist.Instance{}, core.ErrConflict
		}
	}
	now := time.Now().UTC()
	inst := checklist.Instance{
		ID:                repo.db.nextID(),
		ChildID:           childID,
		TargetDate:        targetDate,
		ScheduleVersionID: versionID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	repo.db.instances[inst.ID] = inst
	return inst, nil
}

func (repo *checklistRepository) UpdateInstanceVersion(_ context.Context, instanceID, versionID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inst, ok := repo.db.instances[instanceID]
	if !ok {
		return checklist.ErrInstanceNotFound
	}
	inst.ScheduleVersionID = versionID
	inst.UpdatedAt = time.Now().UTC()
	repo.db.instances[instanceID] = inst
	return nil
}

// deleteInstanceCascade must be called with the write lock held.
func (db *DB) deleteInstanceCascade(id int) {
	delete(db.instances, id)
	for iid, it := range db.items {
		if it.InstanceID == id {
			delete(db.items, iid)
		}
	}
	for aid, a := range db.acks {
		if a.InstanceID == id {
			delete(db.acks, aid)
		}
	}
}

func (repo *checklistRepository) ListItemStates(_ context.Context, instanceID int) ([]checklist.ItemState, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	states := make([]checklist.ItemState, 0)
	for _, st := range repo.db.items {
		if st.InstanceID == instanceID {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states, nil
}

func (repo *checklistRepository) InsertItemStates(_ context.Context, instanceID int, pairs []checklist.SubjectMaterial) ([]checklist.ItemState, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, st := range repo.db.items {
		if st.InstanceID != instanceID {
			continue
		}
		for _, pair := range pairs {
			if st.SubjectID == pair.SubjectID && st.MaterialID == pair.MaterialID {
				return nil, core.ErrConflict
			}
		}
	}
	now := time.Now().UTC()
	states := make([]checklist.ItemState, 0, len(pairs))
	for _, pair := range pairs {
		st := checklist.ItemState{
			ID:         repo.db.nextID(),
			InstanceID: instanceID,
			SubjectID:  pair.SubjectID,
			MaterialID: pair.MaterialID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		repo.db.items[st.ID] = st
		states = append(states, st)
	}
	return states, nil
}

func (repo *checklistRepository) DeleteItemStates(_ context.Context, instanceID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for iid, st := range repo.db.items {
		if st.InstanceID == instanceID {
			delete(repo.db.items, iid)
		}
	}
	return nil
}

func (repo *checklistRepository) SetItemChecked(_ context.Context, itemID int, checked bool, checkedAt null.Time) (checklist.ItemState, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.items[itemID]
	if !ok {
		return checklist.ItemState{}, checklist.ErrItemNotFound
	}
	st.Checked = checked
	st.CheckedAt = checkedAt
	st.UpdatedAt = time.Now().UTC()
	repo.db.items[itemID] = st
	return st, nil
}

func (repo *checklistRepository) ListAcknowledgments(_ context.Context, instanceID int) ([]checklist.Acknowledgment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	acks := make([]checklist.Acknowledgment, 0)
	for _, a := range repo.db.acks {
		if a.InstanceID == instanceID {
			acks = append(acks, a)
		}
	}
	sort.Slice(acks, func(i, j int) bool { return acks[i].ID < acks[j].ID })
	return acks, nil
}

func (repo *checklistRepository) UpsertAcknowledgment(_ context.Context, instanceID, subjectID int, acked bool, ackedAt null.Time) (checklist.Acknowledgment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for aid, a := range repo.db.acks {
		if a.InstanceID == instanceID && a.SubjectID == subjectID {
			a.Acknowledged = acked
			a.AcknowledgedAt = ackedAt
			repo.db.acks[aid] = a
			return a, nil
		}
	}
	a := checklist.Acknowledgment{
		ID:             repo.db.nextID(),
		InstanceID:     instanceID,
		SubjectID:      subjectID,
		Acknowledged:   acked,
		AcknowledgedAt: ackedAt,
	}
	repo.db.acks[a.ID] = a
	return a, nil
}

func (repo *checklistRepository) DeleteAcknowledgments(_ context.Context, instanceID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for aid, a := range repo.db.acks {
		if a.InstanceID == instanceID {
			delete(repo.db.acks, aid)
		}
	}
	return nil
}
