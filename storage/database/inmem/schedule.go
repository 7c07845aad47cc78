package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) Atomic(_ context.Context, fn func(r schedule.Repository) error) error {
	return fn(repo)
}

func (repo *scheduleRepository) GetTemplate(_ context.Context, id int) (schedule.Template, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.templates[id]; ok {
		return t, nil
	}
	return schedule.Template{}, schedule.ErrTemplateNotFound
}

func (repo *scheduleRepository) ListTemplatesByChild(_ context.Context, childID int) ([]schedule.Template, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tmpls := make([]schedule.Template, 0)
	for _, t := range repo.db.templates {
		if t.ChildID == childID {
			tmpls = append(tmpls, t)
		}
	}
	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].Name < tmpls[j].Name })
	return tmpls, nil
}

func (repo *scheduleRepository) CreateTemplate(_ context.Context, childID int, name string) (schedule.Template, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.children[childID]; !ok {
		return schedule.Template{}, catalog.ErrChildNotFound
	}
	now := time.Now().UTC()
	t := schedule.Template{ID: repo.db.nextID(), ChildID: childID, Name: name, CreatedAt: now, UpdatedAt: now}
	repo.db.templates[t.ID] = t
	return t, nil
}

func (repo *scheduleRepository) UpdateTemplateName(_ context.Context, id int, name string) (schedule.Template, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.templates[id]
	if !ok {
		return schedule.Template{}, schedule.ErrTemplateNotFound
	}
	t.Name = name
	t.UpdatedAt = time.Now().UTC()
	repo.db.templates[id] = t
	return t, nil
}

func (repo *scheduleRepository) DeleteTemplate(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.templates[id]; !ok {
		return schedule.ErrTemplateNotFound
	}
	repo.db.deleteTemplateCascade(id)
	return nil
}

// deleteTemplateCascade must be called with the write lock held.
func (db *DB) deleteTemplateCascade(id int) {
	delete(db.templates, id)
	for vid, v := range db.versions {
		if v.TemplateID == id {
			delete(db.versions, vid)
			for bid, b := range db.blocks {
				if b.VersionID == vid {
					delete(db.blocks, bid)
				}
			}
		}
	}
	for lid, l := range db.links {
		if l.TemplateID == id {
			delete(db.links, lid)
		}
	}
}

func (repo *scheduleRepository) GetVersion(_ context.Context, id int) (schedule.Version, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if v, ok := repo.db.versions[id]; ok {
		return v, nil
	}
	return schedule.Version{}, schedule.ErrVersionNotFound
}

func (repo *scheduleRepository) LatestVersionOnOrBefore(_ context.Context, templateID int, d core.Date) (schedule.Version, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var latest schedule.Version
	found := false
	for _, v := range repo.db.versions {
		if v.TemplateID != templateID || v.ValidFrom.After(d.Time) {
			continue
		}
		if !found || v.ValidFrom.After(latest.ValidFrom.Time) {
			latest = v
			found = true
		}
	}
	if !found {
		return schedule.Version{}, schedule.ErrVersionNotFound
	}
	return latest, nil
}

func (repo *scheduleRepository) CreateVersion(_ context.Context, templateID int, validFrom core.Date) (schedule.Version, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.templates[templateID]; !ok {
		return schedule.Version{}, schedule.ErrTemplateNotFound
	}
	for _, v := range repo.db.versions {
		if v.TemplateID == templateID && v.ValidFrom.Equal(validFrom) {
			return schedule.Version{}, core.ErrConflict
		}
	}
	now := time.Now().UTC()
	v := schedule.Version{ID: repo.db.nextID(), TemplateID: templateID, ValidFrom: validFrom, CreatedAt: now, UpdatedAt: now}
	repo.db.versions[v.ID] = v
	return v, nil
}

func (repo *scheduleRepository) ListBlocks(_ context.Context, versionID int) ([]schedule.Block, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blocks := make([]schedule.Block, 0)
	for _, b := range repo.db.blocks {
		if b.VersionID == versionID {
			b.SubjectName = repo.db.subjects[b.SubjectID].Name
			blocks = append(blocks, b)
		}
	}
	// ties on block_order keep insertion order
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].BlockOrder != blocks[j].BlockOrder {
			return blocks[i].BlockOrder < blocks[j].BlockOrder
		}
		return blocks[i].ID < blocks[j].ID
	})
	return blocks, nil
}

func (repo *scheduleRepository) InsertBlocks(_ context.Context, versionID int, specs []schedule.BlockSpec) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	for _, spec := range specs {
		if _, ok := repo.db.subjects[spec.SubjectID]; !ok {
			return catalog.ErrSubjectNotFound
		}
		b := schedule.Block{
			ID:         repo.db.nextID(),
			VersionID:  versionID,
			BlockOrder: spec.BlockOrder,
			SubjectID:  spec.SubjectID,
			CreatedAt:  now,
		}
		repo.db.blocks[b.ID] = b
	}
	return nil
}

func (repo *scheduleRepository) DeleteBlocks(_ context.Context, versionID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for bid, b := range repo.db.blocks {
		if b.VersionID == versionID {
			delete(repo.db.blocks, bid)
		}
	}
	return nil
}

func (repo *scheduleRepository) ListMaterialLinks(_ context.Context, templateID int, subjectIDs []int) ([]schedule.MaterialLink, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[int]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		wanted[id] = true
	}

	links := make([]schedule.MaterialLink, 0)
	for _, l := range repo.db.links {
		if l.TemplateID != templateID {
			continue
		}
		if len(wanted) > 0 && !wanted[l.SubjectID] {
			continue
		}
		l.MaterialName = repo.db.materials[l.MaterialID].Name
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

func (repo *scheduleRepository) AttachMaterial(_ context.Context, templateID, subjectID, materialID int) (schedule.MaterialLink, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.templates[templateID]; !ok {
		return schedule.MaterialLink{}, schedule.ErrTemplateNotFound
	}
	if _, ok := repo.db.subjects[subjectID]; !ok {
		return schedule.MaterialLink{}, catalog.ErrSubjectNotFound
	}
	m, ok := repo.db.materials[materialID]
	if !ok {
		return schedule.MaterialLink{}, catalog.ErrMaterialNotFound
	}
	for _, l := range repo.db.links {
		if l.TemplateID == templateID && l.SubjectID == subjectID && l.MaterialID == materialID {
			return schedule.MaterialLink{}, core.ErrConflict
		}
	}
	l := schedule.MaterialLink{
		ID:           repo.db.nextID(),
		TemplateID:   templateID,
		SubjectID:    subjectID,
		MaterialID:   materialID,
		MaterialName: m.Name,
		CreatedAt:    time.Now().UTC(),
	}
	repo.db.links[l.ID] = l
	return l, nil
}

func (repo *scheduleRepository) DetachMaterial(_ context.Context, templateID, subjectID, materialID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for lid, l := range repo.db.links {
		if l.TemplateID == templateID && l.SubjectID == subjectID && l.MaterialID == materialID {
			delete(repo.db.links, lid)
			return nil
		}
	}
	return schedule.ErrLinkNotFound
}
