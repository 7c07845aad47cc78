package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) ListChildren(_ context.Context) ([]catalog.Child, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	children := make([]catalog.Child, 0, len(repo.db.children))
	for _, c := range repo.db.children {
		children = append(children, c)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (repo *catalogRepository) GetChild(_ context.Context, id int) (catalog.Child, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.children[id]; ok {
		return c, nil
	}
	return catalog.Child{}, catalog.ErrChildNotFound
}

func (repo *catalogRepository) CreateChild(_ context.Context, name string) (catalog.Child, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	c := catalog.Child{ID: repo.db.nextID(), Name: name, CreatedAt: now, UpdatedAt: now}
	repo.db.children[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) UpdateChildName(_ context.Context, id int, name string) (catalog.Child, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.children[id]
	if !ok {
		return catalog.Child{}, catalog.ErrChildNotFound
	}
	c.Name = name
	c.UpdatedAt = time.Now().UTC()
	repo.db.children[id] = c
	return c, nil
}

func (repo *catalogRepository) DeleteChild(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.children[id]; !ok {
		return catalog.ErrChildNotFound
	}
	delete(repo.db.children, id)

	// cascade: templates (with versions, blocks, links) and instances
	for tid, t := range repo.db.templates {
		if t.ChildID == id {
			repo.db.deleteTemplateCascade(tid)
		}
	}
	for iid, inst := range repo.db.instances {
		if inst.ChildID == id {
			repo.db.deleteInstanceCascade(iid)
		}
	}
	return nil
}

func (repo *catalogRepository) ListSubjects(_ context.Context) ([]catalog.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]catalog.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *catalogRepository) CreateSubject(_ context.Context, name string) (catalog.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	s := catalog.Subject{ID: repo.db.nextID(), Name: name, CreatedAt: now, UpdatedAt: now}
	repo.db.subjects[s.ID] = s
	return s, nil
}

func (repo *catalogRepository) UpdateSubjectName(_ context.Context, id int, name string) (catalog.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.subjects[id]
	if !ok {
		return catalog.Subject{}, catalog.ErrSubjectNotFound
	}
	s.Name = name
	s.UpdatedAt = time.Now().UTC()
	repo.db.subjects[id] = s
	return s, nil
}

func (repo *catalogRepository) DeleteSubject(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return catalog.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)

	for bid, b := range repo.db.blocks {
		if b.SubjectID == id {
			delete(repo.db.blocks, bid)
		}
	}
	for lid, l := range repo.db.links {
		if l.SubjectID == id {
			delete(repo.db.links, lid)
		}
	}
	for iid, it := range repo.db.items {
		if it.SubjectID == id {
			delete(repo.db.items, iid)
		}
	}
	for aid, a := range repo.db.acks {
		if a.SubjectID == id {
			delete(repo.db.acks, aid)
		}
	}
	for rid, r := range repo.db.requirements {
		if r.SubjectID == id {
			delete(repo.db.requirements, rid)
		}
	}
	return nil
}

func (repo *catalogRepository) ListMaterials(_ context.Context) ([]catalog.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	materials := make([]catalog.Material, 0, len(repo.db.materials))
	for _, m := range repo.db.materials {
		materials = append(materials, m)
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].Name < materials[j].Name })
	return materials, nil
}

func (repo *catalogRepository) CreateMaterial(_ context.Context, name string) (catalog.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	m := catalog.Material{ID: repo.db.nextID(), Name: name, CreatedAt: now, UpdatedAt: now}
	repo.db.materials[m.ID] = m
	return m, nil
}

func (repo *catalogRepository) UpdateMaterialName(_ context.Context, id int, name string) (catalog.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m, ok := repo.db.materials[id]
	if !ok {
		return catalog.Material{}, catalog.ErrMaterialNotFound
	}
	m.Name = name
	m.UpdatedAt = time.Now().UTC()
	repo.db.materials[id] = m
	return m, nil
}

func (repo *catalogRepository) DeleteMaterial(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return catalog.ErrMaterialNotFound
	}
	delete(repo.db.materials, id)

	for lid, l := range repo.db.links {
		if l.MaterialID == id {
			delete(repo.db.links, lid)
		}
	}
	for iid, it := range repo.db.items {
		if it.MaterialID == id {
			delete(repo.db.items, iid)
		}
	}
	return nil
}

func (repo *catalogRepository) CreateRequirement(_ context.Context, nr catalog.NewRequirement) (catalog.Requirement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.subjects[nr.SubjectID]
	if !ok {
		return catalog.Requirement{}, catalog.ErrSubjectNotFound
	}
	r := catalog.Requirement{
		ID:          repo.db.nextID(),
		SubjectID:   nr.SubjectID,
		SubjectName: s.Name,
		Description: nr.Description,
		IsRecurring: nr.IsRecurring,
		CreatedAt:   time.Now().UTC(),
	}
	if !nr.TargetDate.IsZero() {
		r.TargetDate = null.TimeFrom(nr.TargetDate.Time)
	}
	repo.db.requirements[r.ID] = r
	return r, nil
}

func (repo *catalogRepository) ListOpenRequirements(_ context.Context, d core.Date) ([]catalog.Requirement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]catalog.Requirement, 0)
	for _, r := range repo.db.requirements {
		if r.ResolvedAt.Valid {
			continue
		}
		pinned := r.TargetDate.Valid && core.DateOf(r.TargetDate.Time).Equal(d)
		recurring := !r.TargetDate.Valid && r.IsRecurring
		if pinned || recurring {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}

func (repo *catalogRepository) ResolveRequirement(_ context.Context, id int) (catalog.Requirement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.requirements[id]
	if !ok {
		return catalog.Requirement{}, catalog.ErrRequirementNotFound
	}
	if !r.ResolvedAt.Valid {
		r.ResolvedAt = null.TimeFrom(time.Now().UTC())
		repo.db.requirements[id] = r
	}
	return r, nil
}
