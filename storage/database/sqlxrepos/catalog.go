package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
)

type catalogRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db, ext: db}
}

func (repo *catalogRepository) ListChildren(ctx context.Context) ([]catalog.Child, error) {
	q := `SELECT id, name, created_at, updated_at FROM child ORDER BY name`
	children := make([]catalog.Child, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &children, q)
	return children, errors.Wrap(err, "listing children")
}

func (repo *catalogRepository) GetChild(ctx context.Context, id int) (catalog.Child, error) {
	q := `SELECT id, name, created_at, updated_at FROM child WHERE id = ?`
	var c catalog.Child
	err := sqlx.GetContext(ctx, repo.ext, &c, repo.ext.Rebind(q), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return c, catalog.ErrChildNotFound
	}
	return c, errors.Wrap(err, "getting child")
}

func (repo *catalogRepository) CreateChild(ctx context.Context, name string) (catalog.Child, error) {
	q := `INSERT INTO child (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`
	now := time.Now().UTC()
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), name, now, now); err != nil {
		return catalog.Child{}, translateErr(err, "creating child")
	}
	return repo.GetChild(ctx, id)
}

func (repo *catalogRepository) UpdateChildName(ctx context.Context, id int, name string) (catalog.Child, error) {
	q := `UPDATE child SET name = ?, updated_at = ? WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), name, time.Now().UTC(), id)
	if err != nil {
		return catalog.Child{}, errors.Wrap(err, "updating child")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Child{}, catalog.ErrChildNotFound
	}
	return repo.GetChild(ctx, id)
}

func (repo *catalogRepository) DeleteChild(ctx context.Context, id int) error {
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(`DELETE FROM child WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting child")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrChildNotFound
	}
	return nil
}

func (repo *catalogRepository) ListSubjects(ctx context.Context) ([]catalog.Subject, error) {
	q := `SELECT id, name, created_at, updated_at FROM subject ORDER BY name`
	subjects := make([]catalog.Subject, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &subjects, q)
	return subjects, errors.Wrap(err, "listing subjects")
}

func (repo *catalogRepository) getSubject(ctx context.Context, id int) (catalog.Subject, error) {
	q := `SELECT id, name, created_at, updated_at FROM subject WHERE id = ?`
	var s catalog.Subject
	err := sqlx.GetContext(ctx, repo.ext, &s, repo.ext.Rebind(q), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return s, catalog.ErrSubjectNotFound
	}
	return s, errors.Wrap(err, "getting subject")
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, name string) (catalog.Subject, error) {
	q := `INSERT INTO subject (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`
	now := time.Now().UTC()
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), name, now, now); err != nil {
		return catalog.Subject{}, translateErr(err, "creating subject")
	}
	return repo.getSubject(ctx, id)
}

func (repo *catalogRepository) UpdateSubjectName(ctx context.Context, id int, name string) (catalog.Subject, error) {
	q := `UPDATE subject SET name = ?, updated_at = ? WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), name, time.Now().UTC(), id)
	if err != nil {
		return catalog.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Subject{}, catalog.ErrSubjectNotFound
	}
	return repo.getSubject(ctx, id)
}

func (repo *catalogRepository) DeleteSubject(ctx context.Context, id int) error {
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(`DELETE FROM subject WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrSubjectNotFound
	}
	return nil
}

func (repo *catalogRepository) ListMaterials(ctx context.Context) ([]catalog.Material, error) {
	q := `SELECT id, name, created_at, updated_at FROM material ORDER BY name`
	materials := make([]catalog.Material, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &materials, q)
	return materials, errors.Wrap(err, "listing materials")
}

func (repo *catalogRepository) getMaterial(ctx context.Context, id int) (catalog.Material, error) {
	q := `SELECT id, name, created_at, updated_at FROM material WHERE id = ?`
	var m catalog.Material
	err := sqlx.GetContext(ctx, repo.ext, &m, repo.ext.Rebind(q), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return m, catalog.ErrMaterialNotFound
	}
	return m, errors.Wrap(err, "getting material")
}

func (repo *catalogRepository) CreateMaterial(ctx context.Context, name string) (catalog.Material, error) {
	q := `INSERT INTO material (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`
	now := time.Now().UTC()
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), name, now, now); err != nil {
		return catalog.Material{}, translateErr(err, "creating material")
	}
	return repo.getMaterial(ctx, id)
}

func (repo *catalogRepository) UpdateMaterialName(ctx context.Context, id int, name string) (catalog.Material, error) {
	q := `UPDATE material SET name = ?, updated_at = ? WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), name, time.Now().UTC(), id)
	if err != nil {
		return catalog.Material{}, errors.Wrap(err, "updating material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Material{}, catalog.ErrMaterialNotFound
	}
	return repo.getMaterial(ctx, id)
}

func (repo *catalogRepository) DeleteMaterial(ctx context.Context, id int) error {
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(`DELETE FROM material WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrMaterialNotFound
	}
	return nil
}

const getRequirementSQL = `
SELECT r.id, r.subject_id, s.name AS subject_name, r.description, r.target_date,
       r.is_recurring, r.created_at, r.resolved_at
FROM subject_requirement r
JOIN subject s ON s.id = r.subject_id
WHERE r.id = ?`

func (repo *catalogRepository) getRequirement(ctx context.Context, id int) (catalog.Requirement, error) {
	var r catalog.Requirement
	err := sqlx.GetContext(ctx, repo.ext, &r, repo.ext.Rebind(getRequirementSQL), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return r, catalog.ErrRequirementNotFound
	}
	return r, errors.Wrap(err, "getting requirement")
}

func (repo *catalogRepository) CreateRequirement(ctx context.Context, nr catalog.NewRequirement) (catalog.Requirement, error) {
	q := `
INSERT INTO subject_requirement (subject_id, description, target_date, is_recurring, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`
	// bound through core.Date so the column holds YYYY-MM-DD like every
	// other DATE column
	var targetDate interface{}
	if !nr.TargetDate.IsZero() {
		targetDate = nr.TargetDate
	}
	var id int
	err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q),
		nr.SubjectID, nr.Description, targetDate, nr.IsRecurring, time.Now().UTC())
	if err != nil {
		return catalog.Requirement{}, errors.Wrap(err, "creating requirement")
	}
	return repo.getRequirement(ctx, id)
}

func (repo *catalogRepository) ListOpenRequirements(ctx context.Context, d core.Date) ([]catalog.Requirement, error) {
	q := `
SELECT r.id, r.subject_id, s.name AS subject_name, r.description, r.target_date,
       r.is_recurring, r.created_at, r.resolved_at
FROM subject_requirement r
JOIN subject s ON s.id = r.subject_id
WHERE r.resolved_at IS NULL
  AND (r.target_date = ? OR (r.target_date IS NULL AND r.is_recurring))
ORDER BY r.id`
	reqs := make([]catalog.Requirement, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &reqs, repo.ext.Rebind(q), d)
	return reqs, errors.Wrap(err, "listing open requirements")
}

func (repo *catalogRepository) ResolveRequirement(ctx context.Context, id int) (catalog.Requirement, error) {
	q := `UPDATE subject_requirement SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`
	if _, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), time.Now().UTC(), id); err != nil {
		return catalog.Requirement{}, errors.Wrap(err, "resolving requirement")
	}
	// resolving an already-resolved requirement is a no-op
	return repo.getRequirement(ctx, id)
}
