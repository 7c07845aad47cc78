package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/schedule"
)

type scheduleRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db, ext: db}
}

func (repo *scheduleRepository) Atomic(ctx context.Context, fn func(r schedule.Repository) error) error {
	return inTx(ctx, repo.db, repo.ext, func(tx sqlx.ExtContext) error {
		return fn(&scheduleRepository{db: repo.db, ext: tx})
	})
}

const getTemplateSQL = `
SELECT id, child_id, name, created_at, updated_at
FROM schedule_template
WHERE id = ?`

func (repo *scheduleRepository) GetTemplate(ctx context.Context, id int) (schedule.Template, error) {
	var t schedule.Template
	err := sqlx.GetContext(ctx, repo.ext, &t, repo.ext.Rebind(getTemplateSQL), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return t, schedule.ErrTemplateNotFound
	}
	return t, errors.Wrap(err, "getting template")
}

func (repo *scheduleRepository) ListTemplatesByChild(ctx context.Context, childID int) ([]schedule.Template, error) {
	q := `
SELECT id, child_id, name, created_at, updated_at
FROM schedule_template
WHERE child_id = ?
ORDER BY name`
	tmpls := make([]schedule.Template, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &tmpls, repo.ext.Rebind(q), childID)
	return tmpls, errors.Wrap(err, "listing templates")
}

func (repo *scheduleRepository) CreateTemplate(ctx context.Context, childID int, name string) (schedule.Template, error) {
	q := `
INSERT INTO schedule_template (child_id, name, created_at, updated_at)
VALUES (?, ?, ?, ?)
RETURNING id`
	now := time.Now().UTC()
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), childID, name, now, now); err != nil {
		return schedule.Template{}, translateErr(err, "creating template")
	}
	return repo.GetTemplate(ctx, id)
}

func (repo *scheduleRepository) UpdateTemplateName(ctx context.Context, id int, name string) (schedule.Template, error) {
	q := `UPDATE schedule_template SET name = ?, updated_at = ? WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), name, time.Now().UTC(), id)
	if err != nil {
		return schedule.Template{}, errors.Wrap(err, "updating template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.Template{}, schedule.ErrTemplateNotFound
	}
	return repo.GetTemplate(ctx, id)
}

func (repo *scheduleRepository) DeleteTemplate(ctx context.Context, id int) error {
	q := `DELETE FROM schedule_template WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), id)
	if err != nil {
		return errors.Wrap(err, "deleting template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrTemplateNotFound
	}
	return nil
}

const getVersionSQL = `
SELECT id, template_id, valid_from, created_at, updated_at
FROM schedule_version
WHERE id = ?`

func (repo *scheduleRepository) GetVersion(ctx context.Context, id int) (schedule.Version, error) {
	var v schedule.Version
	err := sqlx.GetContext(ctx, repo.ext, &v, repo.ext.Rebind(getVersionSQL), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return v, schedule.ErrVersionNotFound
	}
	return v, errors.Wrap(err, "getting version")
}

func (repo *scheduleRepository) LatestVersionOnOrBefore(ctx context.Context, templateID int, d core.Date) (schedule.Version, error) {
	q := `
SELECT id, template_id, valid_from, created_at, updated_at
FROM schedule_version
WHERE template_id = ? AND valid_from <= ?
ORDER BY valid_from DESC
LIMIT 1`
	var v schedule.Version
	err := sqlx.GetContext(ctx, repo.ext, &v, repo.ext.Rebind(q), templateID, d)
	if errors.Cause(err) == sql.ErrNoRows {
		return v, schedule.ErrVersionNotFound
	}
	return v, errors.Wrap(err, "querying latest version")
}

func (repo *scheduleRepository) CreateVersion(ctx context.Context, templateID int, validFrom core.Date) (schedule.Version, error) {
	q := `
INSERT INTO schedule_version (template_id, valid_from, created_at, updated_at)
VALUES (?, ?, ?, ?)
RETURNING id`
	now := time.Now().UTC()
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), templateID, validFrom, now, now); err != nil {
		return schedule.Version{}, translateErr(err, "creating version")
	}
	return repo.GetVersion(ctx, id)
}

func (repo *scheduleRepository) ListBlocks(ctx context.Context, versionID int) ([]schedule.Block, error) {
	q := `
SELECT b.id, b.version_id, b.block_order, b.subject_id, s.name AS subject_name, b.created_at
FROM schedule_block b
JOIN subject s ON s.id = b.subject_id
WHERE b.version_id = ?
ORDER BY b.block_order, b.id`
	blocks := make([]schedule.Block, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &blocks, repo.ext.Rebind(q), versionID)
	return blocks, errors.Wrap(err, "listing blocks")
}

func (repo *scheduleRepository) InsertBlocks(ctx context.Context, versionID int, specs []schedule.BlockSpec) error {
	q := repo.ext.Rebind(`
INSERT INTO schedule_block (version_id, block_order, subject_id, created_at)
VALUES (?, ?, ?, ?)`)
	now := time.Now().UTC()
	for _, spec := range specs {
		if _, err := repo.ext.ExecContext(ctx, q, versionID, spec.BlockOrder, spec.SubjectID, now); err != nil {
			return translateErr(err, "inserting block")
		}
	}
	return nil
}

func (repo *scheduleRepository) DeleteBlocks(ctx context.Context, versionID int) error {
	q := `DELETE FROM schedule_block WHERE version_id = ?`
	_, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), versionID)
	return errors.Wrap(err, "deleting blocks")
}

// ListMaterialLinks scopes to subjectIDs when given; an empty slice means all
// of the template's links.
func (repo *scheduleRepository) ListMaterialLinks(ctx context.Context, templateID int, subjectIDs []int) ([]schedule.MaterialLink, error) {
	q := `
SELECT l.id, l.template_id, l.subject_id, l.material_id, m.name AS material_name, l.created_at
FROM template_material_link l
JOIN material m ON m.id = l.material_id
WHERE l.template_id = ?`
	args := []interface{}{templateID}
	if len(subjectIDs) > 0 {
		var err error
		if q, args, err = sqlx.In(q+` AND l.subject_id IN (?)`, templateID, subjectIDs); err != nil {
			return nil, errors.Wrap(err, "binding subject ids")
		}
	}
	links := make([]schedule.MaterialLink, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &links, repo.ext.Rebind(q+` ORDER BY l.id`), args...)
	return links, errors.Wrap(err, "listing material links")
}

func (repo *scheduleRepository) AttachMaterial(ctx context.Context, templateID, subjectID, materialID int) (schedule.MaterialLink, error) {
	q := `
INSERT INTO template_material_link (template_id, subject_id, material_id, created_at)
VALUES (?, ?, ?, ?)
RETURNING id`
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), templateID, subjectID, materialID, time.Now().UTC()); err != nil {
		return schedule.MaterialLink{}, translateErr(err, "attaching material")
	}

	getQ := `
SELECT l.id, l.template_id, l.subject_id, l.material_id, m.name AS material_name, l.created_at
FROM template_material_link l
JOIN material m ON m.id = l.material_id
WHERE l.id = ?`
	var link schedule.MaterialLink
	err := sqlx.GetContext(ctx, repo.ext, &link, repo.ext.Rebind(getQ), id)
	return link, errors.Wrap(err, "getting material link")
}

func (repo *scheduleRepository) DetachMaterial(ctx context.Context, templateID, subjectID, materialID int) error {
	q := `
DELETE FROM template_material_link
WHERE template_id = ? AND subject_id = ? AND material_id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), templateID, subjectID, materialID)
	if err != nil {
		return errors.Wrap(err, "detaching material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrLinkNotFound
	}
	return nil
}
