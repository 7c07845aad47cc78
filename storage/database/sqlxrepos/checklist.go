package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/checklist"
)

type checklistRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ checklist.Repository = (*checklistRepository)(nil)

func NewChecklistRepository(db *sqlx.DB) checklist.Repository {
	return &checklistRepository{db: db, ext: db}
}

func (repo *checklistRepository) Atomic(ctx context.Context, fn func(r checklist.Repository) error) error {
	return inTx(ctx, repo.db, repo.ext, func(tx sqlx.ExtContext) error {
		return fn(&checklistRepository{db: repo.db, ext: tx})
	})
}

const instanceColumns = `id, child_id, target_date, schedule_version_id, created_at, updated_at`

func (repo *checklistRepository) GetInstance(ctx context.Context, childID int, targetDate core.Date) (checklist.Instance, error) {
	q := `SELECT ` + instanceColumns + ` FROM checklist_instance WHERE child_id = ? AND target_date = ?`
	var inst checklist.Instance
	err := sqlx.GetContext(ctx, repo.ext, &inst, repo.ext.Rebind(q), childID, targetDate)
	if errors.Cause(err) == sql.ErrNoRows {
		return inst, checklist.ErrInstanceNotFound
	}
	return inst, errors.Wrap(err, "getting instance")
}

func (repo *checklistRepository) GetInstanceByID(ctx context.Context, id int) (checklist.Instance, error) {
	q := `SELECT ` + instanceColumns + ` FROM checklist_instance WHERE id = ?`
	var inst checklist.Instance
	err := sqlx.GetContext(ctx, repo.ext, &inst, repo.ext.Rebind(q), id)
	if errors.Cause(err) == sql.ErrNoRows {
		return inst, checklist.ErrInstanceNotFound
	}
	return inst, errors.Wrap(err, "getting instance")
}

func (repo *checklistRepository) CreateInstance(ctx context.Context, childID int, targetDate core.Date, versionID int) (checklist.Instance, error) {
	q := `
INSERT INTO checklist_instance (child_id, target_date, schedule_version_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`
	now := time.Now().UTC()
	var id int
	if err := sqlx.GetContext(ctx, repo.ext, &id, repo.ext.Rebind(q), childID, targetDate, versionID, now, now); err != nil {
		return checklist.Instance{}, translateErr(err, "creating instance")
	}
	return repo.GetInstanceByID(ctx, id)
}

func (repo *checklistRepository) UpdateInstanceVersion(ctx context.Context, instanceID, versionID int) error {
	q := `UPDATE checklist_instance SET schedule_version_id = ?, updated_at = ? WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), versionID, time.Now().UTC(), instanceID)
	if err != nil {
		return errors.Wrap(err, "updating instance version")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return checklist.ErrInstanceNotFound
	}
	return nil
}

const itemStateColumns = `id, checklist_instance_id, subject_id, material_id, is_checked, checked_at, created_at, updated_at`

func (repo *checklistRepository) ListItemStates(ctx context.Context, instanceID int) ([]checklist.ItemState, error) {
	q := `SELECT ` + itemStateColumns + ` FROM checklist_item_state WHERE checklist_instance_id = ? ORDER BY id`
	states := make([]checklist.ItemState, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &states, repo.ext.Rebind(q), instanceID)
	return states, errors.Wrap(err, "listing item states")
}

func (repo *checklistRepository) InsertItemStates(ctx context.Context, instanceID int, pairs []checklist.SubjectMaterial) ([]checklist.ItemState, error) {
	q := repo.ext.Rebind(`
INSERT INTO checklist_item_state (checklist_instance_id, subject_id, material_id, is_checked, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + itemStateColumns)
	now := time.Now().UTC()
	states := make([]checklist.ItemState, 0, len(pairs))
	for _, pair := range pairs {
		var st checklist.ItemState
		err := sqlx.GetContext(ctx, repo.ext, &st, q, instanceID, pair.SubjectID, pair.MaterialID, false, now, now)
		if err != nil {
			return nil, translateErr(err, "inserting item state")
		}
		states = append(states, st)
	}
	return states, nil
}

func (repo *checklistRepository) DeleteItemStates(ctx context.Context, instanceID int) error {
	q := `DELETE FROM checklist_item_state WHERE checklist_instance_id = ?`
	_, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), instanceID)
	return errors.Wrap(err, "deleting item states")
}

func (repo *checklistRepository) SetItemChecked(ctx context.Context, itemID int, checked bool, checkedAt null.Time) (checklist.ItemState, error) {
	q := `UPDATE checklist_item_state SET is_checked = ?, checked_at = ?, updated_at = ? WHERE id = ?`
	res, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), checked, checkedAt, time.Now().UTC(), itemID)
	if err != nil {
		return checklist.ItemState{}, errors.Wrap(err, "setting item checked")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return checklist.ItemState{}, checklist.ErrItemNotFound
	}

	getQ := `SELECT ` + itemStateColumns + ` FROM checklist_item_state WHERE id = ?`
	var st checklist.ItemState
	err = sqlx.GetContext(ctx, repo.ext, &st, repo.ext.Rebind(getQ), itemID)
	return st, errors.Wrap(err, "getting item state")
}

const ackColumns = `id, checklist_instance_id, subject_id, acknowledged, acknowledged_at`

func (repo *checklistRepository) ListAcknowledgments(ctx context.Context, instanceID int) ([]checklist.Acknowledgment, error) {
	q := `SELECT ` + ackColumns + ` FROM subject_acknowledgment WHERE checklist_instance_id = ? ORDER BY id`
	acks := make([]checklist.Acknowledgment, 0)
	err := sqlx.SelectContext(ctx, repo.ext, &acks, repo.ext.Rebind(q), instanceID)
	return acks, errors.Wrap(err, "listing acknowledgments")
}

func (repo *checklistRepository) UpsertAcknowledgment(ctx context.Context, instanceID, subjectID int, acked bool, ackedAt null.Time) (checklist.Acknowledgment, error) {
	// ON CONFLICT upsert has identical syntax on postgres and sqlite
	q := `
INSERT INTO subject_acknowledgment (checklist_instance_id, subject_id, acknowledged, acknowledged_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (checklist_instance_id, subject_id)
DO UPDATE SET acknowledged = excluded.acknowledged, acknowledged_at = excluded.acknowledged_at
RETURNING ` + ackColumns
	var ack checklist.Acknowledgment
	err := sqlx.GetContext(ctx, repo.ext, &ack, repo.ext.Rebind(q), instanceID, subjectID, acked, ackedAt)
	return ack, errors.Wrap(err, "upserting acknowledgment")
}

func (repo *checklistRepository) DeleteAcknowledgments(ctx context.Context, instanceID int) error {
	q := `DELETE FROM subject_acknowledgment WHERE checklist_instance_id = ?`
	_, err := repo.ext.ExecContext(ctx, repo.ext.Rebind(q), instanceID)
	return errors.Wrap(err, "deleting acknowledgments")
}
