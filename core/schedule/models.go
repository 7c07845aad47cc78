package schedule

import (
	"time"

	"github.com/trezcool/begi/core"
)

type (
	// Template is a named weekly pattern owned by exactly one child. Its
	// content lives in Versions; the template row itself is just identity.
	Template struct {
		ID        int       `db:"id" json:"id"`
		ChildID   int       `db:"child_id" json:"childId"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}

	// Version is an immutable snapshot of a template's subject sequence,
	// effective from ValidFrom until superseded by a later version.
	// At most one version may exist per (TemplateID, ValidFrom).
	Version struct {
		ID         int       `db:"id" json:"id"`
		TemplateID int       `db:"template_id" json:"templateId"`
		ValidFrom  core.Date `db:"valid_from" json:"validFrom"`
		CreatedAt  time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
	}

	// Block is one ordered slot within a version. Duplicate subjects within
	// one version are permitted and represent repeated periods.
	Block struct {
		ID          int       `db:"id" json:"id"`
		VersionID   int       `db:"version_id" json:"versionId"`
		BlockOrder  int       `db:"block_order" json:"blockOrder"`
		SubjectID   int       `db:"subject_id" json:"subjectId"`
		SubjectName string    `db:"subject_name" json:"subjectName"`
		CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	}

	// BlockSpec is the input shape for replacing a version's blocks.
	BlockSpec struct {
		BlockOrder int `json:"blockOrder"`
		SubjectID  int `json:"subjectId"`
	}

	// MaterialLink declares, template-wide and independent of versions, that
	// a subject requires a material. Unique per (template, subject, material).
	MaterialLink struct {
		ID           int       `db:"id" json:"id"`
		TemplateID   int       `db:"template_id" json:"templateId"`
		SubjectID    int       `db:"subject_id" json:"subjectId"`
		MaterialID   int       `db:"material_id" json:"materialId"`
		MaterialName string    `db:"material_name" json:"materialName"`
		CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	}
)
