package checklist

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
)

type (
	// Selection is the explicit session context threaded through calls:
	// which child, template and date the client is working on. The client
	// cache owns persisting it between calls; the core never stores it.
	Selection struct {
		ChildID    int       `json:"childId"`
		TemplateID int       `json:"templateId"`
		TargetDate core.Date `json:"targetDate"`
		InstanceID int       `json:"instanceId,omitempty"`
	}

	// Instance binds one child to one target date and one schedule version.
	// Unique per (ChildID, TargetDate); the version pointer may be repointed
	// while the prep window is open.
	Instance struct {
		ID                int       `db:"id" json:"id"`
		ChildID           int       `db:"child_id" json:"childId"`
		TargetDate        core.Date `db:"target_date" json:"targetDate"`
		ScheduleVersionID int       `db:"schedule_version_id" json:"scheduleVersionId"`
		CreatedAt         time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
	}

	// ItemState is one checked/unchecked row per (instance, subject,
	// material). Rows are created lazily by backfill, never at instance
	// creation.
	ItemState struct {
		ID         int       `db:"id" json:"id"`
		InstanceID int       `db:"checklist_instance_id" json:"checklistInstanceId"`
		SubjectID  int       `db:"subject_id" json:"subjectId"`
		MaterialID int       `db:"material_id" json:"materialId"`
		Checked    bool      `db:"is_checked" json:"checked"`
		CheckedAt  null.Time `db:"checked_at" json:"checkedAt,omitempty"`
		CreatedAt  time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
	}

	// SubjectMaterial is a required (subject, material) pair derived from
	// the template's material links; the unit of backfill.
	SubjectMaterial struct {
		SubjectID  int
		MaterialID int
	}

	// Acknowledgment is the first-class "prepared" flag for subjects that
	// require no materials. Unique per (instance, subject); excluded from
	// the authoritative aggregate.
	Acknowledgment struct {
		ID             int       `db:"id" json:"id"`
		InstanceID     int       `db:"checklist_instance_id" json:"checklistInstanceId"`
		SubjectID      int       `db:"subject_id" json:"subjectId"`
		Acknowledged   bool      `db:"acknowledged" json:"acknowledged"`
		AcknowledgedAt null.Time `db:"acknowledged_at" json:"acknowledgedAt,omitempty"`
	}

	Aggregates struct {
		Total    int  `json:"total"`
		Checked  int  `json:"checked"`
		AllReady bool `json:"allReady"`
	}

	MaterialItem struct {
		ItemID       int       `json:"checklistItemId"`
		MaterialID   int       `json:"materialId"`
		MaterialName string    `json:"materialName"`
		Checked      bool      `json:"checked"`
		CheckedAt    null.Time `json:"checkedAt,omitempty"`
	}

	SubjectEntry struct {
		SubjectID    int            `json:"subjectId"`
		SubjectName  string         `json:"subjectName"`
		HasMaterials bool           `json:"hasMaterials"`
		Acknowledged bool           `json:"acknowledged"`
		Materials    []MaterialItem `json:"materials"`
	}

	TemplateRef struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	// View is the assembled checklist for one instance: subjects in block
	// order, each with its material items, plus open subject requirements
	// for the date and the completion aggregates.
	View struct {
		InstanceID   int                   `json:"checklistInstanceId"`
		TargetDate   core.Date             `json:"targetDate"`
		Template     TemplateRef           `json:"template"`
		Subjects     []SubjectEntry        `json:"subjects"`
		Requirements []catalog.Requirement `json:"requirements"`
		Aggregates   Aggregates            `json:"aggregates"`
	}

	Summary struct {
		InstanceID int        `json:"checklistInstanceId"`
		TargetDate core.Date  `json:"targetDate"`
		Aggregates Aggregates `json:"aggregates"`
	}
)
