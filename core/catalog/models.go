package catalog

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
)

type (
	Child struct {
		ID        int       `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}

	// Subject is a named class/period, shared across all children and templates.
	Subject struct {
		ID        int       `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}

	// Material is a named physical item, shared globally.
	Material struct {
		ID        int       `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}

	// Requirement is a free-form "bring X / do Y" note attached to a subject.
	// It is open for date D while unresolved and either pinned to D or
	// recurring with no pinned date.
	Requirement struct {
		ID          int       `db:"id" json:"id"`
		SubjectID   int       `db:"subject_id" json:"subjectId"`
		SubjectName string    `db:"subject_name" json:"subjectName"`
		Description string    `db:"description" json:"description"`
		TargetDate  null.Time `db:"target_date" json:"targetDate,omitempty"`
		IsRecurring bool      `db:"is_recurring" json:"isRecurring"`
		CreatedAt   time.Time `db:"created_at" json:"createdAt"`
		ResolvedAt  null.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
	}

	NewRequirement struct {
		SubjectID   int
		Description string
		TargetDate  core.Date // zero value means no pinned date
		IsRecurring bool
	}
)
