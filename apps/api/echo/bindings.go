package echoapi

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
)

type (
	NameRequest struct {
		Name string `json:"name" validate:"required,alphanum_"`
	}

	NewTemplateRequest struct {
		ChildID int    `json:"childId" validate:"required"`
		Name    string `json:"name" validate:"required,alphanum_"`
	}

	BlockSpecRequest struct {
		BlockOrder int `json:"blockOrder" validate:"min=0"`
		SubjectID  int `json:"subjectId" validate:"required"`
	}

	ReplaceBlocksRequest struct {
		TargetDate core.Date          `json:"targetDate"`
		Blocks     []BlockSpecRequest `json:"blocks" validate:"dive"`
	}

	AttachMaterialRequest struct {
		SubjectID  int `json:"subjectId" validate:"required"`
		MaterialID int `json:"materialId" validate:"required"`
	}

	// SelectionRequest carries the client's session context. TargetDate is
	// optional; when omitted the server fills it from the current phase.
	SelectionRequest struct {
		ChildID    int       `json:"childId" validate:"required"`
		TemplateID int       `json:"templateId" validate:"required"`
		TargetDate core.Date `json:"targetDate"`
	}

	ToggleRequest struct {
		Checked bool `json:"checked"`
	}

	AcknowledgeRequest struct {
		SubjectID    int  `json:"subjectId" validate:"required"`
		Acknowledged bool `json:"acknowledged"`
	}

	NewRequirementRequest struct {
		SubjectID   int       `json:"subjectId" validate:"required"`
		Description string    `json:"description" validate:"required"`
		TargetDate  core.Date `json:"targetDate"`
		IsRecurring bool      `json:"isRecurring"`
	}
)

func validateStruct(data interface{}, validate *validator.Validate, translator ut.Translator) error {
	if err := validate.Struct(data); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

func (r NameRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func (r NewTemplateRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func (r ReplaceBlocksRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func (r AttachMaterialRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func (r SelectionRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func (r AcknowledgeRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func (r NewRequirementRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	return validateStruct(r, validate, translator)
}

func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return id, nil
}

func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "this parameter is required"})
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return id, nil
}

// queryDate parses the "date" query parameter, or returns the zero Date when
// it is absent.
func queryDate(ctx echo.Context, name string) (core.Date, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return core.Date{}, core.NewValidationError(errors.Cause(err),
			core.FieldError{Field: name, Error: "must be a YYYY-MM-DD date"})
	}
	return d, nil
}
