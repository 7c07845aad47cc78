package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
)

var (
	// errors
	ErrChildNotFound       = errors.New("child not found")
	ErrSubjectNotFound     = errors.New("subject not found")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrRequirementNotFound = errors.New("subject requirement not found")
)

type (
	Repository interface {
		ListChildren(ctx context.Context) ([]Child, error)
		GetChild(ctx context.Context, id int) (Child, error)
		CreateChild(ctx context.Context, name string) (Child, error)
		UpdateChildName(ctx context.Context, id int, name string) (Child, error)
		DeleteChild(ctx context.Context, id int) error

		ListSubjects(ctx context.Context) ([]Subject, error)
		CreateSubject(ctx context.Context, name string) (Subject, error)
		UpdateSubjectName(ctx context.Context, id int, name string) (Subject, error)
		DeleteSubject(ctx context.Context, id int) error

		ListMaterials(ctx context.Context) ([]Material, error)
		CreateMaterial(ctx context.Context, name string) (Material, error)
		UpdateMaterialName(ctx context.Context, id int, name string) (Material, error)
		DeleteMaterial(ctx context.Context, id int) error

		CreateRequirement(ctx context.Context, nr NewRequirement) (Requirement, error)
		// ListOpenRequirements returns unresolved requirements pinned to d
		// or recurring without a pinned date, ordered by id.
		ListOpenRequirements(ctx context.Context, d core.Date) ([]Requirement, error)
		ResolveRequirement(ctx context.Context, id int) (Requirement, error)
	}

	Service interface {
		Children(ctx context.Context) ([]Child, error)
		GetChild(ctx context.Context, id int) (Child, error)
		CreateChild(ctx context.Context, name string) (Child, error)
		RenameChild(ctx context.Context, id int, name string) (Child, error)
		DeleteChild(ctx context.Context, id int) error

		Subjects(ctx context.Context) ([]Subject, error)
		CreateSubject(ctx context.Context, name string) (Subject, error)
		RenameSubject(ctx context.Context, id int, name string) (Subject, error)
		DeleteSubject(ctx context.Context, id int) error

		Materials(ctx context.Context) ([]Material, error)
		CreateMaterial(ctx context.Context, name string) (Material, error)
		RenameMaterial(ctx context.Context, id int, name string) (Material, error)
		DeleteMaterial(ctx context.Context, id int) error

		CreateRequirement(ctx context.Context, nr NewRequirement) (Requirement, error)
		OpenRequirements(ctx context.Context, d core.Date) ([]Requirement, error)
		ResolveRequirement(ctx context.Context, id int) (Requirement, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Children(ctx context.Context) ([]Child, error) {
	return svc.repo.ListChildren(ctx)
}

func (svc *service) GetChild(ctx context.Context, id int) (Child, error) {
	return svc.repo.GetChild(ctx, id)
}

func (svc *service) CreateChild(ctx context.Context, name string) (Child, error) {
	return svc.repo.CreateChild(ctx, core.CleanString(name))
}

func (svc *service) RenameChild(ctx context.Context, id int, name string) (Child, error) {
	return svc.repo.UpdateChildName(ctx, id, core.CleanString(name))
}

func (svc *service) DeleteChild(ctx context.Context, id int) error {
	return svc.repo.DeleteChild(ctx, id)
}

func (svc *service) Subjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.ListSubjects(ctx)
}

func (svc *service) CreateSubject(ctx context.Context, name string) (Subject, error) {
	return svc.repo.CreateSubject(ctx, core.CleanString(name))
}

func (svc *service) RenameSubject(ctx context.Context, id int, name string) (Subject, error) {
	return svc.repo.UpdateSubjectName(ctx, id, core.CleanString(name))
}

func (svc *service) DeleteSubject(ctx context.Context, id int) error {
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *service) Materials(ctx context.Context) ([]Material, error) {
	return svc.repo.ListMaterials(ctx)
}

func (svc *service) CreateMaterial(ctx context.Context, name string) (Material, error) {
	return svc.repo.CreateMaterial(ctx, core.CleanString(name))
}

func (svc *service) RenameMaterial(ctx context.Context, id int, name string) (Material, error) {
	return svc.repo.UpdateMaterialName(ctx, id, core.CleanString(name))
}

func (svc *service) DeleteMaterial(ctx context.Context, id int) error {
	return svc.repo.DeleteMaterial(ctx, id)
}

func (svc *service) CreateRequirement(ctx context.Context, nr NewRequirement) (Requirement, error) {
	nr.Description = core.CleanString(nr.Description)
	return svc.repo.CreateRequirement(ctx, nr)
}

func (svc *service) OpenRequirements(ctx context.Context, d core.Date) ([]Requirement, error) {
	return svc.repo.ListOpenRequirements(ctx, d)
}

func (svc *service) ResolveRequirement(ctx context.Context, id int) (Requirement, error) {
	return svc.repo.ResolveRequirement(ctx, id)
}
