package schedule

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
)

var (
	// errors
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrVersionNotFound  = errors.New("schedule version not found")
	ErrLinkNotFound     = errors.New("template material link not found")
)

type (
	Repository interface {
		// Atomic runs fn against a repository bound to a single
		// serializable transaction, committing iff fn returns nil.
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		GetTemplate(ctx context.Context, id int) (Template, error)
		ListTemplatesByChild(ctx context.Context, childID int) ([]Template, error)
		CreateTemplate(ctx context.Context, childID int, name string) (Template, error)
		UpdateTemplateName(ctx context.Context, id int, name string) (Template, error)
		DeleteTemplate(ctx context.Context, id int) error

		GetVersion(ctx context.Context, id int) (Version, error)
		// LatestVersionOnOrBefore returns the version with the greatest
		// validFrom <= d, or ErrVersionNotFound.
		LatestVersionOnOrBefore(ctx context.Context, templateID int, d core.Date) (Version, error)
		CreateVersion(ctx context.Context, templateID int, validFrom core.Date) (Version, error)

		ListBlocks(ctx context.Context, versionID int) ([]Block, error)
		InsertBlocks(ctx context.Context, versionID int, specs []BlockSpec) error
		DeleteBlocks(ctx context.Context, versionID int) error

		ListMaterialLinks(ctx context.Context, templateID int, subjectIDs []int) ([]MaterialLink, error)
		AttachMaterial(ctx context.Context, templateID, subjectID, materialID int) (MaterialLink, error)
		DetachMaterial(ctx context.Context, templateID, subjectID, materialID int) error
	}

	Service interface {
		GetTemplate(ctx context.Context, id int) (Template, error)
		TemplatesByChild(ctx context.Context, childID int) ([]Template, error)
		CreateTemplate(ctx context.Context, childID int, name string) (Template, error)
		RenameTemplate(ctx context.Context, id int, name string) (Template, error)
		DeleteTemplate(ctx context.Context, id int) error

		// Resolve returns the version governing templateID on targetDate,
		// cloning a new snapshot on first divergence. Idempotent.
		Resolve(ctx context.Context, templateID int, targetDate core.Date) (Version, error)
		GetVersion(ctx context.Context, id int) (Version, error)
		VersionBlocks(ctx context.Context, versionID int) ([]Block, error)
		// BlocksEffectiveOn returns the blocks of the version effective on d,
		// or (nil, 0, nil) when the template has no structure yet as of d.
		BlocksEffectiveOn(ctx context.Context, templateID int, d core.Date) ([]Block, int, error)
		// ReplaceBlocks swaps the subject sequence taking effect on targetDate,
		// resolving (and possibly cloning) the governing version first so past
		// dates keep their snapshots.
		ReplaceBlocks(ctx context.Context, templateID int, targetDate core.Date, specs []BlockSpec) (Version, []Block, error)

		MaterialLinks(ctx context.Context, templateID int, subjectIDs []int) ([]MaterialLink, error)
		AttachMaterial(ctx context.Context, templateID, subjectID, materialID int) (MaterialLink, error)
		DetachMaterial(ctx context.Context, templateID, subjectID, materialID int) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) GetTemplate(ctx context.Context, id int) (Template, error) {
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *service) TemplatesByChild(ctx context.Context, childID int) ([]Template, error) {
	return svc.repo.ListTemplatesByChild(ctx, childID)
}

func (svc *service) CreateTemplate(ctx context.Context, childID int, name string) (Template, error) {
	return svc.repo.CreateTemplate(ctx, childID, core.CleanString(name))
}

func (svc *service) RenameTemplate(ctx context.Context, id int, name string) (Template, error) {
	return svc.repo.UpdateTemplateName(ctx, id, core.CleanString(name))
}

func (svc *service) DeleteTemplate(ctx context.Context, id int) error {
	return svc.repo.DeleteTemplate(ctx, id)
}

func (svc *service) GetVersion(ctx context.Context, id int) (Version, error) {
	return svc.repo.GetVersion(ctx, id)
}

func (svc *service) VersionBlocks(ctx context.Context, versionID int) ([]Block, error) {
	return svc.repo.ListBlocks(ctx, versionID)
}

// Resolve finds the version with the latest validFrom <= targetDate.
// None -> a fresh empty version stamped targetDate. Exact match -> returned
// as-is. Earlier -> cloned into a new version stamped targetDate with all
// blocks copied, so structural edits for the future never disturb snapshots
// already locked in for past dates. The whole step runs in one transaction;
// a concurrent resolver losing the (templateID, validFrom) uniqueness race
// recovers by re-reading the winner.
func (svc *service) Resolve(ctx context.Context, templateID int, targetDate core.Date) (Version, error) {
	var resolved Version
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		latest, err := repo.LatestVersionOnOrBefore(ctx, templateID, targetDate)
		switch errors.Cause(err) {
		case nil:
		case ErrVersionNotFound:
			resolved, err = repo.CreateVersion(ctx, templateID, targetDate)
			return errors.Wrap(err, "creating first version")
		default:
			return errors.Wrap(err, "querying latest version")
		}

		if latest.ValidFrom.Equal(targetDate) {
			resolved = latest
			return nil
		}

		clone, err := repo.CreateVersion(ctx, templateID, targetDate)
		if err != nil {
			return errors.Wrap(err, "cloning version")
		}
		blocks, err := repo.ListBlocks(ctx, latest.ID)
		if err != nil {
			return errors.Wrap(err, "listing source blocks")
		}
		if len(blocks) > 0 {
			specs := make([]BlockSpec, 0, len(blocks))
			for _, b := range blocks {
				specs = append(specs, BlockSpec{BlockOrder: b.BlockOrder, SubjectID: b.SubjectID})
			}
			if err = repo.InsertBlocks(ctx, clone.ID, specs); err != nil {
				return errors.Wrap(err, "copying blocks")
			}
		}
		resolved = clone
		return nil
	})
	if errors.Cause(err) == core.ErrConflict {
		// another writer created the (templateID, targetDate) version first
		return svc.repo.LatestVersionOnOrBefore(ctx, templateID, targetDate)
	}
	return resolved, err
}

func (svc *service) BlocksEffectiveOn(ctx context.Context, templateID int, d core.Date) ([]Block, int, error) {
	ver, err := svc.repo.LatestVersionOnOrBefore(ctx, templateID, d)
	if errors.Cause(err) == ErrVersionNotFound {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	blocks, err := svc.repo.ListBlocks(ctx, ver.ID)
	return blocks, ver.ID, err
}

func (svc *service) ReplaceBlocks(ctx context.Context, templateID int, targetDate core.Date, specs []BlockSpec) (Version, []Block, error) {
	ver, err := svc.Resolve(ctx, templateID, targetDate)
	if err != nil {
		return Version{}, nil, err
	}
	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.DeleteBlocks(ctx, ver.ID); err != nil {
			return errors.Wrap(err, "clearing blocks")
		}
		if len(specs) == 0 {
			return nil
		}
		return errors.Wrap(repo.InsertBlocks(ctx, ver.ID, specs), "inserting blocks")
	})
	if err != nil {
		return Version{}, nil, err
	}
	blocks, err := svc.repo.ListBlocks(ctx, ver.ID)
	return ver, blocks, err
}

func (svc *service) MaterialLinks(ctx context.Context, templateID int, subjectIDs []int) ([]MaterialLink, error) {
	return svc.repo.ListMaterialLinks(ctx, templateID, subjectIDs)
}

func (svc *service) AttachMaterial(ctx context.Context, templateID, subjectID, materialID int) (MaterialLink, error) {
	return svc.repo.AttachMaterial(ctx, templateID, subjectID, materialID)
}

func (svc *service) DetachMaterial(ctx context.Context, templateID, subjectID, materialID int) error {
	return svc.repo.DetachMaterial(ctx, templateID, subjectID, materialID)
}
