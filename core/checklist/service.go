package checklist

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/audit"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/schedule"
)

var (
	// errors
	ErrInstanceNotFound = errors.New("checklist instance not found")
	ErrItemNotFound     = errors.New("checklist item not found")
)

type (
	Repository interface {
		// Atomic runs fn against a repository bound to a single
		// serializable transaction, committing iff fn returns nil.
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		GetInstance(ctx context.Context, childID int, targetDate core.Date) (Instance, error)
		GetInstanceByID(ctx context.Context, id int) (Instance, error)
		// CreateInstance returns core.ErrConflict when another writer
		// created the (childID, targetDate) instance first.
		CreateInstance(ctx context.Context, childID int, targetDate core.Date, versionID int) (Instance, error)
		UpdateInstanceVersion(ctx context.Context, instanceID, versionID int) error

		ListItemStates(ctx context.Context, instanceID int) ([]ItemState, error)
		InsertItemStates(ctx context.Context, instanceID int, pairs []SubjectMaterial) ([]ItemState, error)
		DeleteItemStates(ctx context.Context, instanceID int) error
		SetItemChecked(ctx context.Context, itemID int, checked bool, checkedAt null.Time) (ItemState, error)

		ListAcknowledgments(ctx context.Context, instanceID int) ([]Acknowledgment, error)
		UpsertAcknowledgment(ctx context.Context, instanceID, subjectID int, acked bool, ackedAt null.Time) (Acknowledgment, error)
		DeleteAcknowledgments(ctx context.Context, instanceID int) error
	}

	Service interface {
		// Ensure guarantees exactly one instance exists for the selection's
		// (child, targetDate), repoints it if the governing version changed,
		// backfills missing item states and returns the assembled view.
		// Idempotent.
		Ensure(ctx context.Context, sel Selection) (View, error)
		// Load assembles the view for an existing instance without writing
		// anything. ErrInstanceNotFound when the date was never ensured.
		Load(ctx context.Context, childID int, targetDate core.Date) (View, error)
		// Reselect discards the instance's item states and acknowledgments,
		// repoints it at the version resolved for the selection's template
		// and backfills fresh unchecked items.
		Reselect(ctx context.Context, sel Selection) (View, error)
		// Toggle blindly overwrites the item's checked flag and timestamp.
		Toggle(ctx context.Context, itemID int, checked bool) (ItemState, error)
		// Acknowledge upserts the "prepared" flag of a zero-material subject.
		Acknowledge(ctx context.Context, instanceID, subjectID int, acked bool) (Acknowledgment, error)
		Summarize(ctx context.Context, childID int, targetDate core.Date) (Summary, error)
	}

	service struct {
		repo  Repository
		sched schedule.Service
		cat   catalog.Service
		aud   audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, sched schedule.Service, cat catalog.Service, aud audit.Service) Service {
	return &service{repo: repo, sched: sched, cat: cat, aud: aud}
}

func (svc *service) Ensure(ctx context.Context, sel Selection) (View, error) {
	tmpl, ver, blocks, links, err := svc.resolveStructure(ctx, sel)
	if err != nil {
		return View{}, err
	}

	var inst Instance
	var states []ItemState
	err = svc.atomicReconcile(ctx, func(repo Repository) error {
		var err error
		if inst, err = svc.reconcileInstance(ctx, repo, sel.ChildID, sel.TargetDate, ver.ID); err != nil {
			return err
		}
		states, err = svc.backfill(ctx, repo, inst.ID, blocks, links)
		return err
	})
	if err != nil {
		return View{}, err
	}

	svc.aud.Record(ctx, svc.event(audit.EventChecklistEnsured, inst, map[string]interface{}{
		"templateId": tmpl.ID,
		"versionId":  ver.ID,
	}))
	return svc.assembleView(ctx, inst, tmpl, blocks, links, states)
}

func (svc *service) Load(ctx context.Context, childID int, targetDate core.Date) (View, error) {
	inst, err := svc.repo.GetInstance(ctx, childID, targetDate)
	if err != nil {
		return View{}, err
	}
	ver, err := svc.sched.GetVersion(ctx, inst.ScheduleVersionID)
	if err != nil {
		return View{}, errors.Wrap(err, "loading instance version")
	}
	tmpl, err := svc.sched.GetTemplate(ctx, ver.TemplateID)
	if err != nil {
		return View{}, errors.Wrap(err, "loading instance template")
	}
	blocks, err := svc.sched.VersionBlocks(ctx, ver.ID)
	if err != nil {
		return View{}, err
	}
	links, err := svc.sched.MaterialLinks(ctx, tmpl.ID, distinctSubjectIDs(blocks))
	if err != nil {
		return View{}, err
	}
	states, err := svc.repo.ListItemStates(ctx, inst.ID)
	if err != nil {
		return View{}, err
	}
	return svc.assembleView(ctx, inst, tmpl, blocks, links, states)
}

func (svc *service) Reselect(ctx context.Context, sel Selection) (View, error) {
	tmpl, ver, blocks, links, err := svc.resolveStructure(ctx, sel)
	if err != nil {
		return View{}, err
	}

	var inst Instance
	var states []ItemState
	err = svc.atomicReconcile(ctx, func(repo Repository) error {
		var err error
		if inst, err = svc.reconcileInstance(ctx, repo, sel.ChildID, sel.TargetDate, ver.ID); err != nil {
			return err
		}
		// the new structure may share nothing with the old one: discard all
		// prior progress rather than trying to merge it
		if err = repo.DeleteItemStates(ctx, inst.ID); err != nil {
			return errors.Wrap(err, "discarding item states")
		}
		if err = repo.DeleteAcknowledgments(ctx, inst.ID); err != nil {
			return errors.Wrap(err, "discarding acknowledgments")
		}
		states, err = svc.backfill(ctx, repo, inst.ID, blocks, links)
		return err
	})
	if err != nil {
		return View{}, err
	}

	svc.aud.Record(ctx, svc.event(audit.EventTemplateReselected, inst, map[string]interface{}{
		"templateId": tmpl.ID,
		"versionId":  ver.ID,
	}))
	return svc.assembleView(ctx, inst, tmpl, blocks, links, states)
}

func (svc *service) Toggle(ctx context.Context, itemID int, checked bool) (ItemState, error) {
	var checkedAt null.Time
	if checked {
		checkedAt = null.TimeFrom(time.Now().UTC())
	}
	st, err := svc.repo.SetItemChecked(ctx, itemID, checked, checkedAt)
	if err != nil {
		return ItemState{}, err
	}

	svc.aud.Record(ctx, audit.Event{
		Type:       audit.EventItemToggled,
		InstanceID: null.IntFrom(st.InstanceID),
		Payload:    marshalPayload(map[string]interface{}{"itemId": st.ID, "checked": checked}),
	})
	return st, nil
}

func (svc *service) Acknowledge(ctx context.Context, instanceID, subjectID int, acked bool) (Acknowledgment, error) {
	inst, err := svc.repo.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return Acknowledgment{}, err
	}
	var ackedAt null.Time
	if acked {
		ackedAt = null.TimeFrom(time.Now().UTC())
	}
	ack, err := svc.repo.UpsertAcknowledgment(ctx, inst.ID, subjectID, acked, ackedAt)
	if err != nil {
		return Acknowledgment{}, err
	}

	svc.aud.Record(ctx, svc.event(audit.EventSubjectAcked, inst, map[string]interface{}{
		"subjectId":    subjectID,
		"acknowledged": acked,
	}))
	return ack, nil
}

func (svc *service) Summarize(ctx context.Context, childID int, targetDate core.Date) (Summary, error) {
	inst, err := svc.repo.GetInstance(ctx, childID, targetDate)
	if err != nil {
		return Summary{}, err
	}
	states, err := svc.repo.ListItemStates(ctx, inst.ID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		InstanceID: inst.ID,
		TargetDate: inst.TargetDate,
		Aggregates: aggregate(states),
	}, nil
}

// resolveStructure checks template ownership and resolves the version,
// blocks and material links governing the selection's target date.
func (svc *service) resolveStructure(ctx context.Context, sel Selection) (schedule.Template, schedule.Version, []schedule.Block, []schedule.MaterialLink, error) {
	tmpl, err := svc.sched.GetTemplate(ctx, sel.TemplateID)
	if err != nil {
		return schedule.Template{}, schedule.Version{}, nil, nil, err
	}
	if tmpl.ChildID != sel.ChildID {
		return schedule.Template{}, schedule.Version{}, nil, nil,
			errors.Wrap(schedule.ErrTemplateNotFound, "template does not belong to child")
	}
	ver, err := svc.sched.Resolve(ctx, sel.TemplateID, sel.TargetDate)
	if err != nil {
		return schedule.Template{}, schedule.Version{}, nil, nil, err
	}
	blocks, err := svc.sched.VersionBlocks(ctx, ver.ID)
	if err != nil {
		return schedule.Template{}, schedule.Version{}, nil, nil, err
	}
	links, err := svc.sched.MaterialLinks(ctx, tmpl.ID, distinctSubjectIDs(blocks))
	if err != nil {
		return schedule.Template{}, schedule.Version{}, nil, nil, err
	}
	return tmpl, ver, blocks, links, nil
}

// atomicReconcile runs fn in one transaction. A unique violation inside it
// means a concurrent writer committed the instance (or an item state) first;
// the transaction is doomed at that point, so it is rolled back and fn reruns
// against the winner's rows.
func (svc *service) atomicReconcile(ctx context.Context, fn func(repo Repository) error) error {
	err := svc.repo.Atomic(ctx, fn)
	if errors.Cause(err) == core.ErrConflict {
		err = svc.repo.Atomic(ctx, fn)
	}
	return err
}

// reconcileInstance gets or creates the (childID, targetDate) instance and
// repoints it at versionID if needed. Losing the uniqueness race on create
// surfaces core.ErrConflict, which aborts the transaction; recovery belongs
// to the caller, outside it.
func (svc *service) reconcileInstance(ctx context.Context, repo Repository, childID int, targetDate core.Date, versionID int) (Instance, error) {
	inst, err := repo.GetInstance(ctx, childID, targetDate)
	switch errors.Cause(err) {
	case nil:
	case ErrInstanceNotFound:
		inst, err = repo.CreateInstance(ctx, childID, targetDate, versionID)
		if err != nil {
			return Instance{}, errors.Wrap(err, "creating instance")
		}
	default:
		return Instance{}, errors.Wrap(err, "querying instance")
	}

	if inst.ScheduleVersionID != versionID {
		if err = repo.UpdateInstanceVersion(ctx, inst.ID, versionID); err != nil {
			return Instance{}, errors.Wrap(err, "repointing instance version")
		}
		inst.ScheduleVersionID = versionID
	}
	return inst, nil
}

// backfill materializes the item states missing for the required
// (subject, material) pairs, leaving existing rows untouched. Re-running it
// never duplicates or loses state.
func (svc *service) backfill(ctx context.Context, repo Repository, instanceID int, blocks []schedule.Block, links []schedule.MaterialLink) ([]ItemState, error) {
	existing, err := repo.ListItemStates(ctx, instanceID)
	if err != nil {
		return nil, errors.Wrap(err, "listing item states")
	}

	seen := make(map[SubjectMaterial]bool, len(existing))
	for _, st := range existing {
		seen[SubjectMaterial{SubjectID: st.SubjectID, MaterialID: st.MaterialID}] = true
	}

	scheduled := make(map[int]bool, len(blocks))
	for _, b := range blocks {
		scheduled[b.SubjectID] = true
	}

	var missing []SubjectMaterial
	for _, l := range links {
		pair := SubjectMaterial{SubjectID: l.SubjectID, MaterialID: l.MaterialID}
		if scheduled[l.SubjectID] && !seen[pair] {
			missing = append(missing, pair)
			seen[pair] = true
		}
	}
	if len(missing) == 0 {
		return existing, nil
	}

	inserted, err := repo.InsertItemStates(ctx, instanceID, missing)
	if err != nil {
		return nil, errors.Wrap(err, "backfilling item states")
	}
	return append(existing, inserted...), nil
}

func (svc *service) assembleView(ctx context.Context, inst Instance, tmpl schedule.Template, blocks []schedule.Block, links []schedule.MaterialLink, states []ItemState) (View, error) {
	acks, err := svc.repo.ListAcknowledgments(ctx, inst.ID)
	if err != nil {
		return View{}, err
	}
	reqs, err := svc.cat.OpenRequirements(ctx, inst.TargetDate)
	if err != nil {
		return View{}, err
	}

	stateIdx := make(map[SubjectMaterial]ItemState, len(states))
	for _, st := range states {
		stateIdx[SubjectMaterial{SubjectID: st.SubjectID, MaterialID: st.MaterialID}] = st
	}
	ackIdx := make(map[int]bool, len(acks))
	for _, a := range acks {
		ackIdx[a.SubjectID] = a.Acknowledged
	}

	subjects := make([]SubjectEntry, 0, len(blocks))
	for _, b := range blocks {
		entry := SubjectEntry{
			SubjectID:    b.SubjectID,
			SubjectName:  b.SubjectName,
			Acknowledged: ackIdx[b.SubjectID],
			Materials:    []MaterialItem{},
		}
		for _, l := range links {
			if l.SubjectID != b.SubjectID {
				continue
			}
			item := MaterialItem{
				MaterialID:   l.MaterialID,
				MaterialName: l.MaterialName,
			}
			if st, ok := stateIdx[SubjectMaterial{SubjectID: l.SubjectID, MaterialID: l.MaterialID}]; ok {
				item.ItemID = st.ID
				item.Checked = st.Checked
				item.CheckedAt = st.CheckedAt
			}
			entry.Materials = append(entry.Materials, item)
		}
		sort.SliceStable(entry.Materials, func(i, j int) bool {
			return strings.ToLower(entry.Materials[i].MaterialName) < strings.ToLower(entry.Materials[j].MaterialName)
		})
		entry.HasMaterials = len(entry.Materials) > 0
		subjects = append(subjects, entry)
	}

	if reqs == nil {
		reqs = []catalog.Requirement{}
	}
	return View{
		InstanceID:   inst.ID,
		TargetDate:   inst.TargetDate,
		Template:     TemplateRef{ID: tmpl.ID, Name: tmpl.Name},
		Subjects:     subjects,
		Requirements: reqs,
		Aggregates:   aggregate(states),
	}, nil
}

// distinctSubjectIDs returns the distinct subject IDs among the ordered
// blocks, preserving first-seen order.
func distinctSubjectIDs(blocks []schedule.Block) []int {
	seen := make(map[int]bool, len(blocks))
	ids := make([]int, 0, len(blocks))
	for _, b := range blocks {
		if !seen[b.SubjectID] {
			seen[b.SubjectID] = true
			ids = append(ids, b.SubjectID)
		}
	}
	return ids
}

// aggregate computes the authoritative completion counts over materialized
// item states. Subjects contributing zero materials have no rows here, so a
// zero-item instance is never "ready".
func aggregate(states []ItemState) Aggregates {
	agg := Aggregates{Total: len(states)}
	for _, st := range states {
		if st.Checked {
			agg.Checked++
		}
	}
	agg.AllReady = agg.Total > 0 && agg.Checked == agg.Total
	return agg
}

func (svc *service) event(typ string, inst Instance, payload map[string]interface{}) audit.Event {
	return audit.Event{
		Type:       typ,
		ChildID:    null.IntFrom(inst.ChildID),
		InstanceID: null.IntFrom(inst.ID),
		Payload:    marshalPayload(payload),
	}
}

func marshalPayload(payload map[string]interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
