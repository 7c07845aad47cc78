package checklist_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/audit"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/checklist"
	"github.com/trezcool/begi/core/schedule"
	logsvc "github.com/trezcool/begi/services/logger"
	inmemdb "github.com/trezcool/begi/storage/database/inmem"
)

type fixture struct {
	svc      checklist.Service
	schedSvc schedule.Service
	catSvc   catalog.Service
	auditSvc audit.Service
	repo     checklist.Repository

	child    catalog.Child
	math     catalog.Subject
	art      catalog.Subject
	pe       catalog.Subject
	calc     catalog.Material
	notebook catalog.Material
	paint    catalog.Material

	tmpl       schedule.Template
	targetDate core.Date
}

// setup builds a template with three subjects effective on targetDate:
// math (calculator, notebook), art (paint set) and PE (no materials).
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.NewDB()
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))

	f := &fixture{repo: inmemdb.NewChecklistRepository(db)}
	f.catSvc = catalog.NewService(inmemdb.NewCatalogRepository(db))
	f.schedSvc = schedule.NewService(inmemdb.NewScheduleRepository(db))
	f.auditSvc = audit.NewService(inmemdb.NewAuditRepository(db), logger)
	f.svc = checklist.NewService(f.repo, f.schedSvc, f.catSvc, f.auditSvc)

	mustCreate := func(what string, fn func() error) {
		if err := fn(); err != nil {
			t.Fatalf("creating %s failed: %v", what, err)
		}
	}
	var err error
	mustCreate("child", func() error { f.child, err = f.catSvc.CreateChild(ctx, "Amani"); return err })
	mustCreate("math", func() error { f.math, err = f.catSvc.CreateSubject(ctx, "Mathematics"); return err })
	mustCreate("art", func() error { f.art, err = f.catSvc.CreateSubject(ctx, "Art"); return err })
	mustCreate("pe", func() error { f.pe, err = f.catSvc.CreateSubject(ctx, "Physical Education"); return err })
	mustCreate("calculator", func() error { f.calc, err = f.catSvc.CreateMaterial(ctx, "Calculator"); return err })
	mustCreate("notebook", func() error { f.notebook, err = f.catSvc.CreateMaterial(ctx, "Notebook"); return err })
	mustCreate("paint", func() error { f.paint, err = f.catSvc.CreateMaterial(ctx, "Paint set"); return err })
	mustCreate("template", func() error { f.tmpl, err = f.schedSvc.CreateTemplate(ctx, f.child.ID, "Monday"); return err })

	f.targetDate = core.NewDate(2026, time.September, 2)
	if _, _, err = f.schedSvc.ReplaceBlocks(ctx, f.tmpl.ID, f.targetDate, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.math.ID},
		{BlockOrder: 1, SubjectID: f.art.ID},
		{BlockOrder: 2, SubjectID: f.pe.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}
	for _, link := range [][2]int{
		{f.math.ID, f.calc.ID},
		{f.math.ID, f.notebook.ID},
		{f.art.ID, f.paint.ID},
	} {
		if _, err = f.schedSvc.AttachMaterial(ctx, f.tmpl.ID, link[0], link[1]); err != nil {
			t.Fatalf("AttachMaterial() failed: %v", err)
		}
	}
	return f
}

func (f *fixture) selection() checklist.Selection {
	return checklist.Selection{ChildID: f.child.ID, TemplateID: f.tmpl.ID, TargetDate: f.targetDate}
}

func (f *fixture) ensure(t *testing.T) checklist.View {
	t.Helper()
	view, err := f.svc.Ensure(context.Background(), f.selection())
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	return view
}

func TestService_Ensure_materializesItems(t *testing.T) {
	f := setup(t)
	view := f.ensure(t)

	if view.Aggregates.Total != 3 || view.Aggregates.Checked != 0 || view.Aggregates.AllReady {
		t.Errorf("Ensure() aggregates = %+v, want {3 0 false}", view.Aggregates)
	}
	if len(view.Subjects) != 3 {
		t.Fatalf("Ensure() subjects = %d, want 3", len(view.Subjects))
	}

	math := view.Subjects[0]
	if math.SubjectID != f.math.ID || !math.HasMaterials || len(math.Materials) != 2 {
		t.Errorf("Ensure() math entry = %+v, want 2 materials", math)
	}
	// materials sorted by name: Calculator before Notebook
	if math.Materials[0].MaterialName != "Calculator" || math.Materials[1].MaterialName != "Notebook" {
		t.Errorf("Ensure() math materials = %v, want Calculator then Notebook", math.Materials)
	}

	pe := view.Subjects[2]
	if pe.SubjectID != f.pe.ID || pe.HasMaterials || len(pe.Materials) != 0 {
		t.Errorf("Ensure() PE entry = %+v, want no materials", pe)
	}
}

func TestService_Ensure_idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.ensure(t)

	// check one item off, then ensure again
	item := first.Subjects[0].Materials[0]
	if _, err := f.svc.Toggle(ctx, item.ItemID, true); err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}

	second := f.ensure(t)
	if second.InstanceID != first.InstanceID {
		t.Errorf("Ensure() (again) instance = %d, want %d", second.InstanceID, first.InstanceID)
	}
	if second.Aggregates.Total != 3 || second.Aggregates.Checked != 1 {
		t.Errorf("Ensure() (again) aggregates = %+v, want {3 1 false}", second.Aggregates)
	}
	if got := second.Subjects[0].Materials[0]; !got.Checked || got.ItemID != item.ItemID {
		t.Errorf("Ensure() (again) lost checked state: %+v", got)
	}
}

func TestService_Ensure_backfillsNewLinks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.ensure(t)

	item := first.Subjects[0].Materials[0]
	if _, err := f.svc.Toggle(ctx, item.ItemID, true); err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}

	// a new requirement appears mid-week: art now also needs a notebook
	if _, err := f.schedSvc.AttachMaterial(ctx, f.tmpl.ID, f.art.ID, f.notebook.ID); err != nil {
		t.Fatalf("AttachMaterial() failed: %v", err)
	}

	second := f.ensure(t)
	if second.Aggregates.Total != 4 {
		t.Errorf("Ensure() total = %d, want 4", second.Aggregates.Total)
	}
	if second.Aggregates.Checked != 1 {
		t.Errorf("Ensure() checked = %d, want 1 (existing state preserved)", second.Aggregates.Checked)
	}
	if got := len(second.Subjects[1].Materials); got != 2 {
		t.Errorf("Ensure() art materials = %d, want 2", got)
	}
}

func TestService_Ensure_repointsOnStructureChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.ensure(t)

	inst, err := f.repo.GetInstanceByID(ctx, first.InstanceID)
	if err != nil {
		t.Fatalf("GetInstanceByID() failed: %v", err)
	}
	origVersion := inst.ScheduleVersionID

	// editing the sequence for the same date mutates the already-resolved
	// version in place, so no repoint happens
	if _, _, err = f.schedSvc.ReplaceBlocks(ctx, f.tmpl.ID, f.targetDate, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.art.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}
	second := f.ensure(t)
	inst, err = f.repo.GetInstanceByID(ctx, second.InstanceID)
	if err != nil {
		t.Fatalf("GetInstanceByID() failed: %v", err)
	}
	if inst.ScheduleVersionID != origVersion {
		t.Errorf("Ensure() version = %d, want %d (same valid_from resolves in place)", inst.ScheduleVersionID, origVersion)
	}
	if len(second.Subjects) != 1 || second.Subjects[0].SubjectID != f.art.ID {
		t.Errorf("Ensure() subjects = %+v, want just art", second.Subjects)
	}
}

// racedRepo loses the first (child, targetDate) insert: a concurrent writer
// sneaks its row in just before, so CreateInstance hits the uniqueness
// constraint and the transaction comes back with a conflict.
type racedRepo struct {
	checklist.Repository
	raced bool
}

func (r *racedRepo) Atomic(_ context.Context, fn func(repo checklist.Repository) error) error {
	return fn(r)
}

func (r *racedRepo) CreateInstance(ctx context.Context, childID int, targetDate core.Date, versionID int) (checklist.Instance, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.Repository.CreateInstance(ctx, childID, targetDate, versionID); err != nil {
			return checklist.Instance{}, err
		}
	}
	return r.Repository.CreateInstance(ctx, childID, targetDate, versionID)
}

func TestService_Ensure_recoversFromInsertRace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := &racedRepo{Repository: f.repo}
	svc := checklist.NewService(repo, f.schedSvc, f.catSvc, f.auditSvc)

	view, err := svc.Ensure(ctx, f.selection())
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if !repo.raced {
		t.Fatal("expected the insert to lose the race")
	}

	// the winner's row is adopted, not duplicated
	inst, err := f.repo.GetInstance(ctx, f.child.ID, f.targetDate)
	if err != nil {
		t.Fatalf("GetInstance() failed: %v", err)
	}
	if view.InstanceID != inst.ID {
		t.Errorf("Ensure() instance = %d, want the winner's %d", view.InstanceID, inst.ID)
	}
	if view.Aggregates.Total != 3 || view.Aggregates.Checked != 0 {
		t.Errorf("Ensure() aggregates = %+v, want {3 0 false}", view.Aggregates)
	}
}

func TestService_Ensure_wrongChild(t *testing.T) {
	f := setup(t)
	sel := f.selection()
	sel.ChildID++

	_, err := f.svc.Ensure(context.Background(), sel)
	if errors.Cause(err) != schedule.ErrTemplateNotFound {
		t.Errorf("Ensure() error = %v, want %v", err, schedule.ErrTemplateNotFound)
	}
}

func TestService_Toggle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.ensure(t)
	itemID := view.Subjects[0].Materials[0].ItemID

	st, err := f.svc.Toggle(ctx, itemID, true)
	if err != nil {
		t.Fatalf("Toggle(true) failed: %v", err)
	}
	if !st.Checked || !st.CheckedAt.Valid {
		t.Errorf("Toggle(true) = %+v, want checked with timestamp", st)
	}

	st, err = f.svc.Toggle(ctx, itemID, false)
	if err != nil {
		t.Fatalf("Toggle(false) failed: %v", err)
	}
	if st.Checked || st.CheckedAt.Valid {
		t.Errorf("Toggle(false) = %+v, want unchecked without timestamp", st)
	}

	if _, err = f.svc.Toggle(ctx, 99999, true); errors.Cause(err) != checklist.ErrItemNotFound {
		t.Errorf("Toggle(unknown) error = %v, want %v", err, checklist.ErrItemNotFound)
	}
}

func TestService_Summarize_allReady(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.ensure(t)

	for _, subj := range view.Subjects {
		for _, item := range subj.Materials {
			if _, err := f.svc.Toggle(ctx, item.ItemID, true); err != nil {
				t.Fatalf("Toggle() failed: %v", err)
			}
		}
	}

	sum, err := f.svc.Summarize(ctx, f.child.ID, f.targetDate)
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	if sum.Aggregates.Total != 3 || sum.Aggregates.Checked != 3 || !sum.Aggregates.AllReady {
		t.Errorf("Summarize() aggregates = %+v, want {3 3 true}", sum.Aggregates)
	}
}

func TestService_Summarize_zeroItemsNeverReady(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// a template whose only subject needs no materials
	tmpl, err := f.schedSvc.CreateTemplate(ctx, f.child.ID, "Sports day")
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	if _, _, err = f.schedSvc.ReplaceBlocks(ctx, tmpl.ID, f.targetDate, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.pe.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}

	sel := checklist.Selection{ChildID: f.child.ID, TemplateID: tmpl.ID, TargetDate: f.targetDate}
	view, err := f.svc.Ensure(ctx, sel)
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if view.Aggregates.Total != 0 || view.Aggregates.AllReady {
		t.Errorf("Ensure() aggregates = %+v, want {0 0 false}", view.Aggregates)
	}
}

func TestService_Summarize_neverEnsured(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Summarize(context.Background(), f.child.ID, f.targetDate)
	if errors.Cause(err) != checklist.ErrInstanceNotFound {
		t.Errorf("Summarize() error = %v, want %v", err, checklist.ErrInstanceNotFound)
	}
}

func TestService_Reselect_discardsProgress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.ensure(t)

	// progress: one item checked, PE acknowledged
	if _, err := f.svc.Toggle(ctx, first.Subjects[0].Materials[0].ItemID, true); err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}
	if _, err := f.svc.Acknowledge(ctx, first.InstanceID, f.pe.ID, true); err != nil {
		t.Fatalf("Acknowledge() failed: %v", err)
	}

	// a different template for the same date
	other, err := f.schedSvc.CreateTemplate(ctx, f.child.ID, "Tuesday")
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	if _, _, err = f.schedSvc.ReplaceBlocks(ctx, other.ID, f.targetDate, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.math.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}
	if _, err = f.schedSvc.AttachMaterial(ctx, other.ID, f.math.ID, f.notebook.ID); err != nil {
		t.Fatalf("AttachMaterial() failed: %v", err)
	}

	sel := checklist.Selection{ChildID: f.child.ID, TemplateID: other.ID, TargetDate: f.targetDate}
	view, err := f.svc.Reselect(ctx, sel)
	if err != nil {
		t.Fatalf("Reselect() failed: %v", err)
	}

	if view.InstanceID != first.InstanceID {
		t.Errorf("Reselect() instance = %d, want %d (repointed, not recreated)", view.InstanceID, first.InstanceID)
	}
	if view.Template.ID != other.ID {
		t.Errorf("Reselect() template = %d, want %d", view.Template.ID, other.ID)
	}
	if view.Aggregates.Total != 1 || view.Aggregates.Checked != 0 {
		t.Errorf("Reselect() aggregates = %+v, want fresh {1 0 false}", view.Aggregates)
	}

	acks, err := f.repo.ListAcknowledgments(ctx, view.InstanceID)
	if err != nil {
		t.Fatalf("ListAcknowledgments() failed: %v", err)
	}
	if len(acks) != 0 {
		t.Errorf("Reselect() kept %d acknowledgments, want 0", len(acks))
	}
}

func TestService_Acknowledge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.ensure(t)

	ack, err := f.svc.Acknowledge(ctx, view.InstanceID, f.pe.ID, true)
	if err != nil {
		t.Fatalf("Acknowledge(true) failed: %v", err)
	}
	if !ack.Acknowledged || !ack.AcknowledgedAt.Valid {
		t.Errorf("Acknowledge(true) = %+v, want acknowledged with timestamp", ack)
	}

	// acknowledgments are upserts, not appends
	again, err := f.svc.Acknowledge(ctx, view.InstanceID, f.pe.ID, false)
	if err != nil {
		t.Fatalf("Acknowledge(false) failed: %v", err)
	}
	if again.ID != ack.ID || again.Acknowledged || again.AcknowledgedAt.Valid {
		t.Errorf("Acknowledge(false) = %+v, want same row cleared", again)
	}

	// the flag shows up in the assembled view but never in the aggregates
	loaded, err := f.svc.Load(ctx, f.child.ID, f.targetDate)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Aggregates.Total != 3 {
		t.Errorf("Load() total = %d, want 3 (acks excluded)", loaded.Aggregates.Total)
	}

	if _, err = f.svc.Acknowledge(ctx, 99999, f.pe.ID, true); errors.Cause(err) != checklist.ErrInstanceNotFound {
		t.Errorf("Acknowledge(unknown instance) error = %v, want %v", err, checklist.ErrInstanceNotFound)
	}
}

func TestService_Load_includesOpenRequirements(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ensure(t)

	pinned, err := f.catSvc.CreateRequirement(ctx, catalog.NewRequirement{
		SubjectID:   f.art.ID,
		Description: "Bring 2 empty toilet rolls",
		TargetDate:  f.targetDate,
	})
	if err != nil {
		t.Fatalf("CreateRequirement(pinned) failed: %v", err)
	}
	recurring, err := f.catSvc.CreateRequirement(ctx, catalog.NewRequirement{
		SubjectID:   f.pe.ID,
		Description: "Sports kit every time",
		IsRecurring: true,
	})
	if err != nil {
		t.Fatalf("CreateRequirement(recurring) failed: %v", err)
	}
	// pinned to another day: must not show up
	if _, err = f.catSvc.CreateRequirement(ctx, catalog.NewRequirement{
		SubjectID:   f.math.ID,
		Description: "Ruler next week",
		TargetDate:  f.targetDate.AddDays(7),
	}); err != nil {
		t.Fatalf("CreateRequirement(other day) failed: %v", err)
	}

	view, err := f.svc.Load(ctx, f.child.ID, f.targetDate)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(view.Requirements) != 2 {
		t.Fatalf("Load() requirements = %d, want 2", len(view.Requirements))
	}
	if view.Requirements[0].ID != pinned.ID || view.Requirements[1].ID != recurring.ID {
		t.Errorf("Load() requirements = %+v, want [%d %d]", view.Requirements, pinned.ID, recurring.ID)
	}

	// resolving removes it from subsequent views
	if _, err = f.catSvc.ResolveRequirement(ctx, pinned.ID); err != nil {
		t.Fatalf("ResolveRequirement() failed: %v", err)
	}
	view, err = f.svc.Load(ctx, f.child.ID, f.targetDate)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(view.Requirements) != 1 || view.Requirements[0].ID != recurring.ID {
		t.Errorf("Load() requirements = %+v, want just the recurring one", view.Requirements)
	}
}

func TestService_Ensure_recordsAuditEvent(t *testing.T) {
	f := setup(t)
	view := f.ensure(t)

	events, err := f.auditSvc.ByInstance(context.Background(), view.InstanceID)
	if err != nil {
		t.Fatalf("ByInstance() failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("ByInstance() = no events, want at least the ensure event")
	}
	if events[0].Type != audit.EventChecklistEnsured {
		t.Errorf("ByInstance()[0].Type = %s, want %s", events[0].Type, audit.EventChecklistEnsured)
	}
}
