package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/schedule"
	inmemdb "github.com/trezcool/begi/storage/database/inmem"
)

type fixture struct {
	svc    schedule.Service
	catSvc catalog.Service
	child  catalog.Child
	math   catalog.Subject
	art    catalog.Subject
	sci    catalog.Subject
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.NewDB()
	catSvc := catalog.NewService(inmemdb.NewCatalogRepository(db))
	svc := schedule.NewService(inmemdb.NewScheduleRepository(db))

	f := &fixture{svc: svc, catSvc: catSvc}
	var err error
	if f.child, err = catSvc.CreateChild(ctx, "Amani"); err != nil {
		t.Fatalf("CreateChild() failed: %v", err)
	}
	if f.math, err = catSvc.CreateSubject(ctx, "Mathematics"); err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	if f.art, err = catSvc.CreateSubject(ctx, "Art"); err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	if f.sci, err = catSvc.CreateSubject(ctx, "Science"); err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return f
}

func (f *fixture) template(t *testing.T) schedule.Template {
	t.Helper()
	tmpl, err := f.svc.CreateTemplate(context.Background(), f.child.ID, "Monday")
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tmpl
}

func subjectIDs(blocks []schedule.Block) []int {
	ids := make([]int, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.SubjectID)
	}
	return ids
}

func TestService_Resolve_firstVersion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tmpl := f.template(t)
	d := core.NewDate(2026, time.September, 2)

	ver, err := f.svc.Resolve(ctx, tmpl.ID, d)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if !ver.ValidFrom.Equal(d) {
		t.Errorf("Resolve() validFrom = %s, want %s", ver.ValidFrom, d)
	}

	blocks, err := f.svc.VersionBlocks(ctx, ver.ID)
	if err != nil {
		t.Fatalf("VersionBlocks() failed: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("VersionBlocks() = %d blocks, want 0", len(blocks))
	}

	// resolving again must return the same version, not stack a new one
	again, err := f.svc.Resolve(ctx, tmpl.ID, d)
	if err != nil {
		t.Fatalf("Resolve() (again) failed: %v", err)
	}
	if again.ID != ver.ID {
		t.Errorf("Resolve() (again) id = %d, want %d", again.ID, ver.ID)
	}
}

func TestService_Resolve_clonesOnDivergence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tmpl := f.template(t)
	d1 := core.NewDate(2026, time.September, 2)
	d2 := d1.AddDays(7)

	v1, _, err := f.svc.ReplaceBlocks(ctx, tmpl.ID, d1, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.math.ID},
		{BlockOrder: 1, SubjectID: f.art.ID},
	})
	if err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}

	v2, err := f.svc.Resolve(ctx, tmpl.ID, d2)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if v2.ID == v1.ID {
		t.Fatal("Resolve() reused the old version, want a clone")
	}
	if !v2.ValidFrom.Equal(d2) {
		t.Errorf("Resolve() validFrom = %s, want %s", v2.ValidFrom, d2)
	}

	blocks, err := f.svc.VersionBlocks(ctx, v2.ID)
	if err != nil {
		t.Fatalf("VersionBlocks() failed: %v", err)
	}
	want := []int{f.math.ID, f.art.ID}
	got := subjectIDs(blocks)
	if len(got) != len(want) {
		t.Fatalf("VersionBlocks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("VersionBlocks()[%d] subject = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestService_ReplaceBlocks_preservesPastSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tmpl := f.template(t)
	d1 := core.NewDate(2026, time.September, 2)
	d2 := d1.AddDays(7)

	if _, _, err := f.svc.ReplaceBlocks(ctx, tmpl.ID, d1, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.math.ID},
		{BlockOrder: 1, SubjectID: f.art.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks(d1) failed: %v", err)
	}

	// a later edit clones; it must not disturb d1's snapshot
	if _, _, err := f.svc.ReplaceBlocks(ctx, tmpl.ID, d2, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.sci.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks(d2) failed: %v", err)
	}

	blocks, _, err := f.svc.BlocksEffectiveOn(ctx, tmpl.ID, d1)
	if err != nil {
		t.Fatalf("BlocksEffectiveOn(d1) failed: %v", err)
	}
	if got := subjectIDs(blocks); len(got) != 2 || got[0] != f.math.ID || got[1] != f.art.ID {
		t.Errorf("BlocksEffectiveOn(d1) subjects = %v, want [%d %d]", got, f.math.ID, f.art.ID)
	}

	blocks, _, err = f.svc.BlocksEffectiveOn(ctx, tmpl.ID, d2)
	if err != nil {
		t.Fatalf("BlocksEffectiveOn(d2) failed: %v", err)
	}
	if got := subjectIDs(blocks); len(got) != 1 || got[0] != f.sci.ID {
		t.Errorf("BlocksEffectiveOn(d2) subjects = %v, want [%d]", got, f.sci.ID)
	}
}

func TestService_BlocksEffectiveOn_noVersionYet(t *testing.T) {
	f := setup(t)
	tmpl := f.template(t)

	blocks, versionID, err := f.svc.BlocksEffectiveOn(context.Background(), tmpl.ID, core.NewDate(2026, time.September, 2))
	if err != nil {
		t.Fatalf("BlocksEffectiveOn() failed: %v", err)
	}
	if blocks != nil || versionID != 0 {
		t.Errorf("BlocksEffectiveOn() = (%v, %d), want (nil, 0)", blocks, versionID)
	}
}

func TestService_ReplaceBlocks_allowsOrderTies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tmpl := f.template(t)
	d := core.NewDate(2026, time.September, 2)

	// equal block orders are valid input; insertion order breaks the tie
	_, blocks, err := f.svc.ReplaceBlocks(ctx, tmpl.ID, d, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.math.ID},
		{BlockOrder: 0, SubjectID: f.art.ID},
		{BlockOrder: 1, SubjectID: f.sci.ID},
	})
	if err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}
	want := []int{f.math.ID, f.art.ID, f.sci.ID}
	if got := subjectIDs(blocks); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("ReplaceBlocks() subjects = %v, want %v", subjectIDs(blocks), want)
	}

	// the tie survives a clone
	v2, err := f.svc.Resolve(ctx, tmpl.ID, d.AddDays(1))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	blocks, err = f.svc.VersionBlocks(ctx, v2.ID)
	if err != nil {
		t.Fatalf("VersionBlocks() failed: %v", err)
	}
	if got := subjectIDs(blocks); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("VersionBlocks() subjects = %v, want %v", got, want)
	}
}

func TestService_Resolve_duplicateSubjectsKept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tmpl := f.template(t)
	d1 := core.NewDate(2026, time.September, 2)

	// double Mathematics period
	if _, _, err := f.svc.ReplaceBlocks(ctx, tmpl.ID, d1, []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: f.math.ID},
		{BlockOrder: 1, SubjectID: f.math.ID},
		{BlockOrder: 2, SubjectID: f.art.ID},
	}); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}

	v2, err := f.svc.Resolve(ctx, tmpl.ID, d1.AddDays(1))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	blocks, err := f.svc.VersionBlocks(ctx, v2.ID)
	if err != nil {
		t.Fatalf("VersionBlocks() failed: %v", err)
	}
	if got := subjectIDs(blocks); len(got) != 3 || got[0] != f.math.ID || got[1] != f.math.ID {
		t.Errorf("VersionBlocks() subjects = %v, want duplicate math preserved", got)
	}
}
