package main

import (
	"context"
	"time"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/schedule"
	"github.com/trezcool/begi/storage/database/sqlxrepos"
)

// seed loads a small demo household: one child, a handful of subjects and
// materials, and a weekly template effective today.
func (cli *commandLine) seed() error {
	ctx := context.Background()
	catSvc := catalog.NewService(sqlxrepos.NewCatalogRepository(cli.db))
	schedSvc := schedule.NewService(sqlxrepos.NewScheduleRepository(cli.db))

	child, err := catSvc.CreateChild(ctx, "Amani")
	if err != nil {
		return err
	}

	subjectNames := []string{"Mathematics", "Science", "Art", "Physical Education"}
	subjects := make([]catalog.Subject, 0, len(subjectNames))
	for _, name := range subjectNames {
		s, err := catSvc.CreateSubject(ctx, name)
		if err != nil {
			return err
		}
		subjects = append(subjects, s)
	}

	materialNames := []string{"Calculator", "Notebook", "Lab coat", "Paint set", "Sneakers"}
	materials := make([]catalog.Material, 0, len(materialNames))
	for _, name := range materialNames {
		m, err := catSvc.CreateMaterial(ctx, name)
		if err != nil {
			return err
		}
		materials = append(materials, m)
	}

	tmpl, err := schedSvc.CreateTemplate(ctx, child.ID, "Monday")
	if err != nil {
		return err
	}

	today := core.DateOf(time.Now())
	specs := make([]schedule.BlockSpec, 0, len(subjects))
	for i, s := range subjects {
		specs = append(specs, schedule.BlockSpec{BlockOrder: i, SubjectID: s.ID})
	}
	if _, _, err = schedSvc.ReplaceBlocks(ctx, tmpl.ID, today, specs); err != nil {
		return err
	}

	links := []struct{ subject, material int }{
		{subjects[0].ID, materials[0].ID}, // Mathematics: Calculator
		{subjects[0].ID, materials[1].ID}, // Mathematics: Notebook
		{subjects[1].ID, materials[1].ID}, // Science: Notebook
		{subjects[1].ID, materials[2].ID}, // Science: Lab coat
		{subjects[2].ID, materials[3].ID}, // Art: Paint set
		// Physical Education deliberately has no materials; it is
		// acknowledged, not checked off
	}
	for _, l := range links {
		if _, err = schedSvc.AttachMaterial(ctx, tmpl.ID, l.subject, l.material); err != nil {
			return err
		}
	}

	logger.Printf("seeded child %q (id=%d) with template %q (id=%d)\n", child.Name, child.ID, tmpl.Name, tmpl.ID)
	return nil
}
