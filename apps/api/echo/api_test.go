package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/audit"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/checklist"
	"github.com/trezcool/begi/core/schedule"
	logsvc "github.com/trezcool/begi/services/logger"
	inmemdb "github.com/trezcool/begi/storage/database/inmem"
)

const testTimezone = "Africa/Nairobi"

type testEnv struct {
	server   Server
	catSvc   catalog.Service
	schedSvc schedule.Service
}

// afternoonClock pins the clock at 16:00 local: prep_afternoon, editable,
// targeting tomorrow (2026-09-02).
func afternoonClock(t *testing.T) {
	t.Helper()
	pinClock(t, 16)
}

func pinClock(t *testing.T, hour int) {
	t.Helper()
	loc, err := time.LoadLocation(testTimezone)
	require.NoError(t, err)
	orig := nowFunc
	nowFunc = func() time.Time { return time.Date(2026, time.September, 1, hour, 0, 0, 0, loc) }
	t.Cleanup(func() { nowFunc = orig })
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db := inmemdb.NewDB()
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))

	catSvc := catalog.NewService(inmemdb.NewCatalogRepository(db))
	schedSvc := schedule.NewService(inmemdb.NewScheduleRepository(db))
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db), logger)
	checkSvc := checklist.NewService(inmemdb.NewChecklistRepository(db), schedSvc, catSvc, auditSvc)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	conf := &core.Config{
		TestMode:       true,
		Env:            "TEST",
		AppName:        "Begi",
		SchoolTimezone: testTimezone,
		AllowedOrigins: []string{"*"},
	}

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		CatalogSvc:     catSvc,
		ScheduleSvc:    schedSvc,
		ChecklistSvc:   checkSvc,
		AuditSvc:       auditSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &testEnv{server: server, catSvc: catSvc, schedSvc: schedSvc}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func Test_phaseAPI(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name       string
		hour       int
		wantPhase  checklist.Phase
		wantTarget string
	}{
		{name: "afternoon", hour: 16, wantPhase: checklist.PhasePrepAfternoon, wantTarget: "2026-09-02"},
		{name: "early", hour: 6, wantPhase: checklist.PhasePrepEarly, wantTarget: "2026-09-01"},
		{name: "locked", hour: 10, wantPhase: checklist.PhaseLocked, wantTarget: "2026-09-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pinClock(t, tt.hour)
			rec := env.do(t, http.MethodGet, "/v1/phase", nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var info checklist.PhaseInfo
			decode(t, rec, &info)
			assert.Equal(t, tt.wantPhase, info.Phase)
			assert.Equal(t, tt.wantTarget, info.TargetDate.String())
		})
	}
}

func Test_catalogAPI_children(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/v1/children", NameRequest{Name: "  Amani "})
	require.Equal(t, http.StatusCreated, rec.Code)
	var child catalog.Child
	decode(t, rec, &child)
	assert.Equal(t, "Amani", child.Name) // trimmed

	rec = env.do(t, http.MethodGet, "/v1/children", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var children []catalog.Child
	decode(t, rec, &children)
	assert.Len(t, children, 1)

	// validation
	rec = env.do(t, http.MethodPost, "/v1/children", NameRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown id
	rec = env.do(t, http.MethodPut, "/v1/children/999", NameRequest{Name: "Nia"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_scheduleAPI_templateLifecycle(t *testing.T) {
	env := setup(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	child, err := env.catSvc.CreateChild(ctx, "Amani")
	require.NoError(t, err)
	math, err := env.catSvc.CreateSubject(ctx, "Mathematics")
	require.NoError(t, err)
	calc, err := env.catSvc.CreateMaterial(ctx, "Calculator")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/templates", NewTemplateRequest{ChildID: child.ID, Name: "Monday"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tmpl schedule.Template
	decode(t, rec, &tmpl)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/v1/templates/%d/blocks", tmpl.ID), ReplaceBlocksRequest{
		TargetDate: core.NewDate(2026, time.September, 2),
		Blocks:     []BlockSpecRequest{{BlockOrder: 0, SubjectID: math.ID}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var blocks blocksResponse
	decode(t, rec, &blocks)
	require.Len(t, blocks.Blocks, 1)
	assert.Equal(t, math.ID, blocks.Blocks[0].SubjectID)
	assert.Equal(t, "Mathematics", blocks.Blocks[0].SubjectName)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/templates/%d/blocks?date=2026-09-03", tmpl.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &blocks)
	assert.Len(t, blocks.Blocks, 1) // later date falls back to the latest version

	// attaching the same material twice conflicts
	body := AttachMaterialRequest{SubjectID: math.ID, MaterialID: calc.ID}
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/v1/templates/%d/materials", tmpl.ID), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/v1/templates/%d/materials", tmpl.ID), body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/templates/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_checklistAPI_flow(t *testing.T) {
	env := setup(t)
	afternoonClock(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	child, err := env.catSvc.CreateChild(ctx, "Amani")
	require.NoError(t, err)
	math, err := env.catSvc.CreateSubject(ctx, "Mathematics")
	require.NoError(t, err)
	calc, err := env.catSvc.CreateMaterial(ctx, "Calculator")
	require.NoError(t, err)
	tmpl, err := env.schedSvc.CreateTemplate(ctx, child.ID, "Monday")
	require.NoError(t, err)
	_, _, err = env.schedSvc.ReplaceBlocks(ctx, tmpl.ID, core.NewDate(2026, time.September, 2), []schedule.BlockSpec{
		{BlockOrder: 0, SubjectID: math.ID},
	})
	require.NoError(t, err)
	_, err = env.schedSvc.AttachMaterial(ctx, tmpl.ID, math.ID, calc.ID)
	require.NoError(t, err)

	// ensure targets tomorrow implicitly
	rec := env.do(t, http.MethodPost, "/v1/checklist/ensure", SelectionRequest{ChildID: child.ID, TemplateID: tmpl.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view checklist.View
	decode(t, rec, &view)
	assert.Equal(t, "2026-09-02", view.TargetDate.String())
	require.Equal(t, 1, view.Aggregates.Total)
	require.Len(t, view.Subjects, 1)
	require.Len(t, view.Subjects[0].Materials, 1)

	// toggle the single item and confirm the summary flips to ready
	itemID := view.Subjects[0].Materials[0].ItemID
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/checklist/items/%d", itemID), ToggleRequest{Checked: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/checklist/summary?childId=%d&date=2026-09-02", child.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum checklist.Summary
	decode(t, rec, &sum)
	assert.True(t, sum.Aggregates.AllReady)

	// reading back without a date uses the phase target
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/checklist?childId=%d", child.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, 1, view.Aggregates.Checked)

	// audit trail is exposed to admins
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/instances/%d/events", view.InstanceID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []audit.Event
	decode(t, rec, &events)
	assert.NotEmpty(t, events)
}

func Test_checklistAPI_phaseGate(t *testing.T) {
	env := setup(t)
	pinClock(t, 10) // locked

	sel := SelectionRequest{ChildID: 1, TemplateID: 1}
	for _, tc := range []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{name: "ensure", method: http.MethodPost, path: "/v1/checklist/ensure", body: sel},
		{name: "reselect", method: http.MethodPost, path: "/v1/checklist/reselect", body: sel},
		{name: "toggle", method: http.MethodPatch, path: "/v1/checklist/items/1", body: ToggleRequest{Checked: true}},
		{name: "acknowledge", method: http.MethodPost, path: "/v1/checklist/instances/1/acknowledge", body: AcknowledgeRequest{SubjectID: 1, Acknowledged: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		})
	}
}

func Test_checklistAPI_dateOutsideWindow(t *testing.T) {
	env := setup(t)
	afternoonClock(t) // window covers 2026-09-02 only

	rec := env.do(t, http.MethodPost, "/v1/checklist/ensure", SelectionRequest{
		ChildID:    1,
		TemplateID: 1,
		TargetDate: core.NewDate(2026, time.September, 5),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_checklistAPI_unknownSelection(t *testing.T) {
	env := setup(t)
	afternoonClock(t)

	rec := env.do(t, http.MethodPost, "/v1/checklist/ensure", SelectionRequest{ChildID: 1, TemplateID: 42})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/checklist?childId=1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
