package op

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/block"
	"github.com/planejafacil/api/internal/docstore/memstore"
	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/resource"
	"github.com/planejafacil/api/internal/template"
	"github.com/planejafacil/api/internal/tenant"
)

var (
	mainID  = access.Identity{UID: "m1", Role: access.RoleMain, MainUserID: "m1"}
	childID = access.Identity{UID: "c1", Role: access.RoleChild, MainUserID: "m1"}
	clock   = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
)

type world struct {
	store     *memstore.Store
	templates *template.Service
	resources *resource.Service
	blocks    *block.Service
	ops       *Service
	router    *chi.Mux
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := memstore.New().WithClock(func() time.Time { return clock })
	require.NoError(t, store.Set(context.Background(), tenant.UserPath("m1"), map[string]any{"name": "Alice", "isMain": true}))

	w := &world{store: store}
	w.templates = template.NewService(template.NewRepository(store))
	w.resources = resource.NewService(resource.NewRepository(store), store, w.templates)
	w.blocks = block.NewService(block.NewRepository(store), store, w.templates, w.resources)
	w.ops = NewService(NewRepository(store), store, w.templates, w.blocks, w.resources)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			id := mainID
			if req.Header.Get("X-Test-Role") == access.RoleChild {
				id = childID
			}
			next.ServeHTTP(rw, req.WithContext(middleware.WithIdentity(req.Context(), id)))
		})
	})
	NewHandler(w.ops).RegisterRoutes(r)
	w.router = r
	return w
}

func (w *world) do(t *testing.T, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	w.router.ServeHTTP(rec, req)
	return rec
}

type seeded struct {
	template, block, phase, resource string
}

func (w *world) seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	start, end := 1, 5
	tpl, err := w.templates.Create(ctx, mainID, template.Input{Name: "T1", WeekStart: &start, WeekEnd: &end})
	require.NoError(t, err)
	res, err := w.resources.Create(ctx, mainID, resource.CreateInput{Name: "Torno", Code: "T-01", TemplateID: tpl})
	require.NoError(t, err)
	dt := block.DurationHours
	b, err := w.blocks.Create(ctx, mainID, block.CreateInput{Name: "B1", TemplateID: tpl, DurationType: &dt})
	require.NoError(t, err)
	dur := 2.0
	p, err := w.blocks.CreatePhase(ctx, mainID, b, block.PhaseInput{Name: "P1", Duration: &dur, Resources: []string{res}})
	require.NoError(t, err)
	return seeded{template: tpl, block: b, phase: p, resource: res}
}

func TestCreateAppliesDefaultsAndSnapshots(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	s := w.seed(t)

	opID, err := w.ops.Create(ctx, mainID, CreateInput{
		TemplateID: s.template,
		Code:       "OP-1",
		BlockID:    s.block,
		PhaseID:    s.phase,
		ResourceID: s.resource,
	})
	require.NoError(t, err)

	o, err := w.ops.Get(ctx, childID, opID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreate, o.Status)
	assert.Equal(t, PriorityNormal, o.Priority)
	assert.Equal(t, 1, o.Quantity)
	assert.Zero(t, o.ProgressPrc)
	assert.False(t, o.InProducing)
	assert.True(t, o.Active)
	assert.Equal(t, "m1", o.MainUserID)
	require.NotNil(t, o.DateCreated)
	assert.True(t, clock.Equal(*o.DateCreated))
	assert.Equal(t, "B1", o.Block["name"])
	assert.Equal(t, "P1", o.Phase["name"])
	assert.Equal(t, "Torno", o.Resource["name"])

	// a cópia não acompanha a renomeação do bloco
	name := "B1 renomeado"
	require.NoError(t, w.blocks.Update(ctx, mainID, s.block, block.UpdateInput{Name: &name}))
	o, err = w.ops.Get(ctx, mainID, opID)
	require.NoError(t, err)
	assert.Equal(t, "B1", o.Block["name"])
}

func TestCreateValidation(t *testing.T) {
	w := newWorld(t)
	s := w.seed(t)

	cases := []struct {
		name   string
		role   string
		body   map[string]any
		status int
	}{
		{"child", access.RoleChild, map[string]any{"templateId": s.template}, http.StatusForbidden},
		{"missing template", access.RoleMain, map[string]any{"code": "x"}, http.StatusBadRequest},
		{"unknown template", access.RoleMain, map[string]any{"templateId": "nada"}, http.StatusNotFound},
		{"status out of range", access.RoleMain, map[string]any{"templateId": s.template, "status": 4}, http.StatusBadRequest},
		{"priority out of range", access.RoleMain, map[string]any{"templateId": s.template, "priority": 5}, http.StatusBadRequest},
		{"phase without block", access.RoleMain, map[string]any{"templateId": s.template, "phaseId": s.phase}, http.StatusBadRequest},
		{"unknown block", access.RoleMain, map[string]any{"templateId": s.template, "blockId": "nada"}, http.StatusNotFound},
		{"nested block id", access.RoleMain, map[string]any{"templateId": s.template, "blockId": s.block + "/phases/" + s.phase}, http.StatusBadRequest},
		{"nested resource id", access.RoleMain, map[string]any{"templateId": s.template, "resourceId": "../" + s.resource}, http.StatusBadRequest},
		{"embedded snapshot", access.RoleMain, map[string]any{"templateId": s.template, "block": map[string]any{"name": "Livre"}, "priority": 4}, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := w.do(t, tc.role, http.MethodPost, "/op", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestListFollowsSelectedTemplate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	s := w.seed(t)
	_, err := w.ops.Create(ctx, mainID, CreateInput{TemplateID: s.template, Code: "OP-1"})
	require.NoError(t, err)

	rec := w.do(t, access.RoleChild, http.MethodGet, "/ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ops":[]}`, rec.Body.String())

	require.NoError(t, w.templates.Select(ctx, mainID, s.template))
	rec = w.do(t, access.RoleChild, http.MethodGet, "/ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Ops []Op `json:"ops"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Ops, 1)
	assert.Equal(t, "OP-1", list.Ops[0].Code)
}

func TestUpdateAndDelete(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	s := w.seed(t)
	opID, err := w.ops.Create(ctx, mainID, CreateInput{TemplateID: s.template, BlockID: s.block})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.do(t, access.RoleMain, http.MethodPut, "/ops/"+opID, map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, w.do(t, access.RoleMain, http.MethodPut, "/ops/"+opID, map[string]any{"mainUserId": "m2"}).Code)
	assert.Equal(t, http.StatusBadRequest, w.do(t, access.RoleMain, http.MethodPut, "/ops/"+opID, map[string]any{"progressPrc": 120}).Code)
	assert.Equal(t, http.StatusForbidden, w.do(t, access.RoleChild, http.MethodPut, "/ops/"+opID, map[string]any{"status": 1}).Code)
	assert.Equal(t, http.StatusNotFound, w.do(t, access.RoleMain, http.MethodPut, "/ops/nada", map[string]any{"status": 1}).Code)

	rec := w.do(t, access.RoleMain, http.MethodPut, "/ops/"+opID, map[string]any{
		"status":       StatusStart,
		"progressPrc":  35.5,
		"inProducing":  true,
		"operatorName": "Carlos",
		"phaseId":      s.phase,
		"dateStart":    "2025-03-11T08:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	o, err := w.ops.Get(ctx, mainID, opID)
	require.NoError(t, err)
	assert.Equal(t, StatusStart, o.Status)
	assert.Equal(t, 35.5, o.ProgressPrc)
	assert.True(t, o.InProducing)
	assert.Equal(t, "Carlos", o.OperatorName)
	assert.Equal(t, "P1", o.Phase["name"])
	require.NotNil(t, o.DateStart)
	assert.Equal(t, 11, o.DateStart.Day())
	assert.Equal(t, PriorityNormal, o.Priority)

	assert.Equal(t, http.StatusForbidden, w.do(t, access.RoleChild, http.MethodDelete, "/op/"+opID, nil).Code)
	assert.Equal(t, http.StatusOK, w.do(t, access.RoleMain, http.MethodDelete, "/op/"+opID, nil).Code)
	assert.Equal(t, http.StatusNotFound, w.do(t, access.RoleMain, http.MethodDelete, "/ops/"+opID, nil).Code)
}

func TestCreateRejectsPathLikeIDs(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	s := w.seed(t)

	_, err := w.ops.Create(ctx, mainID, CreateInput{TemplateID: s.template, BlockID: s.block + "/phases/" + s.phase})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)

	opID, err := w.ops.Create(ctx, mainID, CreateInput{TemplateID: s.template})
	require.NoError(t, err)
	nested := s.block + "/phases/" + s.phase
	err = w.ops.Update(ctx, mainID, opID, UpdateInput{BlockID: &nested})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)

	o, err := w.ops.Get(ctx, mainID, opID)
	require.NoError(t, err)
	assert.Nil(t, o.Block)
}

func TestTemplateChangeChecksKeptSnapshots(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	s := w.seed(t)
	start, end := 0, 6
	t2, err := w.templates.Create(ctx, mainID, template.Input{Name: "T2", WeekStart: &start, WeekEnd: &end})
	require.NoError(t, err)

	opID, err := w.ops.Create(ctx, mainID, CreateInput{
		TemplateID: s.template, BlockID: s.block, PhaseID: s.phase, ResourceID: s.resource,
	})
	require.NoError(t, err)

	err = w.ops.Update(ctx, mainID, opID, UpdateInput{TemplateID: &t2})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)
	o, err := w.ops.Get(ctx, mainID, opID)
	require.NoError(t, err)
	assert.Equal(t, s.template, o.TemplateID)

	dt := block.DurationDays
	b2, err := w.blocks.Create(ctx, mainID, block.CreateInput{Name: "B2", TemplateID: t2, DurationType: &dt})
	require.NoError(t, err)
	dur := 1.0
	p2, err := w.blocks.CreatePhase(ctx, mainID, b2, block.PhaseInput{Name: "P2", Duration: &dur})
	require.NoError(t, err)
	r2, err := w.resources.Create(ctx, mainID, resource.CreateInput{Name: "Fresa", TemplateID: t2})
	require.NoError(t, err)

	// bloco novo, mas fase e recurso antigos continuam presos ao T1
	err = w.ops.Update(ctx, mainID, opID, UpdateInput{TemplateID: &t2, BlockID: &b2})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)
	err = w.ops.Update(ctx, mainID, opID, UpdateInput{TemplateID: &t2, BlockID: &b2, PhaseID: &p2})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)

	require.NoError(t, w.ops.Update(ctx, mainID, opID, UpdateInput{TemplateID: &t2, BlockID: &b2, PhaseID: &p2, ResourceID: &r2}))
	o, err = w.ops.Get(ctx, mainID, opID)
	require.NoError(t, err)
	assert.Equal(t, t2, o.TemplateID)
	assert.Equal(t, t2, o.Block["templateId"])
	assert.Equal(t, b2, o.Phase["blockId"])
	assert.Equal(t, t2, o.Resource["templateId"])
}
