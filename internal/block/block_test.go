package block

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/docstore/memstore"
	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/resource"
	"github.com/planejafacil/api/internal/template"
	"github.com/planejafacil/api/internal/tenant"
)

var (
	mainID  = access.Identity{UID: "m1", Role: access.RoleMain, MainUserID: "m1"}
	childID = access.Identity{UID: "c1", Role: access.RoleChild, MainUserID: "m1"}
)

type fixture struct {
	t         *testing.T
	store     *memstore.Store
	service   *Service
	resources *resource.Service
	router    *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.Set(context.Background(), tenant.UserPath("m1"), map[string]any{"name": "Alice", "isMain": true}))

	templates := template.NewService(template.NewRepository(store))
	resources := resource.NewService(resource.NewRepository(store), store, templates)
	svc := NewService(NewRepository(store), store, templates, resources)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := mainID
			if req.Header.Get("X-Test-Role") == access.RoleChild {
				id = childID
			}
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), id)))
		})
	})
	template.NewHandler(templates).RegisterRoutes(r)
	resource.NewHandler(resources).RegisterRoutes(r)
	NewHandler(svc).RegisterRoutes(r)
	return &fixture{t: t, store: store, service: svc, resources: resources, router: r}
}

func (f *fixture) do(role, method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) create(path string, body any) string {
	f.t.Helper()
	rec := f.do(access.RoleMain, http.MethodPost, path, body)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	var payload struct {
		ID string `json:"id"`
	}
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.ID
}

func (f *fixture) template() string {
	return f.create("/templates", map[string]any{"name": "T1", "weekStart": 1, "weekEnd": 5, "shifts": []any{}, "holidays": []any{}})
}

func TestBlockScenario(t *testing.T) {
	f := newFixture(t)
	tpl := f.template()
	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodPost, "/select-template/"+tpl, nil).Code)

	res := f.create("/resources", map[string]any{"name": "Torno", "templateId": tpl})
	blockID := f.create("/blocks", map[string]any{"name": "B1", "templateId": tpl, "durationType": 1})
	phaseID := f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P1", "duration": 2.0, "resources": []string{res}})

	rec := f.do(access.RoleChild, http.MethodGet, "/blocks/"+blockID+"/phases", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var phases struct {
		Phases []PhaseDetails `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &phases))
	require.Len(t, phases.Phases, 1)
	assert.Equal(t, phaseID, phases.Phases[0].ID)
	assert.Equal(t, blockID, phases.Phases[0].BlockID)
	assert.Equal(t, 2.0, phases.Phases[0].Duration)
	require.Len(t, phases.Phases[0].ResourceDetails, 1)
	assert.Equal(t, "Torno", phases.Phases[0].ResourceDetails[0].Name)

	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodDelete, "/blocks/"+blockID, nil).Code)

	assert.Equal(t, http.StatusNotFound, f.do(access.RoleMain, http.MethodGet, "/blocks/"+blockID+"/phases", nil).Code)
	_, err := f.store.Get(context.Background(), tenant.PhasePath("m1", blockID, phaseID))
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodGet, "/resources/"+res, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(access.RoleMain, http.MethodDelete, "/blocks/"+blockID, nil).Code)
}

func TestBlockDeleteIsAtomic(t *testing.T) {
	f := newFixture(t)
	tpl := f.template()
	blockID := f.create("/blocks", map[string]any{"name": "B1", "templateId": tpl, "durationType": 0})
	f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P1", "duration": 1})
	f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P2", "duration": 3})
	before := f.store.Len()

	f.store.FailCommit = errors.New("commit indisponível")
	rec := f.do(access.RoleMain, http.MethodDelete, "/blocks/"+blockID, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, before, f.store.Len())

	f.store.FailCommit = nil
	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodDelete, "/blocks/"+blockID, nil).Code)
	assert.Equal(t, before-3, f.store.Len())
}

func TestBlockListingFollowsSelectedTemplate(t *testing.T) {
	f := newFixture(t)
	t1 := f.template()
	t2 := f.template()
	f.create("/blocks", map[string]any{"name": "B1", "templateId": t1, "durationType": 1})
	f.create("/blocks", map[string]any{"name": "B2", "templateId": t2, "durationType": 2})

	rec := f.do(access.RoleChild, http.MethodGet, "/blocks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"blocks":[]}`, rec.Body.String())

	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodPost, "/select-template/"+t2, nil).Code)
	var list struct {
		Blocks []FullBlock `json:"blocks"`
	}
	rec = f.do(access.RoleChild, http.MethodGet, "/blocks/full", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Blocks, 1)
	assert.Equal(t, "B2", list.Blocks[0].Name)
	assert.Equal(t, DurationDays, list.Blocks[0].DurationType)
	assert.Empty(t, list.Blocks[0].Phases)
}

func TestBlockValidationAndRoles(t *testing.T) {
	f := newFixture(t)
	tpl := f.template()
	blockID := f.create("/blocks", map[string]any{"name": "B1", "templateId": tpl, "durationType": 1})
	phaseID := f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P1", "duration": 1})

	cases := []struct {
		name   string
		role   string
		method string
		path   string
		body   any
		status int
	}{
		{"duration type out of range", access.RoleMain, http.MethodPost, "/blocks", map[string]any{"name": "B", "templateId": tpl, "durationType": 3}, http.StatusBadRequest},
		{"unknown template", access.RoleMain, http.MethodPost, "/blocks", map[string]any{"name": "B", "templateId": "nada", "durationType": 0}, http.StatusNotFound},
		{"child create block", access.RoleChild, http.MethodPost, "/blocks", map[string]any{"name": "B", "templateId": tpl, "durationType": 0}, http.StatusForbidden},
		{"child update block", access.RoleChild, http.MethodPut, "/blocks/" + blockID, map[string]any{"name": "X"}, http.StatusForbidden},
		{"child delete block", access.RoleChild, http.MethodDelete, "/blocks/" + blockID, nil, http.StatusForbidden},
		{"child create phase", access.RoleChild, http.MethodPost, "/blocks/" + blockID + "/phases", map[string]any{"name": "P", "duration": 1}, http.StatusForbidden},
		{"child delete phase", access.RoleChild, http.MethodDelete, "/blocks/" + blockID + "/phases/" + phaseID, nil, http.StatusForbidden},
		{"child update phase", access.RoleChild, http.MethodPut, "/blocks/" + blockID + "/phases/" + phaseID, map[string]any{"duration": 3}, http.StatusForbidden},
		{"nested template id", access.RoleMain, http.MethodPost, "/blocks", map[string]any{"name": "B", "templateId": tpl + "/blocks/" + blockID, "durationType": 0}, http.StatusBadRequest},
		{"phase with nested resource id", access.RoleMain, http.MethodPost, "/blocks/" + blockID + "/phases", map[string]any{"name": "P", "duration": 1, "resources": []string{"r1/x"}}, http.StatusBadRequest},
		{"assign nested resource id", access.RoleMain, http.MethodPost, "/blocks/" + blockID + "/phases/" + phaseID + "/assign-resource?resource_id=..%2Fr1", nil, http.StatusBadRequest},
		{"empty block update", access.RoleMain, http.MethodPut, "/blocks/" + blockID, map[string]any{}, http.StatusBadRequest},
		{"negative duration", access.RoleMain, http.MethodPost, "/blocks/" + blockID + "/phases", map[string]any{"name": "P", "duration": -1}, http.StatusBadRequest},
		{"phase under missing block", access.RoleMain, http.MethodPost, "/blocks/nada/phases", map[string]any{"name": "P", "duration": 1}, http.StatusNotFound},
		{"phase with unknown resource", access.RoleMain, http.MethodPost, "/blocks/" + blockID + "/phases", map[string]any{"name": "P", "duration": 1, "resources": []string{"nada"}}, http.StatusNotFound},
		{"assign without id", access.RoleMain, http.MethodPost, "/blocks/" + blockID + "/phases/" + phaseID + "/assign-resource", nil, http.StatusBadRequest},
		{"update block", access.RoleMain, http.MethodPut, "/blocks/" + blockID, map[string]any{"name": "B1b", "durationType": 2}, http.StatusOK},
		{"update phase", access.RoleMain, http.MethodPut, "/blocks/" + blockID + "/phases/" + phaseID, map[string]any{"duration": 4.5}, http.StatusOK},
		{"update missing phase", access.RoleMain, http.MethodPut, "/blocks/" + blockID + "/phases/nada", map[string]any{"duration": 4.5}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(tc.role, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	b, err := f.service.Get(context.Background(), childID, blockID)
	require.NoError(t, err)
	assert.Equal(t, "B1b", b.Name)
	assert.Equal(t, DurationDays, b.DurationType)
}

func TestPhaseResourceLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.template()
	r1 := f.create("/resources", map[string]any{"name": "Torno", "templateId": tpl})
	r2 := f.create("/resources", map[string]any{"name": "Fresa", "templateId": tpl})
	blockID := f.create("/blocks", map[string]any{"name": "B1", "templateId": tpl, "durationType": 1})
	phaseID := f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P1", "duration": 1})
	base := "/blocks/" + blockID + "/phases/" + phaseID

	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodPost, base+"/resources", map[string]any{"resourceId": r1}).Code)
	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodPost, base+"/resources", map[string]any{"resourceId": r2}).Code)
	rec := f.do(access.RoleMain, http.MethodPost, base+"/resources", map[string]any{"resourceId": r1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "já vinculado")

	p, err := f.service.GetPhase(ctx, mainID, blockID, phaseID)
	require.NoError(t, err)
	assert.Equal(t, []string{r1, r2}, p.Resources)

	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodPost, base+"/assign-resource?resource_id="+r2, nil).Code)
	p, err = f.service.GetPhase(ctx, mainID, blockID, phaseID)
	require.NoError(t, err)
	assert.Equal(t, []string{r2}, p.Resources)

	// recurso excluído continua referenciado pela fase
	require.Equal(t, http.StatusOK, f.do(access.RoleMain, http.MethodDelete, "/resources/"+r2, nil).Code)
	p, err = f.service.GetPhase(ctx, mainID, blockID, phaseID)
	require.NoError(t, err)
	assert.Equal(t, []string{r2}, p.Resources)

	details, err := f.service.ListPhases(ctx, childID, blockID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Empty(t, details[0].ResourceDetails)

	assert.Equal(t, http.StatusNotFound, f.do(access.RoleMain, http.MethodPost, base+"/resources", map[string]any{"resourceId": r2}).Code)
}

func TestBlockMoveCarriesPhases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl1 := f.template()
	tpl2 := f.template()
	blockID := f.create("/blocks", map[string]any{"name": "B1", "templateId": tpl1, "durationType": 1})
	p1 := f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P1", "duration": 1})
	p2 := f.create("/blocks/"+blockID+"/phases", map[string]any{"name": "P2", "duration": 2})

	f.store.FailCommit = errors.New("indisponível")
	rec := f.do(access.RoleMain, http.MethodPut, "/blocks/"+blockID, map[string]any{"templateId": tpl2})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	b, err := f.service.Get(ctx, mainID, blockID)
	require.NoError(t, err)
	assert.Equal(t, tpl1, b.TemplateID)

	f.store.FailCommit = nil
	rec = f.do(access.RoleMain, http.MethodPut, "/blocks/"+blockID, map[string]any{"templateId": tpl2, "name": "B1 movido"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	b, err = f.service.Get(ctx, mainID, blockID)
	require.NoError(t, err)
	assert.Equal(t, tpl2, b.TemplateID)
	assert.Equal(t, "B1 movido", b.Name)
	for _, phaseID := range []string{p1, p2} {
		p, err := f.service.GetPhase(ctx, mainID, blockID, phaseID)
		require.NoError(t, err)
		assert.Equal(t, tpl2, p.TemplateID, phaseID)
	}
}

func TestPhaseLimitPerBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.template()
	blockID := f.create("/blocks", map[string]any{"name": "B1", "templateId": tpl, "durationType": 1})
	for i := 0; i < MaxPhasesPerBlock; i++ {
		require.NoError(t, f.store.Set(ctx, tenant.PhasePath("m1", blockID, fmt.Sprintf("p%03d", i)),
			map[string]any{"name": "P", "duration": 1.0, "blockId": blockID, "mainUserId": "m1"}))
	}

	rec := f.do(access.RoleMain, http.MethodPost, "/blocks/"+blockID+"/phases", map[string]any{"name": "extra", "duration": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	before := f.store.Len()
	rec = f.do(access.RoleMain, http.MethodDelete, "/blocks/"+blockID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, before-MaxPhasesPerBlock-1, f.store.Len())
}
