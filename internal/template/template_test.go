package template

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore/memstore"
	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/tenant"
)

var (
	mainID  = access.Identity{UID: "m1", Role: access.RoleMain, MainUserID: "m1"}
	childID = access.Identity{UID: "c1", Role: access.RoleChild, MainUserID: "m1"}
	otherID = access.Identity{UID: "m2", Role: access.RoleMain, MainUserID: "m2"}
)

func newTestRouter(t *testing.T) (*memstore.Store, func(id access.Identity, method, path string, body any) *httptest.ResponseRecorder) {
	t.Helper()
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tenant.UserPath("m1"), map[string]any{"name": "Alice", "isMain": true}))
	require.NoError(t, store.Set(ctx, tenant.UserPath("m2"), map[string]any{"name": "Outro", "isMain": true}))

	handler := NewHandler(NewService(NewRepository(store)))
	do := func(id access.Identity, method, path string, body any) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), id)))
			})
		})
		handler.RegisterRoutes(r)

		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	return store, do
}

func templateBody(weekStart, weekEnd int) map[string]any {
	return map[string]any{
		"name":      "T1",
		"weekStart": weekStart,
		"weekEnd":   weekEnd,
		"shifts":    []map[string]any{{"entry": "08:00", "exit": "12:00"}},
		"holidays":  []map[string]any{{"date": "2025-12-25T00:00:00Z", "name": "Natal"}},
	}
}

func createdID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	id, _ := payload["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCreateAndReadTemplate(t *testing.T) {
	_, do := newTestRouter(t)

	id := createdID(t, do(mainID, http.MethodPost, "/templates", templateBody(1, 5)))

	for i := 0; i < 2; i++ {
		rec := do(childID, http.MethodGet, "/templates/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var tpl Template
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tpl))
		assert.Equal(t, 1, tpl.WeekStart)
		assert.Equal(t, 5, tpl.WeekEnd)
		assert.Equal(t, "m1", tpl.UserID)
		require.Len(t, tpl.Holidays, 1)
		assert.Equal(t, "2025-12-25", tpl.Holidays[0].Date)
		assert.NotNil(t, tpl.CreatedAt)
	}

	rec := do(childID, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Templates []Template `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Templates, 1)
}

func TestTemplateValidation(t *testing.T) {
	_, do := newTestRouter(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"week out of range", templateBody(7, 5)},
		{"missing week", map[string]any{"name": "T1", "weekEnd": 5}},
		{"blank name", map[string]any{"name": "  ", "weekStart": 1, "weekEnd": 5}},
		{"bad holiday", map[string]any{"name": "T", "weekStart": 1, "weekEnd": 5, "holidays": []map[string]any{{"date": "25/12", "name": "Natal"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(mainID, http.MethodPost, "/templates", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestChildCannotMutateTemplates(t *testing.T) {
	_, do := newTestRouter(t)
	id := createdID(t, do(mainID, http.MethodPost, "/templates", templateBody(0, 6)))

	assert.Equal(t, http.StatusForbidden, do(childID, http.MethodPost, "/templates", templateBody(0, 6)).Code)
	assert.Equal(t, http.StatusForbidden, do(childID, http.MethodPut, "/templates/"+id, templateBody(0, 6)).Code)
	assert.Equal(t, http.StatusForbidden, do(childID, http.MethodDelete, "/templates/"+id, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(childID, http.MethodPost, "/select-template/"+id, nil).Code)
}

func TestTemplateOwnership(t *testing.T) {
	store, do := newTestRouter(t)
	ctx := context.Background()

	// template gravado sob m1 mas com dono divergente
	require.NoError(t, store.Set(ctx, tenant.TemplatePath("m1", "alheio"), map[string]any{"name": "X", "user_id": "m2"}))

	assert.Equal(t, http.StatusForbidden, do(mainID, http.MethodDelete, "/templates/alheio", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(mainID, http.MethodDelete, "/templates/nada", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(otherID, http.MethodGet, "/templates/alheio", nil).Code)
}

func TestUpdateDeleteAndSelect(t *testing.T) {
	store, do := newTestRouter(t)
	ctx := context.Background()
	id := createdID(t, do(mainID, http.MethodPost, "/templates", templateBody(1, 5)))

	body := templateBody(0, 4)
	body["name"] = "T2"
	rec := do(mainID, http.MethodPut, "/templates/"+id, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tpl, err := NewRepository(store).Get(ctx, "m1", id)
	require.NoError(t, err)
	assert.Equal(t, "T2", tpl.Name)
	assert.Equal(t, 4, tpl.WeekEnd)
	assert.NotNil(t, tpl.UpdatedAt)

	rec = do(mainID, http.MethodPost, "/select-template/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	selected, err := tenant.SelectedTemplate(ctx, store, "m1")
	require.NoError(t, err)
	assert.Equal(t, id, selected)

	require.Equal(t, http.StatusOK, do(mainID, http.MethodDelete, "/templates/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(mainID, http.MethodGet, "/templates/"+id, nil).Code)
}

func TestLegacyDocuments(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tenant.TemplatePath("m1", "old"), map[string]any{
		"name":      "Antigo",
		"user_id":   "m1",
		"weekStart": 1,
		"weekEnd":   7,
		"weekBase":  1,
		"holidays": map[string]any{"holidays": []any{
			map[string]any{"date": "2024-01-01T00:00:00Z", "name": "Ano novo"},
		}},
	}))

	svc := NewService(NewRepository(store))
	tpl, err := svc.Get(ctx, mainID, "old")
	require.NoError(t, err)
	assert.Equal(t, 0, tpl.WeekStart)
	assert.Equal(t, 6, tpl.WeekEnd)
	assert.Equal(t, "m1", tpl.UserID)
	require.Len(t, tpl.Holidays, 1)
	assert.Equal(t, "2024-01-01", tpl.Holidays[0].Date)

	assert.NoError(t, svc.Ensure(ctx, "m1", "old"))
	assert.True(t, apperr.Is(svc.Ensure(ctx, "m1", ""), apperr.KindBadRequest))
	assert.True(t, apperr.Is(svc.Ensure(ctx, "m1", "nada"), apperr.KindNotFound))
}

func TestNormalizeWeekday(t *testing.T) {
	cases := []struct{ v, base, want int }{
		{0, 0, 0}, {6, 0, 6}, {1, 1, 0}, {7, 1, 6}, {0, 1, 6},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeWeekday(tc.v, tc.base))
	}
}

func TestEnsureRejectsPathLikeID(t *testing.T) {
	store, do := newTestRouter(t)
	svc := NewService(NewRepository(store))
	ctx := context.Background()
	tplID := createdID(t, do(mainID, http.MethodPost, "/templates", templateBody(1, 5)))

	require.NoError(t, svc.Ensure(ctx, "m1", tplID))
	err := svc.Ensure(ctx, "m1", tplID+"/blocks/b1")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)
	err = svc.Ensure(ctx, "m1", "..")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "err=%v", err)
}
