package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/docstore/memstore"
	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/identity/identitytest"
	"github.com/planejafacil/api/internal/tenant"
)

type stubSeeder struct {
	calls []string
	err   error
}

func (s *stubSeeder) SeedDefaults(_ context.Context, mainUID string) (int, error) {
	s.calls = append(s.calls, mainUID)
	return 4, s.err
}

// failingStore falha na gravação de documentos de usuário.
type failingStore struct {
	docstore.Store
}

func (f failingStore) Set(context.Context, string, map[string]any) error {
	return errors.New("store indisponível")
}

type env struct {
	t      *testing.T
	store  *memstore.Store
	fake   *identitytest.Fake
	seeder *stubSeeder
	svc    *Service
	router *chi.Mux
}

const adminKey = "chave-admin"

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{t: t, store: memstore.New(), fake: identitytest.New(), seeder: &stubSeeder{}}
	e.svc = NewService(e.store, e.fake, e.seeder, tenant.NewPurger(e.store, e.fake))

	h := NewHandler(e.svc)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(access.NewResolver(e.fake)))
		h.RegisterRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminKey(adminKey))
		h.RegisterAdminRoutes(r)
	})
	e.router = r
	return e
}

func (e *env) do(token, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) register(email string) string {
	e.t.Helper()
	rec := e.do("", http.MethodPost, "/register-main", map[string]any{"name": "Alice", "email": email, "password": "segredo1"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var payload struct {
		UID string `json:"uid"`
	}
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.UID
}

func (e *env) child(mainUID, email string) string {
	e.t.Helper()
	rec := e.do(identitytest.TokenFor(mainUID), http.MethodPost, "/child-users", map[string]any{"name": "Bob", "email": email, "password": "segredo2"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var payload struct {
		UID string `json:"uid"`
	}
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.UID
}

func TestRegisterMain(t *testing.T) {
	e := newEnv(t)
	uid := e.register("alice@x.com")

	u := e.fake.User(uid)
	require.NotNil(t, u)
	assert.Equal(t, map[string]any{"role": "main", "mainUserId": uid}, u.Claims)
	assert.Equal(t, []string{uid}, e.seeder.calls)

	doc, err := e.store.Get(context.Background(), tenant.UserPath(uid))
	require.NoError(t, err)
	assert.Equal(t, true, doc.Data["isMain"])
	assert.Equal(t, "alice@x.com", doc.Data["email"])

	rec := e.do("", http.MethodPost, "/register-main", map[string]any{"name": "Outra", "email": "alice@x.com", "password": "segredo1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do("", http.MethodPost, "/register-main", map[string]any{"name": "Curta", "email": "c@x.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterMainRollsBackIdentity(t *testing.T) {
	fake := identitytest.New()
	store := failingStore{Store: memstore.New()}
	svc := NewService(store, fake, &stubSeeder{}, tenant.NewPurger(store, fake))

	_, err := svc.RegisterMain(context.Background(), RegisterInput{Name: "Alice", Email: "alice@x.com", Password: "segredo1"})
	require.Error(t, err)
	assert.Equal(t, []string{"uid-1"}, fake.Deleted)
	assert.Nil(t, fake.User("uid-1"))
}

func TestSessionEndpoints(t *testing.T) {
	e := newEnv(t)
	uid := e.register("alice@x.com")
	token := identitytest.TokenFor(uid)

	rec := e.do("", http.MethodPost, "/refresh-token", map[string]any{"refresh_token": "refresh:" + uid})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Token renovado","id_token":"token:`+uid+`","refresh_token":"refresh:`+uid+`","expires_in":"3600"}`, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, e.do("", http.MethodPost, "/refresh-token", map[string]any{"refresh_token": "lixo"}).Code)
	assert.Equal(t, http.StatusNotFound, e.do("", http.MethodPost, "/auth/login", map[string]any{"email": "alice@x.com", "password": "segredo1"}).Code)

	rec = e.do(token, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Usuário logado: main","mainId":"`+uid+`"}`, rec.Body.String())

	rec = e.do(token, http.MethodGet, "/user-role", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"role":"main","mainUserId":"`+uid+`","name":"Alice"}`, rec.Body.String())

	childUID := e.child(uid, "bob@x.com")
	rec = e.do(identitytest.TokenFor(childUID), http.MethodGet, "/user-role", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"role":"child","mainUserId":"`+uid+`","name":"Bob"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, e.do("", http.MethodGet, "/users", nil).Code)
}

func TestUpdateMainUser(t *testing.T) {
	e := newEnv(t)
	uid := e.register("alice@x.com")
	other := e.register("carol@x.com")
	token := identitytest.TokenFor(uid)
	childUID := e.child(uid, "bob@x.com")

	cases := []struct {
		name   string
		token  string
		target string
		body   map[string]any
		status int
	}{
		{"other main", token, other, map[string]any{"name": "X"}, http.StatusForbidden},
		{"child", identitytest.TokenFor(childUID), childUID, map[string]any{"name": "X"}, http.StatusForbidden},
		{"unlisted key", token, uid, map[string]any{"name": "Alice B", "role": "main"}, http.StatusBadRequest},
		{"blank name", token, uid, map[string]any{"name": " "}, http.StatusBadRequest},
		{"short password", token, uid, map[string]any{"password": "123"}, http.StatusBadRequest},
		{"empty body", token, uid, map[string]any{}, http.StatusBadRequest},
		{"name only", token, uid, map[string]any{"name": "Alice B"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(tc.token, http.MethodPut, "/users/"+tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, e.fake.User(uid).Revoked)

	rec := e.do(token, http.MethodPut, "/users/"+uid, map[string]any{"email": "alice@y.com", "password": "novasenha"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := e.fake.User(uid)
	assert.Equal(t, "alice@y.com", u.Email)
	assert.Equal(t, "novasenha", u.Password)
	assert.Equal(t, 1, u.Revoked)

	doc, err := e.store.Get(context.Background(), tenant.UserPath(uid))
	require.NoError(t, err)
	assert.Equal(t, "Alice B", doc.Data["name"])
	assert.Equal(t, "alice@y.com", doc.Data["email"])

	e.fake.FailUpdate = errors.New("provedor fora do ar")
	rec = e.do(token, http.MethodPut, "/users/"+uid, map[string]any{"email": "alice@z.com"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	doc, err = e.store.Get(context.Background(), tenant.UserPath(uid))
	require.NoError(t, err)
	assert.Equal(t, "alice@y.com", doc.Data["email"])
}

func TestChildUsers(t *testing.T) {
	e := newEnv(t)
	uid := e.register("alice@x.com")
	token := identitytest.TokenFor(uid)
	childUID := e.child(uid, "bob@x.com")

	assert.Equal(t, map[string]any{"role": "child", "mainUserId": uid}, e.fake.User(childUID).Claims)
	assert.Equal(t, http.StatusForbidden, e.do(identitytest.TokenFor(childUID), http.MethodGet, "/child-users", nil).Code)

	rec := e.do(token, http.MethodGet, "/child-users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		ChildUsers []ChildUser `json:"child_users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.ChildUsers, 1)
	assert.Equal(t, childUID, list.ChildUsers[0].UID)
	assert.Equal(t, uid, list.ChildUsers[0].MainUserID)

	assert.Equal(t, http.StatusNotFound, e.do(token, http.MethodPut, "/child-users/nada", map[string]any{"name": "X"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(token, http.MethodPut, "/child-users/"+childUID, map[string]any{"mainUserId": "x"}).Code)
	rec = e.do(token, http.MethodPut, "/child-users/"+childUID, map[string]any{"name": "Roberto", "password": "outrasenha"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "outrasenha", e.fake.User(childUID).Password)

	e.fake.FailDelete[childUID] = errors.New("provedor fora do ar")
	require.Equal(t, http.StatusOK, e.do(token, http.MethodDelete, "/child-users/"+childUID, nil).Code)
	_, err := e.store.Get(context.Background(), tenant.ChildUserPath(uid, childUID))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, e.do(token, http.MethodDelete, "/child-users/"+childUID, nil).Code)
}

func TestDeleteTenant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := e.register("alice@x.com")
	token := identitytest.TokenFor(uid)
	c1 := e.child(uid, "bob@x.com")
	c2 := e.child(uid, "dave@x.com")

	tplPath := tenant.TemplatePath(uid, "t1")
	phasePath := tenant.PhasePath(uid, "b1", "p1")
	for _, p := range []string{tplPath, tenant.BlockPath(uid, "b1"), phasePath, tenant.ResourcePath(uid, "r1"), tenant.OpPath(uid, "o1")} {
		require.NoError(t, e.store.Set(ctx, p, map[string]any{tenant.FieldMainUserID: uid}))
	}
	e.fake.FailDelete[c2] = errors.New("provedor fora do ar")

	assert.Equal(t, http.StatusForbidden, e.do(identitytest.TokenFor(c1), http.MethodDelete, "/users/"+uid, nil).Code)

	rec := e.do(token, http.MethodDelete, "/users/"+uid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var payload struct {
		Report tenant.PurgeReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{c2}, payload.Report.FailedIdentities)
	assert.Equal(t, 1, payload.Report.ChildIdentities)

	for _, p := range []string{tenant.UserPath(uid), tplPath, phasePath, tenant.ChildUserPath(uid, c1)} {
		_, err := e.store.Get(ctx, p)
		assert.ErrorIs(t, err, docstore.ErrNotFound, p)
	}
	assert.Zero(t, e.store.Len())
	assert.Nil(t, e.fake.User(uid))
	assert.Nil(t, e.fake.User(c1))
	assert.Equal(t, http.StatusUnauthorized, e.do(token, http.MethodGet, "/users", nil).Code)
}

func TestAdminDelete(t *testing.T) {
	e := newEnv(t)
	uid := e.register("alice@x.com")

	assert.Equal(t, http.StatusForbidden, e.do("", http.MethodDelete, "/admin/users/"+uid, nil).Code)

	req := httptest.NewRequest(http.MethodDelete, "/admin/users/"+uid, nil)
	req.Header.Set(middleware.AdminKeyHeader, adminKey)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, e.fake.User(uid))

	req = httptest.NewRequest(http.MethodDelete, "/admin/users/"+uid, nil)
	req.Header.Set(middleware.AdminKeyHeader, adminKey)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
