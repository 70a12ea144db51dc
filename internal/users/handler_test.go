package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeStore struct {
	users   map[uuid.UUID]*models.User
	roles   map[uuid.UUID]models.Role
	updates   []models.UserUpdate
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]*models.User{}, roles: map[uuid.UUID]models.Role{}}
}

func (f *fakeStore) EnsureProfile(_ context.Context, a *models.Account) (*models.User, error) {
	if u, ok := f.users[a.ID]; ok {
		return u, nil
	}
	u := &models.User{ID: a.ID, Email: a.Email, Name: ProfileName(a.FullName(), a.Email), ProfileType: models.ProfileUser}
	f.users[a.ID] = u
	return u, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) List(context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, in models.UserUpdate) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, in)
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.ProfileType != nil {
		u.ProfileType = *in.ProfileType
	}
	return u, nil
}

func (f *fakeStore) UpsertRole(_ context.Context, id uuid.UUID, role models.Role) error {
	f.roles[id] = role
	return nil
}

func (f *fakeStore) GetRole(_ context.Context, id uuid.UUID) (models.Role, error) {
	if r, ok := f.roles[id]; ok {
		return r, nil
	}
	return "", database.ErrNotFound
}

func (f *fakeStore) ListWithRoles(context.Context) ([]models.UserWithRole, error) { return nil, nil }

type fakeAccounts map[uuid.UUID]*models.Account

func (f fakeAccounts) GetAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, database.ErrNotFound
}

type recordingInvalidator struct{ ids []uuid.UUID }

func (r *recordingInvalidator) Invalidate(_ context.Context, id uuid.UUID) { r.ids = append(r.ids, id) }

func serve(h gin.HandlerFunc, method, path, route string, caller uuid.UUID, body any) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		c.Set(middleware.ContextUserID, caller)
		c.Next()
	}, h)
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func TestProfileName(t *testing.T) {
	assert.Equal(t, "Ana Souza", ProfileName(" Ana Souza ", "ana@example.com"))
	assert.Equal(t, "ana", ProfileName("", "ana@example.com"))
	assert.Equal(t, models.DefaultProfileName, ProfileName("", ""))
	assert.Equal(t, models.DefaultProfileName, ProfileName("", "@example.com"))
}

func TestMeCreatesProfileLazily(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	accounts := fakeAccounts{id: {ID: id, Email: "bia@example.com", Metadata: map[string]any{"full_name": "Bia"}}}
	h := NewHandler(store, accounts, &recordingInvalidator{}, nil)

	w := serve(h.Me, http.MethodGet, "/me", "/me", id, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Bia"`)
	assert.Equal(t, models.ProfileUser, store.users[id].ProfileType)
}

func TestDeleteIsNotAllowed(t *testing.T) {
	h := NewHandler(newFakeStore(), fakeAccounts{}, &recordingInvalidator{}, nil)
	w := serve(h.Delete, http.MethodDelete, "/admin/users/x", "/admin/users/:id", uuid.New(), nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "users cannot be deleted")
}

func TestUpdateProfileTypeInvalidatesAccess(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	store.users[id] = &models.User{ID: id, Name: "Caio", ProfileType: models.ProfileUser}
	inv := &recordingInvalidator{}
	h := NewHandler(store, fakeAccounts{}, inv, nil)

	w := serve(h.Update, http.MethodPatch, "/admin/users/"+id.String(), "/admin/users/:id", uuid.New(),
		map[string]any{"profile_type": "organization"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ProfileOrganization, store.users[id].ProfileType)
	assert.Equal(t, []uuid.UUID{id}, inv.ids)
}

func TestUpdateRejectsInvalidFields(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	store.users[id] = &models.User{ID: id}
	h := NewHandler(store, fakeAccounts{}, &recordingInvalidator{}, nil)

	for _, body := range []map[string]any{
		{"profile_type": "root"},
		{"birth_date": "31/12/2000"},
		{"name": "  "},
		{"email": "nope"},
		{"email": "@"},
		{"email": "ana@"},
	} {
		w := serve(h.Update, http.MethodPatch, "/admin/users/"+id.String(), "/admin/users/:id", uuid.New(), body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}
	assert.Empty(t, store.updates)
}

func TestUpdateDuplicateEmailConflicts(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	store.users[id] = &models.User{ID: id}
	store.updateErr = fmt.Errorf("update: %w", &pgconn.PgError{Code: "23505"})
	h := NewHandler(store, fakeAccounts{}, &recordingInvalidator{}, nil)

	w := serve(h.Update, http.MethodPatch, "/admin/users/"+id.String(), "/admin/users/:id", uuid.New(),
		map[string]any{"email": "bia@example.com"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "email already in use")
}

func TestUpdateMeIgnoresPrivilegedFields(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	store.users[id] = &models.User{ID: id, ProfileType: models.ProfileUser}
	inv := &recordingInvalidator{}
	h := NewHandler(store, fakeAccounts{}, inv, nil)

	w := serve(h.UpdateMe, http.MethodPatch, "/me", "/me", id,
		map[string]any{"name": "Duda", "profile_type": "admin", "birth_date": "2000-01-31"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ProfileUser, store.users[id].ProfileType)
	require.Len(t, store.updates, 1)
	assert.Nil(t, store.updates[0].ProfileType)
	assert.Equal(t, time.Date(2000, 1, 31, 0, 0, 0, 0, time.UTC), *store.updates[0].BirthDate)
	assert.Empty(t, inv.ids)
}

func TestRoles(t *testing.T) {
	id := uuid.New()
	store := newFakeStore()
	store.users[id] = &models.User{ID: id}
	inv := &recordingInvalidator{}
	h := NewHandler(store, fakeAccounts{}, inv, nil)

	w := serve(h.MyRole, http.MethodGet, "/me/role", "/me/role", id, nil)
	assert.JSONEq(t, `{"success":true,"data":{"role":"user"}}`, w.Body.String())

	w = serve(h.SetRole, http.MethodPut, "/admin/users/"+id.String()+"/role", "/admin/users/:id/role", uuid.New(), map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(h.Promote, http.MethodPost, "/admin/users/"+id.String()+"/promote", "/admin/users/:id/promote", uuid.New(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, store.roles[id])
	assert.Equal(t, []uuid.UUID{id}, inv.ids)

	w = serve(h.Demote, http.MethodPost, "/admin/users/"+uuid.NewString()+"/demote", "/admin/users/:id/demote", uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
