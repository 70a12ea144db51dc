package organizations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/auth"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
)

func init() { gin.SetMode(gin.TestMode) }

func int64p(v int64) *int64 { return &v }

var (
	superAdmin = access.Access{UserID: uuid.New(), Level: access.LevelAdmin}
	orgAdmin   = access.Access{UserID: uuid.New(), Level: access.LevelOrganization, OrganizationID: int64p(7)}
	plainUser  = access.Access{UserID: uuid.New(), Level: access.LevelUser}
)

type fakeStore struct {
	orgs      map[int64]*models.Organization
	members   []uuid.UUID
	scope     access.Scope
	deleted   []int64
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orgs: map[int64]*models.Organization{
		7: {ID: 7, Name: "Casa Esperança"},
		9: {ID: 9, Name: "Lar Feliz"},
	}}
}

func (f *fakeStore) List(_ context.Context, scope access.Scope) ([]models.Organization, error) {
	f.listCalls++
	f.scope = scope
	var out []models.Organization
	for _, o := range f.orgs {
		if scope.Includes(&o.ID) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Organization, error) {
	if o, ok := f.orgs[id]; ok {
		return o, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) Update(_ context.Context, id int64, in models.OrganizationUpdate) (*models.Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if in.Name != nil {
		o.Name = *in.Name
	}
	return o, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.orgs[id]; !ok {
		return database.ErrNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) MemberIDs(context.Context, int64) ([]uuid.UUID, error) { return f.members, nil }

func (f *fakeStore) Members(_ context.Context, orgID int64) ([]models.OrganizationMember, error) {
	return []models.OrganizationMember{{OrganizationID: orgID, Role: models.MemberRoleOwner, IsMain: true}}, nil
}

type fakeProvision struct {
	err     error
	created []string
	added   []auth.NewAccount
}

func (f *fakeProvision) CreateWithOwner(_ context.Context, in models.OrganizationInput, email string) (*models.Organization, *models.Account, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.created = append(f.created, email)
	id := uuid.New()
	return &models.Organization{ID: 11, Name: in.Name, UserID: &id}, &models.Account{ID: id, Email: email}, nil
}

func (f *fakeProvision) AddUser(_ context.Context, _ int64, in auth.NewAccount) (*models.Account, *models.User, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.added = append(f.added, in)
	id := uuid.New()
	return &models.Account{ID: id, Email: in.Email}, &models.User{ID: id, Name: in.Name, Email: in.Email,
		ProfileType: models.ProfileOrganization}, nil
}

type fakeLinks struct{ sent []string }

func (f *fakeLinks) SendLink(_ context.Context, account *models.Account, _, emailType string) error {
	f.sent = append(f.sent, emailType+":"+account.Email)
	return nil
}

type fakeBindings struct{}

func (fakeBindings) OrganizationsForUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]access.Binding, error) {
	out := map[uuid.UUID]access.Binding{}
	for i, id := range ids {
		if i == 0 {
			out[id] = access.Binding{ID: 7, Name: "Casa Esperança", ProfileType: models.ProfileOrganization}
			continue
		}
		out[id] = access.Binding{ProfileType: models.ProfileUser}
	}
	return out, nil
}

type fakeInvalidator struct{ ids []uuid.UUID }

func (f *fakeInvalidator) Invalidate(_ context.Context, id uuid.UUID) { f.ids = append(f.ids, id) }

type fixture struct {
	store     *fakeStore
	provision *fakeProvision
	links     *fakeLinks
	inval     *fakeInvalidator
	handler   *Handler
}

func newFixture() *fixture {
	f := &fixture{store: newFakeStore(), provision: &fakeProvision{}, links: &fakeLinks{}, inval: &fakeInvalidator{}}
	f.handler = NewHandler(f.store, f.provision, f.links, fakeBindings{}, f.inval, nil)
	return f
}

func (f *fixture) router(a access.Access) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextAccess, a)
		c.Next()
	})
	r.GET("/admin/organizations", f.handler.List)
	r.GET("/admin/organizations/:id", f.handler.GetByID)
	r.POST("/admin/organizations", f.handler.Create)
	r.PATCH("/admin/organizations/:id", f.handler.Update)
	r.DELETE("/admin/organizations/:id", f.handler.Delete)
	r.POST("/api/organizations/:id/users", f.handler.AddUser)
	r.GET("/api/organizations/:id/users", f.handler.ListUsers)
	r.POST("/api/users/organizations", f.handler.UserOrganizations)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func TestListIsScoped(t *testing.T) {
	f := newFixture()

	w := do(f.router(orgAdmin), http.MethodGet, "/admin/organizations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Casa Esperança")
	assert.NotContains(t, w.Body.String(), "Lar Feliz")

	w = do(f.router(superAdmin), http.MethodGet, "/admin/organizations", nil)
	assert.Contains(t, w.Body.String(), "Lar Feliz")
	assert.True(t, f.store.scope.IsAll())
}

func TestGetByIDOutsideScope(t *testing.T) {
	f := newFixture()
	w := do(f.router(orgAdmin), http.MethodGet, "/admin/organizations/9", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreate(t *testing.T) {
	f := newFixture()

	w := do(f.router(superAdmin), http.MethodPost, "/admin/organizations",
		map[string]string{"name": "Nova ONG", "email": "ong@example.com"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"ong@example.com"}, f.provision.created)
	assert.Equal(t, []string{models.EmailTypeWelcome + ":ong@example.com"}, f.links.sent)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	w := do(f.router(superAdmin), http.MethodPost, "/admin/organizations", map[string]string{"name": "Sem email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.provision.created)

	f.provision.err = auth.ErrEmailTaken
	w = do(f.router(superAdmin), http.MethodPost, "/admin/organizations",
		map[string]string{"name": "Dup", "email": "dup@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, f.links.sent)
}

func TestUpdateRequiresOwnOrganization(t *testing.T) {
	f := newFixture()
	name := "Renomeada"

	w := do(f.router(orgAdmin), http.MethodPatch, "/admin/organizations/9", map[string]*string{"name": &name})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(f.router(orgAdmin), http.MethodPatch, "/admin/organizations/7", map[string]*string{"name": &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Renomeada")
}

func TestDeleteIsAdminOnly(t *testing.T) {
	f := newFixture()
	member := uuid.New()
	f.store.members = []uuid.UUID{member}

	w := do(f.router(orgAdmin), http.MethodDelete, "/admin/organizations/7", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.store.deleted)

	w = do(f.router(superAdmin), http.MethodDelete, "/admin/organizations/7", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{7}, f.store.deleted)
	assert.Equal(t, []uuid.UUID{member}, f.inval.ids)
}

func TestAddUserProblems(t *testing.T) {
	f := newFixture()
	r := f.router(superAdmin)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		error  string
	}{
		{"invalid id", "/api/organizations/abc/users", AddUserRequest{Name: "A", Email: "a@example.com"}, http.StatusBadRequest, "Invalid organization ID"},
		{"unknown organization", "/api/organizations/404/users", AddUserRequest{Name: "A", Email: "a@example.com"}, http.StatusNotFound, "Organization not found"},
		{"short password", "/api/organizations/7/users", AddUserRequest{Name: "A", Email: "a@example.com", Password: "123"}, http.StatusBadRequest, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			var p response.Problem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
			assert.Equal(t, tt.error, p.Error)
		})
	}
	assert.Empty(t, f.provision.added)
}

func TestAddUser(t *testing.T) {
	f := newFixture()

	w := do(f.router(orgAdmin), http.MethodPost, "/api/organizations/7/users",
		AddUserRequest{Name: "Ana", Email: "ana@example.com", Password: "secret1"})

	require.Equal(t, http.StatusCreated, w.Code)
	var body AddUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "ana@example.com", body.User.Email)
	assert.NotEmpty(t, body.Message)
	require.Len(t, f.provision.added, 1)
	assert.Empty(t, f.links.sent)

	w = do(f.router(orgAdmin), http.MethodPost, "/api/organizations/9/users",
		AddUserRequest{Name: "Ana", Email: "ana2@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAddUserWithoutPasswordSendsLink(t *testing.T) {
	f := newFixture()
	w := do(f.router(superAdmin), http.MethodPost, "/api/organizations/7/users",
		AddUserRequest{Name: "Bia", Email: "bia@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{models.EmailTypeRecovery + ":bia@example.com"}, f.links.sent)
}

func TestUserOrganizations(t *testing.T) {
	f := newFixture()
	bound, unbound := uuid.New(), uuid.New()

	w := do(f.router(superAdmin), http.MethodPost, "/api/users/organizations",
		UserOrganizationsRequest{UserIDs: []uuid.UUID{bound, unbound}})

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Organizations map[string]access.Binding `json:"organizations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.Organizations[bound.String()].ID)
	assert.Equal(t, int64(0), body.Organizations[unbound.String()].ID)

	w = do(f.router(plainUser), http.MethodPost, "/api/users/organizations",
		UserOrganizationsRequest{UserIDs: []uuid.UUID{bound}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
