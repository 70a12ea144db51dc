package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

type fakeStore struct {
	profiles   map[uuid.UUID]models.ProfileType
	roles      map[uuid.UUID]models.Role
	orgs       map[uuid.UUID]int64
	profileErr error
	roleErr    error
	orgErr     error
	calls      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[uuid.UUID]models.ProfileType{},
		roles:    map[uuid.UUID]models.Role{},
		orgs:     map[uuid.UUID]int64{},
	}
}

func (f *fakeStore) ProfileType(_ context.Context, id uuid.UUID) (models.ProfileType, error) {
	f.calls++
	if f.profileErr != nil {
		return "", f.profileErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return "", database.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) Role(_ context.Context, id uuid.UUID) (models.Role, error) {
	if f.roleErr != nil {
		return "", f.roleErr
	}
	r, ok := f.roles[id]
	if !ok {
		return "", database.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) OrganizationForUser(_ context.Context, id uuid.UUID) (int64, error) {
	if f.orgErr != nil {
		return 0, f.orgErr
	}
	org, ok := f.orgs[id]
	if !ok {
		return 0, database.ErrNotFound
	}
	return org, nil
}

func (f *fakeStore) OrganizationsForUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]Binding, error) {
	out := map[uuid.UUID]Binding{}
	for _, id := range ids {
		if org, ok := f.orgs[id]; ok {
			out[id] = Binding{ID: org, Name: "Org", ProfileType: f.profiles[id]}
		}
	}
	return out, nil
}

type memoryCache struct {
	mu sync.Mutex
	m  map[uuid.UUID]Access
}

func newMemoryCache() *memoryCache { return &memoryCache{m: map[uuid.UUID]Access{}} }

func (c *memoryCache) Get(_ context.Context, id uuid.UUID) (Access, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.m[id]
	return a, ok
}

func (c *memoryCache) Set(_ context.Context, a Access) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[a.UserID] = a
}

func (c *memoryCache) Delete(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
}

func newTestResolver(store *fakeStore, cache Cache) *Resolver {
	return NewResolver(store, NewBinder(store, nil), cache, nil)
}

func TestResolveAnonymous(t *testing.T) {
	r := newTestResolver(newFakeStore(), nil)
	a := r.Resolve(context.Background(), uuid.Nil)
	assert.Equal(t, LevelUnauthenticated, a.Level)
	assert.False(t, a.Authenticated())
}

func TestResolveMissingRowsDefaultToUser(t *testing.T) {
	r := newTestResolver(newFakeStore(), nil)
	id := uuid.New()

	a := r.Resolve(context.Background(), id)

	assert.Equal(t, id, a.UserID)
	assert.Equal(t, models.ProfileUser, a.ProfileType)
	assert.Equal(t, models.RoleUser, a.Role)
	assert.Equal(t, LevelUser, a.Level)
}

func TestResolveLookupErrorsDowngrade(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.profiles[id] = models.ProfileAdmin
	store.profileErr = errors.New("connection refused")
	store.roleErr = errors.New("connection refused")
	cache := newMemoryCache()
	r := newTestResolver(store, cache)

	a := r.Resolve(context.Background(), id)

	assert.Equal(t, LevelUser, a.Level)
	assert.Equal(t, models.RoleUser, a.Role)
	_, cached := cache.Get(context.Background(), id)
	assert.False(t, cached, "a downgraded context must not be kept")
}

func TestResolveRoleDoesNotRaiseTier(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.roles[id] = models.RoleAdmin
	r := newTestResolver(store, nil)

	a := r.Resolve(context.Background(), id)

	assert.Equal(t, models.RoleAdmin, a.Role)
	assert.Equal(t, LevelUser, a.Level)
	assert.False(t, a.CanAccess(LevelAdmin))
}

func TestResolveAdminSeesEverything(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.profiles[id] = models.ProfileAdmin
	r := newTestResolver(store, nil)

	a := r.Resolve(context.Background(), id)

	assert.True(t, a.CanAccess(LevelAdmin))
	assert.True(t, ScopeFor(a).IsAll())
}

func TestResolveOrganizationBindsMembership(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.profiles[id] = models.ProfileOrganization
	// A secondary member with no organizations.user_id link; its membership was
	// backfilled from the legacy metadata organization_id.
	store.orgs[id] = 7
	r := newTestResolver(store, nil)

	a := r.Resolve(context.Background(), id)

	require.NotNil(t, a.OrganizationID)
	assert.Equal(t, int64(7), *a.OrganizationID)
	orgID, ok := ScopeFor(a).OrganizationID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), orgID)
}

func TestResolveUnboundOrganizationSeesNothing(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.profiles[id] = models.ProfileOrganization
	r := newTestResolver(store, nil)

	a := r.Resolve(context.Background(), id)

	assert.Nil(t, a.OrganizationID)
	assert.True(t, a.CanAccess(LevelOrganization))
	assert.True(t, ScopeFor(a).IsEmpty())
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.profiles[id] = models.ProfileUser
	cache := newMemoryCache()
	r := newTestResolver(store, cache)
	ctx := context.Background()

	first := r.Resolve(ctx, id)
	store.profiles[id] = models.ProfileAdmin
	second := r.Resolve(ctx, id)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, first, second)

	r.Invalidate(ctx, id)
	third := r.Resolve(ctx, id)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, LevelAdmin, third.Level)
}

func TestOrganizationsForUsersFillsMissing(t *testing.T) {
	store := newFakeStore()
	bound, unbound := uuid.New(), uuid.New()
	store.profiles[bound] = models.ProfileOrganization
	store.orgs[bound] = 4
	b := NewBinder(store, nil)

	got, err := b.OrganizationsForUsers(context.Background(), []uuid.UUID{bound, unbound})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[bound].ID)
	assert.Equal(t, int64(0), got[unbound].ID)
	assert.Equal(t, models.ProfileUser, got[unbound].ProfileType)
}

func TestOrganizationForLogsAndReturnsNil(t *testing.T) {
	store := newFakeStore()
	store.orgErr = errors.New("timeout")
	b := NewBinder(store, nil)

	assert.Nil(t, b.OrganizationFor(context.Background(), uuid.New()))
}
