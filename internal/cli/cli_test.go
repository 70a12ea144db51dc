package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/pkg/database"
)

type fakeMigrator struct {
	version uint
	downBy  int
	upCalls int
}

func (m *fakeMigrator) Up() error {
	m.upCalls++
	m.version = 2
	return nil
}

func (m *fakeMigrator) Down(steps int) error {
	m.downBy = steps
	m.version -= uint(steps)
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, false, nil }

type fakeGranter struct {
	id     uuid.UUID
	err    error
	email  string
	closed bool
}

func (g *fakeGranter) GrantAdmin(_ context.Context, email string) (uuid.UUID, error) {
	g.email = email
	return g.id, g.err
}

func testDeps(m *fakeMigrator, g *fakeGranter) Deps {
	return Deps{
		LoadConfig:  func() (*config.Config, error) { return &config.Config{}, nil },
		NewMigrator: func(*config.Config) Migrator { return m },
		NewGranter: func(context.Context, *config.Config) (AdminGranter, func(), error) {
			return g, func() { g.closed = true }, nil
		},
	}
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(testDeps(&fakeMigrator{}, &fakeGranter{}))
	for _, path := range [][]string{{"migrate", "up"}, {"migrate", "down"}, {"migrate", "version"}, {"grant-admin"}, {"version"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	m := &fakeMigrator{}
	deps := testDeps(m, &fakeGranter{})

	out, err := run(t, deps, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, 1, m.upCalls)
	assert.Contains(t, out, "schema version 2")

	out, err = run(t, deps, "migrate", "down", "--steps", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.downBy)
	assert.Contains(t, out, "schema version 1")

	_, err = run(t, deps, "migrate", "down", "--steps", "0")
	assert.Error(t, err)
}

func TestGrantAdmin(t *testing.T) {
	id := uuid.New()
	g := &fakeGranter{id: id}

	out, err := run(t, testDeps(&fakeMigrator{}, g), "grant-admin", "--email", " root@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", g.email)
	assert.True(t, g.closed)
	assert.Contains(t, out, id.String())
}

func TestGrantAdminRequiresEmail(t *testing.T) {
	_, err := run(t, testDeps(&fakeMigrator{}, &fakeGranter{}), "grant-admin")
	assert.ErrorContains(t, err, "--email is required")
}

func TestGrantAdminUnknownUser(t *testing.T) {
	g := &fakeGranter{err: errors.Join(errors.New("grant admin"), database.ErrNotFound)}
	_, err := run(t, testDeps(&fakeMigrator{}, g), "grant-admin", "--email", "ghost@example.com")
	assert.ErrorContains(t, err, "no user registered with ghost@example.com")
}

func TestVersion(t *testing.T) {
	out, err := run(t, testDeps(&fakeMigrator{}, &fakeGranter{}), "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}
