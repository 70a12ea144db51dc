package missions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/events"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

func init() { gin.SetMode(gin.TestMode) }

func int64p(v int64) *int64 { return &v }

type key struct {
	user  uuid.UUID
	event int64
}

// fakeStore mimics the unique (user_id, event_id) constraint.
type fakeStore struct {
	mu       sync.Mutex
	missions map[key]*models.UserEvent
	orgs     map[int64]*int64
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{missions: map[key]*models.UserEvent{}, orgs: map[int64]*int64{1: int64p(7), 2: int64p(9)}}
}

func (f *fakeStore) Accept(_ context.Context, userID uuid.UUID, eventID int64, status models.MissionStatus) (*models.UserEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key{userID, eventID}
	if m, ok := f.missions[k]; ok {
		m.Status = status
		return m, false, nil
	}
	f.nextID++
	m := &models.UserEvent{ID: f.nextID, UserID: userID, EventID: eventID, Status: status}
	f.missions[k] = m
	return m, true, nil
}

func (f *fakeStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.UserEvent, error) {
	out := []models.UserEvent{}
	for k, m := range f.missions {
		if k.user == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, userID uuid.UUID, eventID int64) (*models.UserEvent, error) {
	if m, ok := f.missions[key{userID, eventID}]; ok {
		return m, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) UpdateStatus(ctx context.Context, userID uuid.UUID, eventID int64, status models.MissionStatus) (*models.UserEvent, error) {
	m, err := f.Get(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	m.Status = status
	return m, nil
}

func (f *fakeStore) Delete(_ context.Context, userID uuid.UUID, eventID int64) error {
	k := key{userID, eventID}
	if _, ok := f.missions[k]; !ok {
		return database.ErrNotFound
	}
	delete(f.missions, k)
	return nil
}

func (f *fakeStore) Stats(_ context.Context, userID uuid.UUID) (models.MissionStats, error) {
	var s models.MissionStats
	for k, m := range f.missions {
		if k.user != userID {
			continue
		}
		s.Total++
		if m.Status == models.MissionAccepted {
			s.Accepted++
		}
	}
	return s, nil
}

func (f *fakeStore) Participants(_ context.Context, eventID int64) ([]models.Participant, error) {
	out := []models.Participant{}
	for k, m := range f.missions {
		if k.event == eventID {
			out = append(out, models.Participant{ID: m.ID, EventID: eventID, Status: m.Status, User: models.User{ID: k.user}})
		}
	}
	return out, nil
}

func (f *fakeStore) CountParticipants(ctx context.Context, eventID int64) (int, error) {
	list, _ := f.Participants(ctx, eventID)
	return len(list), nil
}

func (f *fakeStore) Participation(_ context.Context, id int64) (*models.UserEvent, *int64, error) {
	for _, m := range f.missions {
		if m.ID == id {
			return m, f.orgs[m.EventID], nil
		}
	}
	return nil, nil, database.ErrNotFound
}

func (f *fakeStore) SetParticipationStatus(ctx context.Context, id int64, status models.MissionStatus) (*models.UserEvent, error) {
	m, _, err := f.Participation(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Status = status
	return m, nil
}

type fakeEvents struct{}

func (fakeEvents) GetByID(_ context.Context, id int64) (*models.Event, error) {
	switch id {
	case 1:
		return &models.Event{ID: 1, Title: "Mutirão", OrganizationID: int64p(7)}, nil
	case 2:
		return &models.Event{ID: 2, Title: "Campanha", OrganizationID: int64p(9)}, nil
	}
	return nil, database.ErrNotFound
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []map[string]any
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _ uuid.UUID, slug string, meta any) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := meta.(map[string]any)
	m["slug"] = slug
	f.calls = append(f.calls, m)
	return nil, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	queues []string
}

func (f *fakePublisher) Publish(_ context.Context, queue string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, queue)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fixture struct {
	store    *fakeStore
	notifier *fakeNotifier
	pub      *fakePublisher
	handler  *Handler
}

func newFixture() *fixture {
	f := &fixture{store: newFakeStore(), notifier: &fakeNotifier{}, pub: &fakePublisher{}}
	f.handler = NewHandler(f.store, fakeEvents{}, f.notifier, f.pub, nil)
	return f
}

func (f *fixture) router(a access.Access) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, a.UserID)
		c.Set(middleware.ContextAccess, a)
		c.Next()
	})
	r.POST("/events/:id/accept", f.handler.Accept)
	r.GET("/events/:id/mission", f.handler.EventMission)
	r.GET("/me/missions", f.handler.MyMissions)
	r.PATCH("/me/missions/:eventId", f.handler.UpdateMine)
	r.DELETE("/me/missions/:eventId", f.handler.DeleteMine)
	r.GET("/me/stats", f.handler.MyStats)
	guard := events.RequireEventAccess(fakeEvents{}, access.CanViewParticipants, nil)
	r.GET("/admin/events/:id/participants", guard, f.handler.Participants)
	r.GET("/admin/events/:id/participants/count", guard, f.handler.ParticipantCount)
	r.PATCH("/admin/participants/:id", f.handler.UpdateParticipant)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body == nil {
		req.ContentLength = 0
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func user() access.Access { return access.Access{UserID: uuid.New(), Level: access.LevelUser} }

func TestAcceptNotifiesOnlyOnce(t *testing.T) {
	f := newFixture()
	r := f.router(user())

	w := do(r, http.MethodPost, "/events/1/accept", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(r, http.MethodPost, "/events/1/accept", StatusRequest{Status: models.MissionPending})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, models.NotificationEventSubscribe, f.notifier.calls[0]["slug"])
	assert.Equal(t, int64(1), f.notifier.calls[0]["event_id"])
	assert.Equal(t, "Mutirão", f.notifier.calls[0]["event_title"])
	assert.Equal(t, []string{"mission.accepted"}, f.pub.queues)
	assert.Len(t, f.store.missions, 1)
}

func TestConcurrentAcceptsProduceOneRow(t *testing.T) {
	f := newFixture()
	r := f.router(user())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(r, http.MethodPost, "/events/1/accept", nil)
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.missions, 1)
	assert.Len(t, f.notifier.calls, 1)
}

func TestAcceptNotificationFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("db down")

	w := do(f.router(user()), http.MethodPost, "/events/1/accept", nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, f.store.missions, 1)
}

func TestAcceptValidation(t *testing.T) {
	f := newFixture()
	r := f.router(user())

	w := do(r, http.MethodPost, "/events/1/accept", StatusRequest{Status: "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/events/404/accept", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.store.missions)
}

func TestMyMissionLifecycle(t *testing.T) {
	f := newFixture()
	r := f.router(user())

	w := do(r, http.MethodGet, "/events/1/mission", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	do(r, http.MethodPost, "/events/1/accept", nil)

	w = do(r, http.MethodPatch, "/me/missions/1", StatusRequest{Status: models.MissionCompleted})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(r, http.MethodPatch, "/me/missions/1", StatusRequest{Status: "finished"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/me/stats", nil)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodDelete, "/me/missions/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodDelete, "/me/missions/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParticipantsGuard(t *testing.T) {
	f := newFixture()
	volunteer := user()
	do(f.router(volunteer), http.MethodPost, "/events/1/accept", nil)

	own := access.Access{UserID: uuid.New(), Level: access.LevelOrganization, OrganizationID: int64p(7)}
	other := access.Access{UserID: uuid.New(), Level: access.LevelOrganization, OrganizationID: int64p(9)}

	w := do(f.router(own), http.MethodGet, "/admin/events/1/participants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), volunteer.UserID.String())

	w = do(f.router(own), http.MethodGet, "/admin/events/1/participants/count", nil)
	assert.JSONEq(t, `{"success":true,"data":{"count":1}}`, w.Body.String())

	w = do(f.router(other), http.MethodGet, "/admin/events/1/participants", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(f.router(other), http.MethodPatch, "/admin/participants/1", StatusRequest{Status: models.MissionCompleted})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(f.router(own), http.MethodPatch, "/admin/participants/1", StatusRequest{Status: models.MissionCompleted})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}
