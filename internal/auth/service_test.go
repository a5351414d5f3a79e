package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/store"
)

type fakeSessionRepo struct {
	sessions map[string]*store.Session
	deleted  []string
	touched  []string
}

func (r *fakeSessionRepo) Create(_ context.Context, s store.Session) error {
	r.sessions[s.ID] = &s
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*store.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	delete(r.sessions, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeSessionRepo) TouchLastSeen(_ context.Context, id string) error {
	r.touched = append(r.touched, id)
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(context.Context) (int64, error) { return 0, nil }

type fakeUserRepo struct {
	users map[string]*store.User
}

func (r *fakeUserRepo) UpsertOAuthUser(_ context.Context, subject, email string) (*store.User, error) {
	u := &store.User{ID: "user-" + subject, OAuthSubject: subject, Email: email}
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*store.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func newTestService(t *testing.T) (*Service, *fakeSessionRepo, *fakeUserRepo) {
	t.Helper()
	sessions := &fakeSessionRepo{sessions: map[string]*store.Session{}}
	users := &fakeUserRepo{users: map[string]*store.User{}}
	svc := &Service{
		cfg:      testConfig("http://localhost:8080"),
		store:    &store.Store{Users: users, Sessions: sessions},
		sessions: NewSessionManager(testConfig("http://localhost:8080")),
		log:      logger.NewNop(),
	}
	return svc, sessions, users
}

func issueSession(t *testing.T, svc *Service, sessions *fakeSessionRepo, users *fakeUserRepo) *http.Cookie {
	t.Helper()
	users.users["user-1"] = &store.User{ID: "user-1", Email: "u@example.com"}
	sessions.sessions["tok-1"] = &store.Session{
		ID:        "tok-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	w := httptest.NewRecorder()
	require.NoError(t, svc.sessions.Issue(w, "tok-1"))
	return w.Result().Cookies()[0]
}

func TestRequireSessionRedirectsWithoutCookie(t *testing.T) {
	svc, _, _ := newTestService(t)

	called := false
	h := svc.RequireSession(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.False(t, called, "protected handler must not run without a session")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestRequireSessionUnauthorizedForAPI(t *testing.T) {
	svc, _, _ := newTestService(t)

	h := svc.RequireSession(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSessionPopulatesContext(t *testing.T) {
	svc, sessions, users := newTestService(t)
	cookie := issueSession(t, svc, sessions, users)

	var gotUser *store.User
	var gotSessionID string
	h := svc.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		gotSessionID = SessionIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.NotNil(t, gotUser)
	assert.Equal(t, "user-1", gotUser.ID)
	assert.Equal(t, "u@example.com", gotUser.Email)
	assert.Equal(t, "tok-1", gotSessionID)
	assert.Equal(t, []string{"tok-1"}, sessions.touched)
}

func TestRequireSessionUnknownTokenClearsCookie(t *testing.T) {
	svc, sessions, users := newTestService(t)
	cookie := issueSession(t, svc, sessions, users)
	delete(sessions.sessions, "tok-1") // revoked server-side

	h := svc.RequireSession(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	require.NotEmpty(t, w.Result().Cookies())
	assert.Empty(t, w.Result().Cookies()[0].Value, "stale cookie should be cleared")
}

func TestCurrentUser(t *testing.T) {
	svc, sessions, users := newTestService(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := svc.CurrentUser(r)
	assert.False(t, ok)

	cookie := issueSession(t, svc, sessions, users)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)

	user, ok := svc.CurrentUser(r)
	require.True(t, ok)
	assert.Equal(t, "user-1", user.ID)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, sessions, users := newTestService(t)

	// Without any session cookie.
	w := httptest.NewRecorder()
	svc.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Empty(t, sessions.deleted)

	// With a live session: the row is deleted and the cookie cleared.
	cookie := issueSession(t, svc, sessions, users)
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.AddCookie(cookie)
	w = httptest.NewRecorder()
	svc.Logout(w, r)

	assert.Equal(t, []string{"tok-1"}, sessions.deleted)

	// Replaying the same cookie is still fine; the delete is a no-op.
	w = httptest.NewRecorder()
	svc.Logout(w, r)
	assert.Len(t, sessions.deleted, 2)
}
