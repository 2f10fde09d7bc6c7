package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/ratelimit"
	"github.com/taskdeck/backend/internal/service"
	"github.com/taskdeck/backend/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	resets   map[string]*model.PasswordResetToken
	tasks    map[string]*model.Task
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*model.User{},
		sessions: map[string]*model.Session{},
		resets:   map[string]*model.PasswordResetToken{},
		tasks:    map[string]*model.Task{},
	}
}

func (s *memStore) CreateUser(_ context.Context, name *string, email string, passwordHash, image *string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &model.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: passwordHash, Image: image}
	s.users[user.ID] = user
	return user, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (s *memStore) UpdateUserProfile(_ context.Context, id string, name, image *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		if name != nil {
			u.Name = name
		}
		if image != nil {
			u.Image = image
		}
	}
	return nil
}

func (s *memStore) InsertSession(_ context.Context, token, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &model.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (s *memStore) GetSession(_ context.Context, token string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *memStore) DeleteUserSessions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *memStore) ReplaceResetToken(_ context.Context, t *model.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, existing := range s.resets {
		if existing.Email == t.Email {
			delete(s.resets, key)
		}
	}
	copied := *t
	s.resets[t.Token] = &copied
	return nil
}

func (s *memStore) GetResetToken(_ context.Context, token string) (*model.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.resets[token]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) DeleteResetToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.resets {
		if t.ID == id {
			delete(s.resets, key)
		}
	}
	return nil
}

func (s *memStore) CreateTask(_ context.Context, userID string, req model.CreateTaskRequest) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &model.Task{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Status:   req.Status,
		Priority: req.Priority,
		DueDate:  req.DueDate,
		UserID:   userID,
	}
	s.tasks[task.ID] = task
	copied := *task
	return &copied, nil
}

func (s *memStore) ListTasks(_ context.Context, userID string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []model.Task{}
	for _, task := range s.tasks {
		if task.UserID == userID {
			list = append(list, *task)
		}
	}
	return list, nil
}

func (s *memStore) GetTask(_ context.Context, userID, taskID string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[taskID]; ok && task.UserID == userID {
		copied := *task
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) UpdateTask(_ context.Context, userID, taskID string, req model.UpdateTaskRequest) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	copied := *task
	return &copied, nil
}

func (s *memStore) DeleteTask(_ context.Context, userID, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[taskID]; ok && task.UserID == userID {
		delete(s.tasks, taskID)
		return true, nil
	}
	return false, nil
}

func (s *memStore) TaskStats(_ context.Context, userID string, now time.Time) (*model.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.DashboardStats{ByStatus: map[string]int64{}, ByPriority: map[string]int64{}}
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority]++
		if task.DueDate != nil && task.DueDate.Before(now) && task.Status != model.StatusDone {
			stats.Overdue++
		}
	}
	return stats, nil
}

type nopMailer struct{}

func (nopMailer) SendPasswordReset(context.Context, string, string) error { return nil }

type routerFixture struct {
	router *gin.Engine
	auth   *service.AuthService
	codec  *token.Codec
	store  *memStore
	mr     *miniredis.Miniredis
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	codec, err := token.NewCodec("router-test-secret", service.SessionCookieName, service.LegacySessionCookieName)
	require.NoError(t, err)

	store := newMemStore()
	auth, err := service.NewAuthService(store, store, store, codec, nopMailer{}, config.AuthConfig{
		SessionTTL:   "1h",
		StoreTimeout: "2s",
		CookieSecure: "false",
	}, "http://localhost:8080", zerolog.Nop())
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := ratelimit.New(rdb, false, zerolog.Nop())
	tasks := service.NewTaskService(store, limiter, ratelimit.Rule{Limit: 3, Window: time.Minute}, 2*time.Second, zerolog.Nop())

	router := NewRouter(auth, tasks, nil, RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	return &routerFixture{router: router, auth: auth, codec: codec, store: store, mr: mr}
}

type requestOpts struct {
	body        string
	contentType string
	cookie      *http.Cookie
	header      map[string]string
}

func (fx *routerFixture) do(t *testing.T, method, path string, opts requestOpts) *httptest.ResponseRecorder {
	t.Helper()

	var body *strings.Reader
	if opts.body != "" {
		body = strings.NewReader(opts.body)
	} else {
		body = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, body)
	if opts.contentType != "" {
		req.Header.Set("Content-Type", opts.contentType)
	}
	if opts.cookie != nil {
		req.AddCookie(opts.cookie)
	}
	for key, value := range opts.header {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

// registerUser registers via the HTTP surface and returns the issued
// session cookie.
func (fx *routerFixture) registerUser(t *testing.T, email, password string) *http.Cookie {
	t.Helper()

	form := url.Values{"name": {"Test User"}, "email": {email}, "password": {password}}
	rec := fx.do(t, http.MethodPost, "/api/auth/register", requestOpts{
		body:        form.Encode(),
		contentType: "application/x-www-form-urlencoded",
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/app", rec.Header().Get("Location"))

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == service.SessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("register did not set a session cookie")
	return nil
}
