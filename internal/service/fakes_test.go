package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/token"
	"testing"

	"github.com/stretchr/testify/require"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*model.User{}}
}

func (s *memUserStore) CreateUser(_ context.Context, name *string, email string, passwordHash, image *string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Image:        image,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
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

func (s *memUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memUserStore) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (s *memUserStore) UpdateUserProfile(_ context.Context, id string, name, image *string) error {
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

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	// err, when set, is returned by every call to model a store outage.
	err error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*model.Session{}}
}

func (s *memSessionStore) InsertSession(_ context.Context, token, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sessions[token] = &model.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (s *memSessionStore) GetSession(_ context.Context, token string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if sess, ok := s.sessions[token]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memSessionStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.sessions, token)
	return nil
}

func (s *memSessionStore) DeleteUserSessions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *memSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type memResetStore struct {
	mu     sync.Mutex
	tokens map[string]*model.PasswordResetToken
}

func newMemResetStore() *memResetStore {
	return &memResetStore{tokens: map[string]*model.PasswordResetToken{}}
}

func (s *memResetStore) ReplaceResetToken(_ context.Context, t *model.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, existing := range s.tokens {
		if existing.Email == t.Email {
			delete(s.tokens, key)
		}
	}
	copied := *t
	s.tokens[t.Token] = &copied
	return nil
}

func (s *memResetStore) GetResetToken(_ context.Context, token string) (*model.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memResetStore) DeleteResetToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.tokens {
		if t.ID == id {
			delete(s.tokens, key)
		}
	}
	return nil
}

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: map[string]*model.Task{}}
}

func (s *memTaskStore) CreateTask(_ context.Context, userID string, req model.CreateTaskRequest) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		UserID:      userID,
	}
	s.tasks[task.ID] = task
	copied := *task
	return &copied, nil
}

func (s *memTaskStore) ListTasks(_ context.Context, userID string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []model.Task{}
	for _, task := range s.tasks {
		if task.UserID == userID {
			list = append(list, *task)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *memTaskStore) GetTask(_ context.Context, userID, taskID string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[taskID]; ok && task.UserID == userID {
		copied := *task
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memTaskStore) UpdateTask(_ context.Context, userID, taskID string, req model.UpdateTaskRequest) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	task.UpdatedAt = time.Now()
	copied := *task
	return &copied, nil
}

func (s *memTaskStore) DeleteTask(_ context.Context, userID, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[taskID]; ok && task.UserID == userID {
		delete(s.tasks, taskID)
		return true, nil
	}
	return false, nil
}

func (s *memTaskStore) TaskStats(_ context.Context, userID string, now time.Time) (*model.DashboardStats, error) {
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

type captureMailer struct {
	mu        sync.Mutex
	lastEmail string
	lastURL   string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEmail = email
	m.lastURL = resetURL
	return nil
}

type authFixture struct {
	svc      *AuthService
	users    *memUserStore
	sessions *memSessionStore
	resets   *memResetStore
	mailer   *captureMailer
	codec    *token.Codec
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	codec, err := token.NewCodec("fixture-secret", SessionCookieName, LegacySessionCookieName)
	require.NoError(t, err)

	users := newMemUserStore()
	sessions := newMemSessionStore()
	resets := newMemResetStore()
	mailer := &captureMailer{}

	svc, err := NewAuthService(users, sessions, resets, codec, mailer, config.AuthConfig{
		SessionTTL:   "1h",
		StoreTimeout: "2s",
		CookieSecure: "false",
	}, "http://localhost:8080", zerolog.Nop())
	require.NoError(t, err)

	return &authFixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		resets:   resets,
		mailer:   mailer,
		codec:    codec,
	}
}
