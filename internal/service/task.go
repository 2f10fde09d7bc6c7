package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/ratelimit"
)

// RateLimitedError carries the optional retry hint; it still matches
// ErrRateLimited via errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return "rate limited"
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

type TaskStore interface {
	CreateTask(ctx context.Context, userID string, req model.CreateTaskRequest) (*model.Task, error)
	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, req model.UpdateTaskRequest) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) (bool, error)
	TaskStats(ctx context.Context, userID string, now time.Time) (*model.DashboardStats, error)
}

type TaskService struct {
	repo         TaskStore
	limiter      *ratelimit.Limiter
	createRule   ratelimit.Rule
	storeTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

func NewTaskService(repo TaskStore, limiter *ratelimit.Limiter, createRule ratelimit.Rule, storeTimeout time.Duration, log zerolog.Logger) *TaskService {
	return &TaskService{
		repo:         repo,
		limiter:      limiter,
		createRule:   createRule,
		storeTimeout: storeTimeout,
		log:          log,
		now:          time.Now,
	}
}

// Create admits the mutation through the rate limiter before touching the
// task table. Limiter-store outages deny; the client sees the same
// throttling outcome either way.
func (s *TaskService) Create(ctx context.Context, userID string, req model.CreateTaskRequest) (*model.Task, error) {
	if req.Status == "" {
		req.Status = model.StatusTodo
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if req.Title == "" || !model.ValidStatus(req.Status) || !model.ValidPriority(req.Priority) {
		return nil, ErrInvalidInput
	}

	// The limiter store call carries the same timeout as every other store
	// call; a stalled Redis denies within budget instead of hanging.
	lctx, lcancel := context.WithTimeout(ctx, s.storeTimeout)
	result, err := s.limiter.Admit(lctx, "create_task:"+userID, s.createRule)
	lcancel()
	if err != nil {
		if errors.Is(err, ratelimit.ErrStoreUnavailable) {
			return nil, &RateLimitedError{}
		}
		return nil, err
	}
	if !result.Allowed {
		s.log.Info().Str("user_id", userID).Dur("retry_after", result.RetryAfter).
			Msg("task creation throttled")
		return nil, &RateLimitedError{RetryAfter: result.RetryAfter}
	}

	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.repo.CreateTask(tctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, userID string) ([]model.Task, error) {
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	tasks, err := s.repo.ListTasks(tctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.repo.GetTask(tctx, userID, taskID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, userID, taskID string, req model.UpdateTaskRequest) (*model.Task, error) {
	if req.Status != nil && !model.ValidStatus(*req.Status) {
		return nil, ErrInvalidInput
	}
	if req.Priority != nil && !model.ValidPriority(*req.Priority) {
		return nil, ErrInvalidInput
	}
	if req.Title != nil && *req.Title == "" {
		return nil, ErrInvalidInput
	}

	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.repo.UpdateTask(tctx, userID, taskID, req)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	deleted, err := s.repo.DeleteTask(tctx, userID, taskID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *TaskService) Stats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stats, err := s.repo.TaskStats(tctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return stats, nil
}
