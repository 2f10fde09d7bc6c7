package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/service"
)

type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// Create godoc
// @Summary Create a task
// @Description Throttled per principal by the sliding-window rate limiter.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body model.CreateTaskRequest true "Task fields"
// @Success 201 {object} model.Task
// @Failure 400 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Router /api/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req model.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task, err := h.svc.Create(c.Request.Context(), GetPrincipalID(c), req)
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// List godoc
// @Summary List own tasks, newest first
// @Tags tasks
// @Produce json
// @Success 200 {array} model.Task
// @Router /api/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.svc.List(c.Request.Context(), GetPrincipalID(c))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Get godoc
// @Summary Get one task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 404 {object} model.ErrorResponse
// @Router /api/tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), GetPrincipalID(c), c.Param("id"))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Update godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body model.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} model.Task
// @Failure 404 {object} model.ErrorResponse
// @Router /api/tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	var req model.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task, err := h.svc.Update(c.Request.Context(), GetPrincipalID(c), c.Param("id"), req)
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200
// @Failure 404 {object} model.ErrorResponse
// @Router /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetPrincipalID(c), c.Param("id")); err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Dashboard godoc
// @Summary Task stats for the dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} model.DashboardStats
// @Router /api/dashboard [get]
func (h *TaskHandler) Dashboard(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), GetPrincipalID(c))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func writeTaskError(c *gin.Context, err error) {
	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		if limited.RetryAfter > 0 {
			seconds := int64(math.Ceil(limited.RetryAfter.Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
