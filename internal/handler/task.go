package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskflo/taskflo/internal/model"
	"github.com/taskflo/taskflo/internal/queue"
	"github.com/taskflo/taskflo/internal/repository"
)

// TaskNotifier queues the task-added confirmation mail.  *service.Notifier
// satisfies it; tests use a fake.
type TaskNotifier interface {
	TaskCreated(ctx context.Context, ev queue.TaskCreatedEvent) error
}

// TaskHandler bundles dependencies for task CRUD.  Every operation is
// scoped to the authenticated owner inside the repository queries: a task
// belonging to another user produces the same "task not found" as a task
// that never existed.
type TaskHandler struct {
	Tasks  *repository.TaskRepo
	Users  *repository.UserRepo
	Notify TaskNotifier
}

func NewTaskHandler(tasks *repository.TaskRepo, users *repository.UserRepo, notify TaskNotifier) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Users: users, Notify: notify}
}

type createTaskReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
type completeTaskReq struct {
	Completed bool `json:"completed"`
}

// Create handles POST /v1/tasks.  The owner is always the authenticated
// principal; nothing in the payload can assign the task to someone else.
func (h *TaskHandler) Create(c echo.Context) error {
	var req createTaskReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and description are required"})
	}

	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	task := model.Task{
		UserID:      uid,
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Tasks.Create(ctx, &task); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create task failed"})
	}

	// Fire-and-forget confirmation mail; the response never waits on it.
	ev := queue.TaskCreatedEvent{
		Email:       u.Email,
		Title:       task.Title,
		Description: task.Description,
		CreatedAt:   task.CreatedAt.Format(time.RFC3339),
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Notify.TaskCreated(nctx, ev)
	}()

	return c.JSON(http.StatusCreated, echo.Map{"message": "Task added successfully", "task": task})
}

// List handles GET /v1/tasks: the owner's tasks, newest first.
func (h *TaskHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tasks, err := h.Tasks.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tasks)
}

// SetCompleted handles PATCH /v1/tasks/:id.
func (h *TaskHandler) SetCompleted(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req completeTaskReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Tasks.SetCompletedByIDAndOwner(ctx, id, uid, req.Completed)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Task updated successfully"})
}

// Delete handles DELETE /v1/tasks/:id.  The owner-scoped single-statement
// delete means a task owned by someone else yields 404, never 403.
func (h *TaskHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Tasks.DeleteByIDAndOwner(ctx, id, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
