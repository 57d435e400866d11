package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflo/taskflo/internal/queue"
	"github.com/taskflo/taskflo/internal/repository"
)

type fakeTaskNotifier struct {
	events chan queue.TaskCreatedEvent
}

func (f *fakeTaskNotifier) TaskCreated(_ context.Context, ev queue.TaskCreatedEvent) error {
	f.events <- ev
	return nil
}

func newTaskHandler(t *testing.T) (*TaskHandler, sqlmock.Sqlmock, *fakeTaskNotifier) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	notify := &fakeTaskNotifier{events: make(chan queue.TaskCreatedEvent, 4)}
	return NewTaskHandler(repository.NewTaskRepo(db), repository.NewUserRepo(db), notify), mock, notify
}

// taskRequest runs a handler with an authenticated principal in context.
func taskRequest(t *testing.T, h echo.HandlerFunc, method, body string, userID uint64, taskID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	if taskID != "" {
		c.SetParamNames("id")
		c.SetParamValues(taskID)
	}
	require.NoError(t, h(c))
	return rec
}

func TestTaskCreate_OwnerForcedFromPrincipal(t *testing.T) {
	h, mock, notify := newTaskHandler(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id=").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "email", "password_hash", "reset_token_hash", "reset_token_expires_at", "password_changed_at", "created_at", "updated_at"}).
			AddRow(7, "Ada", "a@x.com", "$2a$12$hash", nil, nil, nil, now, now))
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(uint64(7), "buy milk", "2 liters", false).
		WillReturnResult(sqlmock.NewResult(42, 1))

	rec := taskRequest(t, h.Create, http.MethodPost, `{"title":"buy milk","description":"2 liters"}`, 7, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Task struct {
			ID     uint64 `json:"id"`
			UserID uint64 `json:"user_id"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(42), resp.Task.ID)
	assert.Equal(t, uint64(7), resp.Task.UserID, "owner must come from the JWT principal")

	select {
	case ev := <-notify.events:
		assert.Equal(t, "a@x.com", ev.Email)
		assert.Equal(t, "buy milk", ev.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a task-created mail event")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskCreate_Validation(t *testing.T) {
	h, _, _ := newTaskHandler(t)

	rec := taskRequest(t, h.Create, http.MethodPost, `{"title":"","description":""}`, 7, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskList_ScopedToOwner(t *testing.T) {
	h, mock, _ := newTaskHandler(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE user_id=").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "description", "completed", "created_at"}).
			AddRow(2, 7, "newer", "b", false, now))

	rec := taskRequest(t, h.List, http.MethodGet, "", 7, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "newer")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskDelete_Owned(t *testing.T) {
	h, mock, _ := newTaskHandler(t)

	mock.ExpectExec("DELETE FROM tasks WHERE id=\\? AND user_id=\\?").
		WithArgs(uint64(42), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := taskRequest(t, h.Delete, http.MethodDelete, "", 7, "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskDelete_ForeignTaskLooksMissing(t *testing.T) {
	h, mock, _ := newTaskHandler(t)

	// User 8 tries to delete user 7's task: the owner-scoped DELETE simply
	// matches nothing.
	mock.ExpectExec("DELETE FROM tasks WHERE id=\\? AND user_id=\\?").
		WithArgs(uint64(42), uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := taskRequest(t, h.Delete, http.MethodDelete, "", 8, "42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "task not found")
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "forbidden")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskSetCompleted(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantCode int
	}{
		{"owned", 1, http.StatusOK},
		{"missing or foreign", 0, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock, _ := newTaskHandler(t)

			mock.ExpectExec("UPDATE tasks SET completed=\\? WHERE id=\\? AND user_id=\\?").
				WithArgs(true, uint64(42), uint64(7)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			rec := taskRequest(t, h.SetCompleted, http.MethodPatch, `{"completed":true}`, 7, "42")
			assert.Equal(t, tt.wantCode, rec.Code)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// Writing the flag a task already carries must still answer 200: the row
// matched even though nothing changed.  The connection's clientFoundRows
// option makes the driver report matched rows, so the repository sees 1.
func TestTaskSetCompleted_IdempotentRepatch(t *testing.T) {
	h, mock, _ := newTaskHandler(t)

	mock.ExpectExec("UPDATE tasks SET completed=\\? WHERE id=\\? AND user_id=\\?").
		WithArgs(true, uint64(42), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := taskRequest(t, h.SetCompleted, http.MethodPatch, `{"completed":true}`, 7, "42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "task not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskDelete_InvalidID(t *testing.T) {
	h, _, _ := newTaskHandler(t)

	rec := taskRequest(t, h.Delete, http.MethodDelete, "", 7, "not-a-number")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
