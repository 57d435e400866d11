package repository

import (
	"context"
	"database/sql"

	"github.com/taskflo/taskflo/internal/model"
)

// TaskRepo provides data access to the tasks table.  Every query that
// touches an existing row is scoped by both task id and owner id inside the
// SQL itself, never as a separate existence check: a row belonging to
// someone else is indistinguishable from a row that does not exist, and
// there is no window between "check owner" and "mutate".
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

// Create inserts a task for the given owner and fills in the generated id.
// The owner always comes from the authenticated principal; there is no way
// for request payloads to pick a different one.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tasks (user_id, title, description, completed) VALUES (?,?,?,?)",
		t.UserID, t.Title, t.Description, t.Completed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// ListByOwner returns the owner's tasks, newest first.
func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,title,description,completed,created_at FROM tasks WHERE user_id=? ORDER BY created_at DESC, id DESC",
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetCompletedByIDAndOwner flips the completed flag on a task the caller
// owns.  Returns false when no row matched, whether the task is missing or
// owned by another user.  The connection runs with clientFoundRows, so
// RowsAffected counts matched rows and writing the value the row already
// holds still reports success.
func (r *TaskRepo) SetCompletedByIDAndOwner(ctx context.Context, id, ownerID uint64, completed bool) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET completed=? WHERE id=? AND user_id=?",
		completed, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteByIDAndOwner removes a task in a single owner-scoped DELETE.
// Returns false when no row matched.
func (r *TaskRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM tasks WHERE id=? AND user_id=?",
		id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
