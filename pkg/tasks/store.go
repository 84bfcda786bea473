// Package tasks provides the task data layer. Route-level enforcement
// lives in pkg/access; this store trusts its callers to have passed the
// gate and the scope helpers keep ownership immutable.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quillback/taskdeck/pkg/access"
)

// ErrTaskNotFound is returned when a task does not exist
var ErrTaskNotFound = errors.New("task not found")

// ErrNotTaskOwner is returned when a scope change is attempted by anyone
// but the task's owner
var ErrNotTaskOwner = errors.New("caller does not own this task")

// Store implements task persistence over database/sql
type Store struct {
	db *sql.DB
}

// NewStore creates a new task store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a task owned by ownerID. teamID is nil for a personal
// task.
func (s *Store) Create(ctx context.Context, ownerID int64, teamID *int64, title string) (*access.Task, error) {
	task := &access.Task{
		OwnerID: ownerID,
		TeamID:  teamID,
		Title:   title,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (owner_id, team_id, title, completed)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id
	`, ownerID, teamID, title).Scan(&task.ID)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Get retrieves a task by ID
func (s *Store) Get(ctx context.Context, taskID int64) (*access.Task, error) {
	task := &access.Task{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, team_id, title, completed
		FROM tasks
		WHERE id = $1
	`, taskID).Scan(&task.ID, &task.OwnerID, &task.TeamID, &task.Title, &task.Completed)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update changes a task's title and completion flag
func (s *Store) Update(ctx context.Context, taskID int64, title string, completed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = $1, completed = $2 WHERE id = $3
	`, title, completed, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(res)
}

// SetTeam moves a task between personal and team scope. Only the owner may
// change scope; ownership itself never transfers.
func (s *Store) SetTeam(ctx context.Context, callerID, taskID int64, teamID *int64) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.OwnerID != callerID {
		return ErrNotTaskOwner
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET team_id = $1 WHERE id = $2
	`, teamID, taskID)
	if err != nil {
		return fmt.Errorf("set task team: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a task. Shares die with it through the schema.
func (s *Store) Delete(ctx context.Context, taskID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}

// ListForOwner lists the tasks a user owns
func (s *Store) ListForOwner(ctx context.Context, ownerID int64) ([]access.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, team_id, title, completed
		FROM tasks
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []access.Task
	for rows.Next() {
		var t access.Task
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.TeamID, &t.Title, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListForTeam lists the tasks in a team
func (s *Store) ListForTeam(ctx context.Context, teamID int64) ([]access.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, team_id, title, completed
		FROM tasks
		WHERE team_id = $1
		ORDER BY id
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team tasks: %w", err)
	}
	defer rows.Close()

	var tasks []access.Task
	for rows.Next() {
		var t access.Task
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.TeamID, &t.Title, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
