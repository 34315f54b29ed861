package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Task struct {
	TaskID      string    `json:"taskId"`
	RiskID      string    `json:"riskId"`
	Department  string    `json:"department"`
	Employee    string    `json:"employee"`
	Description string    `json:"description"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TaskPatch struct {
	Department  *string `json:"department"`
	Employee    *string `json:"employee"`
	Description *string `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Status      *string `json:"status"`
}

type TasksStore interface {
	// CreateTask allocates T-<n+1> from the count of tasks already filed
	// under the risk, in the same transaction as the insert. Task ids are
	// only unique within one risk's task set.
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, riskID, taskID string) (*Task, error)
	// FindTasks returns every task carrying the id, across risks.
	FindTasks(ctx context.Context, taskID string) ([]Task, error)
	// ListTasks returns all tasks, or one risk's when riskID is non-empty.
	ListTasks(ctx context.Context, riskID string) ([]Task, error)
	UpdateTask(ctx context.Context, riskID, taskID string, patch TaskPatch) (*Task, error)
	SetTaskStatus(ctx context.Context, riskID, taskID, status string) (*Task, error)
	DeleteTask(ctx context.Context, riskID, taskID string) error
}

type tasksStore struct {
	db *sql.DB
}

func NewTasksStore(db *sql.DB) TasksStore {
	return &tasksStore{db: db}
}

func (s *tasksStore) CreateTask(ctx context.Context, t *Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	var count int64
	if err := tx.QueryRowContext(ctx, q(`SELECT COUNT(*) FROM tasks WHERE risk_id=?`), t.RiskID).Scan(&count); err != nil {
		tx.Rollback()
		return err
	}
	t.TaskID = fmt.Sprintf("T-%d", count+1)
	if t.Status == "" {
		t.Status = "Pending"
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, q(`
		INSERT INTO tasks(task_id, risk_id, department, employee, description, start_date, end_date, status, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`),
		t.TaskID, t.RiskID, t.Department, t.Employee, t.Description, t.StartDate, t.EndDate, t.Status, now, now); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const taskColumns = `task_id, risk_id, department, employee, description, start_date, end_date, status, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	t := Task{}
	err := row.Scan(&t.TaskID, &t.RiskID, &t.Department, &t.Employee, &t.Description, &t.StartDate, &t.EndDate, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *tasksStore) GetTask(ctx context.Context, riskID, taskID string) (*Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, q(`SELECT `+taskColumns+` FROM tasks WHERE risk_id=? AND task_id=?`), riskID, taskID))
}

func (s *tasksStore) FindTasks(ctx context.Context, taskID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, q(`SELECT `+taskColumns+` FROM tasks WHERE task_id=? ORDER BY risk_id`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

func (s *tasksStore) ListTasks(ctx context.Context, riskID string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if riskID != "" {
		query += ` WHERE risk_id=?`
		args = append(args, riskID)
	}
	query += ` ORDER BY risk_id, created_at`
	rows, err := s.db.QueryContext(ctx, q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

func (s *tasksStore) UpdateTask(ctx context.Context, riskID, taskID string, patch TaskPatch) (*Task, error) {
	t, err := s.GetTask(ctx, riskID, taskID)
	if err != nil {
		return nil, err
	}
	if patch.Department != nil {
		t.Department = *patch.Department
	}
	if patch.Employee != nil {
		t.Employee = *patch.Employee
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.StartDate != nil {
		t.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		t.EndDate = *patch.EndDate
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	now := time.Now().UTC()
	t.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, q(`
		UPDATE tasks SET department=?, employee=?, description=?, start_date=?, end_date=?, status=?, updated_at=?
		WHERE risk_id=? AND task_id=?`),
		t.Department, t.Employee, t.Description, t.StartDate, t.EndDate, t.Status, now, riskID, taskID)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *tasksStore) SetTaskStatus(ctx context.Context, riskID, taskID, status string) (*Task, error) {
	return s.UpdateTask(ctx, riskID, taskID, TaskPatch{Status: &status})
}

func (s *tasksStore) DeleteTask(ctx context.Context, riskID, taskID string) error {
	res, err := s.db.ExecContext(ctx, q(`DELETE FROM tasks WHERE risk_id=? AND task_id=?`), riskID, taskID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
