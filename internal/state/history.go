package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/waver/pkg/models"
)

// DefaultHistorySize matches the in-memory ring.
const DefaultHistorySize = 100

// History is a HistoryStore backed by SQLite. It keeps at most capacity
// plans, evicting the oldest on insert.
type History struct {
	db       *DB
	capacity int
}

// NewHistory creates a History over a migrated DB.
func NewHistory(db *DB, capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &History{db: db, capacity: capacity}
}

// Add stores rec and its task records, then prunes beyond capacity.
func (h *History) Add(ctx context.Context, rec *models.PlanRecord) error {
	return h.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plans (
				execution_id, query, query_type, complexity_score, response_format,
				status, success, stalled, error, started_at, ended_at,
				total_tasks, completed_tasks, failed_tasks, skipped_tasks
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ExecutionID, rec.Query, string(rec.QueryType), rec.ComplexityScore, string(rec.ResponseFormat),
			string(rec.Status), rec.Success, rec.Stalled, rec.Error, formatTime(rec.StartTime), formatTime(rec.EndTime),
			rec.TotalTasks, rec.CompletedTasks, rec.FailedTasks, rec.SkippedTasks,
		)
		if err != nil {
			return fmt.Errorf("insert plan %s: %w", rec.ExecutionID, err)
		}

		for i, tr := range rec.Tasks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO plan_tasks (
					execution_id, position, task_id, description, tool_name,
					status, retry_count, error, started_at, ended_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				rec.ExecutionID, i, tr.ID, tr.Description, tr.ToolName,
				string(tr.Status), tr.RetryCount, tr.Error, formatTime(tr.StartTime), formatTime(tr.EndTime),
			)
			if err != nil {
				return fmt.Errorf("insert task %s of plan %s: %w", tr.ID, rec.ExecutionID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM plans WHERE seq NOT IN (
				SELECT seq FROM plans ORDER BY seq DESC LIMIT ?
			)
		`, h.capacity)
		if err != nil {
			return fmt.Errorf("prune plans: %w", err)
		}
		return pruneOrphanTasks(ctx, tx)
	})
}

// pruneOrphanTasks removes task rows whose plan is gone. Foreign keys are
// only enforced on the pooled connection that ran the pragma.
func pruneOrphanTasks(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM plan_tasks WHERE execution_id NOT IN (SELECT execution_id FROM plans)
	`); err != nil {
		return fmt.Errorf("prune plan tasks: %w", err)
	}
	return nil
}

const planColumns = `
	execution_id, query, query_type, complexity_score, response_format,
	status, success, stalled, error, started_at, ended_at,
	total_tasks, completed_tasks, failed_tasks, skipped_tasks
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.PlanRecord, error) {
	var (
		rec                       models.PlanRecord
		queryType, format, status string
		startedAt, endedAt        sql.NullString
	)
	err := row.Scan(
		&rec.ExecutionID, &rec.Query, &queryType, &rec.ComplexityScore, &format,
		&status, &rec.Success, &rec.Stalled, &rec.Error, &startedAt, &endedAt,
		&rec.TotalTasks, &rec.CompletedTasks, &rec.FailedTasks, &rec.SkippedTasks,
	)
	if err != nil {
		return nil, err
	}
	rec.QueryType = models.QueryType(queryType)
	rec.ResponseFormat = models.ResponseFormat(format)
	rec.Status = models.ExecutionStatus(status)
	rec.StartTime = parseNullableTime(startedAt)
	rec.EndTime = parseNullableTime(endedAt)
	return &rec, nil
}

// Get returns the plan with the given execution id and its tasks, or nil.
func (h *History) Get(ctx context.Context, executionID string) (*models.PlanRecord, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE execution_id = ?`, executionID)
	rec, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", executionID, err)
	}

	tasks, err := h.tasks(ctx, executionID)
	if err != nil {
		return nil, err
	}
	rec.Tasks = tasks
	return rec, nil
}

func (h *History) tasks(ctx context.Context, executionID string) ([]models.TaskRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT task_id, description, tool_name, status, retry_count, error, started_at, ended_at
		FROM plan_tasks WHERE execution_id = ? ORDER BY position
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of plan %s: %w", executionID, err)
	}
	defer rows.Close()

	var out []models.TaskRecord
	for rows.Next() {
		var (
			tr                 models.TaskRecord
			status             string
			startedAt, endedAt sql.NullString
		)
		if err := rows.Scan(&tr.ID, &tr.Description, &tr.ToolName, &status, &tr.RetryCount, &tr.Error, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tr.Status = models.ExecutionStatus(status)
		tr.StartTime = parseNullableTime(startedAt)
		tr.EndTime = parseNullableTime(endedAt)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// List returns up to limit plans, newest first, without task records.
// A limit <= 0 returns all retained plans.
func (h *History) List(ctx context.Context, limit int) ([]*models.PlanRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []*models.PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes plans that started before now minus olderThan.
// Returns the number of plans deleted.
func (h *History) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var count int64
	err := h.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE started_at < ?`, formatTime(&cutoff))
		if err != nil {
			return fmt.Errorf("purge old plans: %w", err)
		}
		if count, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return pruneOrphanTasks(ctx, tx)
	})
	return count, err
}
