package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/pkg/database"
	"go.uber.org/zap"
)

// StepRepository handles approval step database operations
type StepRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *database.DB, logger *zap.Logger) *StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

const stepColumns = `id, expense_id, approver_id, sequence, completed, created_at`

func scanStep(row interface{ Scan(...interface{}) error }) (*models.ApprovalStep, error) {
	var step models.ApprovalStep
	err := row.Scan(
		&step.ID,
		&step.ExpenseID,
		&step.ApproverID,
		&step.Sequence,
		&step.Completed,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// Create creates a new approval step
func (r *StepRepository) Create(ctx context.Context, step *models.ApprovalStep) error {
	query := `INSERT INTO approval_steps (expense_id, approver_id, sequence, completed) VALUES (?, ?, ?, ?)`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		step.ExpenseID,
		step.ApproverID,
		step.Sequence,
		step.Completed,
	)
	if err != nil {
		r.logger.Error("Failed to create approval step",
			zap.Int64("expense_id", step.ExpenseID),
			zap.Int64("approver_id", step.ApproverID),
			zap.Error(err))
		return fmt.Errorf("failed to create approval step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	step.ID = id
	return nil
}

// GetIncomplete retrieves the oldest incomplete step for an (expense,
// approver) pair. A duplicated explicit approver holds several such steps;
// they complete one at a time in creation order. Returns (nil, nil) when no
// incomplete step exists.
func (r *StepRepository) GetIncomplete(ctx context.Context, expenseID, approverID int64) (*models.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps
		WHERE expense_id = ? AND approver_id = ? AND completed = 0
		ORDER BY id ASC LIMIT 1`

	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, expenseID, approverID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get incomplete step",
			zap.Int64("expense_id", expenseID),
			zap.Int64("approver_id", approverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get incomplete step: %w", err)
	}
	return step, nil
}

// MarkCompleted flips the completed flag on a step. The WHERE guard makes the
// flip happen at most once; callers must treat zero rows affected as a lost
// race, not a success.
func (r *StepRepository) MarkCompleted(ctx context.Context, stepID int64) (bool, error) {
	query := `UPDATE approval_steps SET completed = 1 WHERE id = ? AND completed = 0`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, stepID)
	if err != nil {
		r.logger.Error("Failed to mark step completed", zap.Int64("step_id", stepID), zap.Error(err))
		return false, fmt.Errorf("failed to mark step completed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByExpense retrieves all steps for an expense ordered by sequence
func (r *StepRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*models.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE expense_id = ? ORDER BY sequence ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list steps", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	return collectSteps(rows)
}

// ListIncompleteByApprover retrieves all incomplete steps assigned to an approver
func (r *StepRepository) ListIncompleteByApprover(ctx context.Context, approverID int64) ([]*models.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps
		WHERE approver_id = ? AND completed = 0 ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, approverID)
	if err != nil {
		r.logger.Error("Failed to list incomplete steps", zap.Int64("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("failed to list incomplete steps: %w", err)
	}
	defer rows.Close()

	return collectSteps(rows)
}

func collectSteps(rows *sql.Rows) ([]*models.ApprovalStep, error) {
	var steps []*models.ApprovalStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
