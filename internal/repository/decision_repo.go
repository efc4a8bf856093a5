package repository

import (
	"context"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/pkg/database"
	"go.uber.org/zap"
)

// DecisionRepository handles approval decision database operations.
// Decisions are append-only; there is no update path.
type DecisionRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *database.DB, logger *zap.Logger) *DecisionRepository {
	return &DecisionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new approval decision
func (r *DecisionRepository) Create(ctx context.Context, decision *models.ApprovalDecision) error {
	query := `INSERT INTO approval_decisions (expense_id, approver_id, approved, comment) VALUES (?, ?, ?, ?)`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		decision.ExpenseID,
		decision.ApproverID,
		decision.Approved,
		nullString(decision.Comment),
	)
	if err != nil {
		r.logger.Error("Failed to create decision",
			zap.Int64("expense_id", decision.ExpenseID),
			zap.Int64("approver_id", decision.ApproverID),
			zap.Error(err))
		return fmt.Errorf("failed to create decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	decision.ID = id
	return nil
}

// ListByExpense retrieves all decisions recorded for an expense
func (r *DecisionRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*models.ApprovalDecision, error) {
	query := `SELECT id, expense_id, approver_id, approved, comment, created_at
		FROM approval_decisions WHERE expense_id = ? ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list decisions", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.ApprovalDecision
	for rows.Next() {
		var decision models.ApprovalDecision
		var comment *string
		err := rows.Scan(
			&decision.ID,
			&decision.ExpenseID,
			&decision.ApproverID,
			&decision.Approved,
			&comment,
			&decision.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if comment != nil {
			decision.Comment = *comment
		}
		decisions = append(decisions, &decision)
	}
	return decisions, rows.Err()
}
