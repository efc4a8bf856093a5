package approval

import (
	"context"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"go.uber.org/zap"
)

// Recorder records exactly one decision per assigned step. Recording appends
// the decision row and completes the step; the caller must run it inside a
// transaction so the pair commits or rolls back together.
type Recorder struct {
	steps     StepStore
	decisions DecisionStore
	logger    *zap.Logger
}

// NewRecorder creates a new decision recorder
func NewRecorder(steps StepStore, decisions DecisionStore, logger *zap.Logger) *Recorder {
	return &Recorder{
		steps:     steps,
		decisions: decisions,
		logger:    logger,
	}
}

// Record records an approver's decision on an expense. It fails with
// ErrExpenseFinalized when the expense is already terminal and with
// ErrNoPendingStep when the approver has no incomplete step, whether they
// were never assigned or already decided. The completed flip is guarded, so
// of two racing calls for the same step exactly one succeeds.
func (r *Recorder) Record(ctx context.Context, expense *models.Expense, approverID int64, approved bool, comment string) (*models.ApprovalDecision, error) {
	if expense.Status.IsTerminal() {
		return nil, ErrExpenseFinalized
	}

	step, err := r.steps.GetIncomplete(ctx, expense.ID, approverID)
	if err != nil {
		return nil, fmt.Errorf("find incomplete step: %w", err)
	}
	if step == nil {
		return nil, ErrNoPendingStep
	}

	flipped, err := r.steps.MarkCompleted(ctx, step.ID)
	if err != nil {
		return nil, fmt.Errorf("complete step: %w", err)
	}
	if !flipped {
		// Lost the race: another decision completed this step first.
		return nil, ErrNoPendingStep
	}

	decision := &models.ApprovalDecision{
		ExpenseID:  expense.ID,
		ApproverID: approverID,
		Approved:   approved,
		Comment:    comment,
	}
	if err := r.decisions.Create(ctx, decision); err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}

	r.logger.Info("Decision recorded",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("approver_id", approverID),
		zap.Bool("approved", approved),
		zap.Int("sequence", step.Sequence))
	return decision, nil
}
