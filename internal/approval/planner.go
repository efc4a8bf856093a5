package approval

import (
	"context"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"go.uber.org/zap"
)

// Planner computes and persists the ordered approval steps for a new expense.
type Planner struct {
	users  UserStore
	steps  StepStore
	logger *zap.Logger
}

// NewPlanner creates a new step planner
func NewPlanner(users UserStore, steps StepStore, logger *zap.Logger) *Planner {
	return &Planner{
		users:  users,
		steps:  steps,
		logger: logger,
	}
}

// Plan persists one incomplete ApprovalStep per planned approver and returns
// the created steps in sequence order.
//
// When explicitApproverIDs is non-empty it is used verbatim: sequence 1..N in
// list order, no deduplication and no check that the ids name real users (an
// unknown id yields a step nobody can complete). Otherwise the default chain
// is the submitter's manager, if set, followed by the company's admins in
// ascending id order. An expense with no manager and no admins gets zero
// steps and stays pending until decided through an explicit list.
func (p *Planner) Plan(ctx context.Context, expense *models.Expense, submitter *models.User, explicitApproverIDs []int64) ([]*models.ApprovalStep, error) {
	approverIDs := explicitApproverIDs
	if len(approverIDs) == 0 {
		var err error
		approverIDs, err = p.defaultChain(ctx, submitter)
		if err != nil {
			return nil, err
		}
	}

	steps := make([]*models.ApprovalStep, 0, len(approverIDs))
	for i, approverID := range approverIDs {
		step := &models.ApprovalStep{
			ExpenseID:  expense.ID,
			ApproverID: approverID,
			Sequence:   i + 1,
			Completed:  false,
		}
		if err := p.steps.Create(ctx, step); err != nil {
			return nil, fmt.Errorf("create step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}

	p.logger.Info("Planned approval steps",
		zap.Int64("expense_id", expense.ID),
		zap.Int("count", len(steps)),
		zap.Bool("explicit", len(explicitApproverIDs) > 0))
	return steps, nil
}

// defaultChain returns manager first, then company admins ascending by id
func (p *Planner) defaultChain(ctx context.Context, submitter *models.User) ([]int64, error) {
	var approverIDs []int64

	if submitter.ManagerID != nil {
		approverIDs = append(approverIDs, *submitter.ManagerID)
	}

	admins, err := p.users.ListAdminsByCompany(ctx, submitter.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list company admins: %w", err)
	}
	for _, admin := range admins {
		approverIDs = append(approverIDs, admin.ID)
	}

	return approverIDs, nil
}
