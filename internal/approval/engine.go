package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/expensio/expense-approval/internal/models"
	"go.uber.org/zap"
)

// maxDecideRetries bounds retries of the decide read-modify-write when a
// concurrent terminalization is detected.
const maxDecideRetries = 3

// CallerIdentity identifies the authenticated caller of a decide request.
type CallerIdentity struct {
	UserID int64
	Role   string
}

// SubmitRequest carries the inputs of an expense submission.
type SubmitRequest struct {
	SubmitterID int64
	Amount      float64
	Currency    string
	Category    string
	Description string
	Date        *time.Time
	ApproverIDs []int64
}

// DecisionResult is what a decide call returns to the caller.
type DecisionResult struct {
	Status models.Status `json:"status"`
	Reason string        `json:"reason"`
}

// PendingApproval pairs an incomplete step with its still-pending expense.
type PendingApproval struct {
	Expense  *models.Expense `json:"expense"`
	StepID   int64           `json:"step_id"`
	Sequence int             `json:"sequence"`
}

// Engine orchestrates submission and decision handling: currency
// normalization, step planning, decision recording, and rule evaluation,
// each decide serialized per expense.
type Engine struct {
	companies  CompanyStore
	users      UserStore
	expenses   ExpenseStore
	steps      StepStore
	decisions  DecisionStore
	rules      RuleStore
	tx         TransactionManager
	normalizer Normalizer
	planner    *Planner
	recorder   *Recorder
	evaluator  *Evaluator
	locks      *expenseLocks
	logger     *zap.Logger
}

// NewEngine creates a new approval engine
func NewEngine(
	companies CompanyStore,
	users UserStore,
	expenses ExpenseStore,
	steps StepStore,
	decisions DecisionStore,
	rules RuleStore,
	tx TransactionManager,
	normalizer Normalizer,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		companies:  companies,
		users:      users,
		expenses:   expenses,
		steps:      steps,
		decisions:  decisions,
		rules:      rules,
		tx:         tx,
		normalizer: normalizer,
		planner:    NewPlanner(users, steps, logger),
		recorder:   NewRecorder(steps, decisions, logger),
		evaluator:  NewEvaluator(),
		locks:      newExpenseLocks(),
		logger:     logger,
	}
}

// Submit normalizes the amount into the company's base currency, creates the
// expense as pending, and plans its approval steps, committing the expense
// and its steps as one unit. The rate lookup happens before the transaction
// and never fails a submission.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*models.Expense, error) {
	submitter, err := e.users.GetByID(ctx, req.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("get submitter: %w", err)
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter %d: %w", req.SubmitterID, ErrNotFound)
	}

	company, err := e.companies.GetByID(ctx, submitter.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("company %d: %w", submitter.CompanyID, ErrNotFound)
	}

	amountCompany := e.normalizer.Normalize(ctx, req.Amount, req.Currency, company.Currency)

	expense := &models.Expense{
		SubmitterID:           submitter.ID,
		CompanyID:             company.ID,
		Amount:                req.Amount,
		Currency:              req.Currency,
		AmountCompanyCurrency: amountCompany,
		Category:              req.Category,
		Description:           req.Description,
		Date:                  req.Date,
		Status:                models.StatusPending,
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.expenses.Create(txCtx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if _, err := e.planner.Plan(txCtx, expense, submitter, req.ApproverIDs); err != nil {
			return fmt.Errorf("plan steps: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to submit expense",
			zap.Int64("submitter_id", req.SubmitterID), zap.Error(err))
		return nil, err
	}

	e.logger.Info("Expense submitted",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("submitter_id", submitter.ID),
		zap.Float64("amount", expense.Amount),
		zap.String("currency", expense.Currency),
		zap.Float64("amount_company_currency", expense.AmountCompanyCurrency))
	return expense, nil
}

// Decide records one approver's decision and re-evaluates the expense status.
// The caller must be the named approver or an admin of the expense's company.
// Recording and evaluation commit atomically; a decide on an already terminal
// expense is a no-op that reports the current status.
func (e *Engine) Decide(ctx context.Context, expenseID, approverID int64, approved bool, comment string, caller CallerIdentity) (*DecisionResult, error) {
	expense, err := e.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		return nil, fmt.Errorf("expense %d: %w", expenseID, ErrNotFound)
	}

	if err := e.authorizeDecide(ctx, expense, approverID, caller); err != nil {
		return nil, err
	}

	lock := e.locks.get(expenseID)
	lock.Lock()
	defer lock.Unlock()

	var result *DecisionResult
	for attempt := 1; attempt <= maxDecideRetries; attempt++ {
		result, err = e.decideOnce(ctx, expenseID, approverID, approved, comment)
		if errors.Is(err, ErrConflict) {
			e.logger.Warn("Decide conflict, retrying",
				zap.Int64("expense_id", expenseID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("decide on expense %d: %w", expenseID, ErrConflict)
}

// decideOnce runs one attempt of the record-evaluate-update unit of work
func (e *Engine) decideOnce(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (*DecisionResult, error) {
	var result *DecisionResult

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		expense, err := e.expenses.GetByID(txCtx, expenseID)
		if err != nil {
			return fmt.Errorf("get expense: %w", err)
		}
		if expense == nil {
			return fmt.Errorf("expense %d: %w", expenseID, ErrNotFound)
		}

		if expense.Status.IsTerminal() {
			result = &DecisionResult{Status: expense.Status, Reason: "already finalized"}
			return nil
		}

		if _, err := e.recorder.Record(txCtx, expense, approverID, approved, comment); err != nil {
			return err
		}

		rule, err := e.rules.GetLatestByCompany(txCtx, expense.CompanyID)
		if err != nil {
			return fmt.Errorf("get rule: %w", err)
		}
		decisions, err := e.decisions.ListByExpense(txCtx, expenseID)
		if err != nil {
			return fmt.Errorf("list decisions: %w", err)
		}
		steps, err := e.steps.ListByExpense(txCtx, expenseID)
		if err != nil {
			return fmt.Errorf("list steps: %w", err)
		}

		outcome := e.evaluator.Evaluate(expense, rule, decisions, steps)
		if outcome.Status != expense.Status {
			affected, err := e.expenses.UpdateStatus(txCtx, expenseID, outcome.Status)
			if err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			if affected == 0 {
				// Another writer terminalized the expense underneath us.
				return ErrConflict
			}
		}

		result = &DecisionResult{Status: outcome.Status, Reason: outcome.Reason}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Decision processed",
		zap.Int64("expense_id", expenseID),
		zap.Int64("approver_id", approverID),
		zap.String("status", result.Status.String()),
		zap.String("reason", result.Reason))
	return result, nil
}

// authorizeDecide allows the named approver themselves, or an admin belonging
// to the expense's company
func (e *Engine) authorizeDecide(ctx context.Context, expense *models.Expense, approverID int64, caller CallerIdentity) error {
	if caller.UserID == approverID {
		return nil
	}
	if caller.Role != models.RoleAdmin {
		return fmt.Errorf("caller %d is not the approver: %w", caller.UserID, ErrForbidden)
	}

	callerUser, err := e.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return fmt.Errorf("get caller: %w", err)
	}
	if callerUser == nil || callerUser.CompanyID != expense.CompanyID {
		return fmt.Errorf("caller %d is not an admin of company %d: %w",
			caller.UserID, expense.CompanyID, ErrForbidden)
	}
	return nil
}

// ListPendingFor returns the approver's incomplete steps whose expense is
// still pending, skipping residual steps on expenses that short-circuited to
// a terminal status.
func (e *Engine) ListPendingFor(ctx context.Context, approverID int64) ([]*PendingApproval, error) {
	steps, err := e.steps.ListIncompleteByApprover(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("list incomplete steps: %w", err)
	}

	pending := make([]*PendingApproval, 0, len(steps))
	for _, step := range steps {
		expense, err := e.expenses.GetByID(ctx, step.ExpenseID)
		if err != nil {
			return nil, fmt.Errorf("get expense %d: %w", step.ExpenseID, err)
		}
		if expense == nil || expense.Status != models.StatusPending {
			continue
		}
		pending = append(pending, &PendingApproval{
			Expense:  expense,
			StepID:   step.ID,
			Sequence: step.Sequence,
		})
	}
	return pending, nil
}

// ListExpensesFor returns all expenses submitted by a user
func (e *Engine) ListExpensesFor(ctx context.Context, submitterID int64) ([]*models.Expense, error) {
	expenses, err := e.expenses.ListBySubmitter(ctx, submitterID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}
