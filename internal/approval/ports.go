package approval

import (
	"context"

	"github.com/expensio/expense-approval/internal/models"
)

// CompanyStore defines the company lookups the engine needs
type CompanyStore interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
}

// UserStore defines the user lookups the engine needs
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListAdminsByCompany(ctx context.Context, companyID int64) ([]*models.User, error)
}

// ExpenseStore defines persistence operations for expenses
type ExpenseStore interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, id int64) (*models.Expense, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status) (int64, error)
	ListBySubmitter(ctx context.Context, submitterID int64) ([]*models.Expense, error)
}

// StepStore defines persistence operations for approval steps
type StepStore interface {
	Create(ctx context.Context, step *models.ApprovalStep) error
	GetIncomplete(ctx context.Context, expenseID, approverID int64) (*models.ApprovalStep, error)
	MarkCompleted(ctx context.Context, stepID int64) (bool, error)
	ListByExpense(ctx context.Context, expenseID int64) ([]*models.ApprovalStep, error)
	ListIncompleteByApprover(ctx context.Context, approverID int64) ([]*models.ApprovalStep, error)
}

// DecisionStore defines persistence operations for approval decisions
type DecisionStore interface {
	Create(ctx context.Context, decision *models.ApprovalDecision) error
	ListByExpense(ctx context.Context, expenseID int64) ([]*models.ApprovalDecision, error)
}

// RuleStore defines the rule lookup the engine needs
type RuleStore interface {
	GetLatestByCompany(ctx context.Context, companyID int64) (*models.ApprovalRule, error)
}

// TransactionManager composes multiple store calls into one atomic unit
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Normalizer converts a submitted amount into the company's base currency
type Normalizer interface {
	Normalize(ctx context.Context, amount float64, fromCurrency, toCurrency string) float64
}
