package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/pkg/database"
	"go.uber.org/zap"
)

// ExpenseRepository handles expense database operations
type ExpenseRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *database.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

const expenseColumns = `id, submitter_id, company_id, amount, currency,
	amount_company_currency, category, description, date, status, created_at`

func scanExpense(row interface{ Scan(...interface{}) error }) (*models.Expense, error) {
	var expense models.Expense
	var category, description sql.NullString
	var date sql.NullTime

	err := row.Scan(
		&expense.ID,
		&expense.SubmitterID,
		&expense.CompanyID,
		&expense.Amount,
		&expense.Currency,
		&expense.AmountCompanyCurrency,
		&category,
		&description,
		&date,
		&expense.Status,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if category.Valid {
		expense.Category = category.String
	}
	if description.Valid {
		expense.Description = description.String
	}
	if date.Valid {
		expense.Date = &date.Time
	}
	return &expense, nil
}

// Create creates a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	query := `
		INSERT INTO expenses (
			submitter_id, company_id, amount, currency,
			amount_company_currency, category, description, date, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		expense.SubmitterID,
		expense.CompanyID,
		expense.Amount,
		expense.Currency,
		expense.AmountCompanyCurrency,
		nullString(expense.Category),
		nullString(expense.Description),
		expense.Date,
		expense.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	return nil
}

// GetByID retrieves an expense by ID. Returns (nil, nil) when absent.
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	expense, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// UpdateStatus updates the status of an expense only while it is still
// pending. Returns the number of rows changed so callers can detect a
// concurrent terminalization.
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) (int64, error) {
	query := `UPDATE expenses SET status = ? WHERE id = ? AND status = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, id, models.StatusPending)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.Int64("id", id), zap.String("status", status.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to update expense status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// ListBySubmitter retrieves all expenses submitted by a user
func (r *ExpenseRepository) ListBySubmitter(ctx context.Context, submitterID int64) ([]*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE submitter_id = ? ORDER BY id ASC`

	return r.list(ctx, query, submitterID)
}

// ListByCompany retrieves all expenses owned by a company
func (r *ExpenseRepository) ListByCompany(ctx context.Context, companyID int64) ([]*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE company_id = ? ORDER BY id ASC`

	return r.list(ctx, query, companyID)
}

func (r *ExpenseRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Expense, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}
