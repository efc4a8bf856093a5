package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/pkg/database"
	"go.uber.org/zap"
)

// CompanyRepository handles company database operations
type CompanyRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *database.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new company
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `INSERT INTO companies (name, country, currency) VALUES (?, ?, ?)`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		company.Name,
		company.Country,
		company.Currency,
	)
	if err != nil {
		r.logger.Error("Failed to create company", zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	company.ID = id
	return nil
}

// GetByID retrieves a company by ID. Returns (nil, nil) when absent.
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	query := `SELECT id, name, country, currency, created_at FROM companies WHERE id = ?`

	var company models.Company
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.Country,
		&company.Currency,
		&company.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// Count returns the number of companies.
func (r *CompanyRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return count, nil
}
