package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/pkg/database"
	"go.uber.org/zap"
)

// RuleRepository handles approval rule database operations
type RuleRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *database.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new approval rule
func (r *RuleRepository) Create(ctx context.Context, rule *models.ApprovalRule) error {
	query := `INSERT INTO approval_rules (company_id, percentage_threshold, special_approver_ids, mode)
		VALUES (?, ?, ?, ?)`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		rule.CompanyID,
		rule.PercentageThreshold,
		nullString(rule.SpecialApproverIDs),
		nullString(rule.Mode),
	)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.Int64("company_id", rule.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rule.ID = id
	return nil
}

// GetLatestByCompany retrieves the most recently created rule for a company.
// Companies are expected to hold a single rule; when stray duplicates exist
// the newest row wins so evaluation stays deterministic. Returns (nil, nil)
// when the company has no rule.
func (r *RuleRepository) GetLatestByCompany(ctx context.Context, companyID int64) (*models.ApprovalRule, error) {
	query := `SELECT id, company_id, percentage_threshold, special_approver_ids, mode, created_at
		FROM approval_rules WHERE company_id = ? ORDER BY id DESC LIMIT 1`

	var rule models.ApprovalRule
	var threshold sql.NullInt64
	var specialIDs, mode sql.NullString

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, companyID).Scan(
		&rule.ID,
		&rule.CompanyID,
		&threshold,
		&specialIDs,
		&mode,
		&rule.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	if threshold.Valid {
		v := int(threshold.Int64)
		rule.PercentageThreshold = &v
	}
	if specialIDs.Valid {
		rule.SpecialApproverIDs = specialIDs.String
	}
	if mode.Valid {
		rule.Mode = mode.String
	}
	return &rule, nil
}
