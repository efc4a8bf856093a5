package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/pkg/database"
	"go.uber.org/zap"
)

// UserRepository handles user database operations
type UserRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, name, email, role, password_hash, manager_id, company_id, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var user models.User
	var passwordHash sql.NullString
	var managerID sql.NullInt64

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&passwordHash,
		&managerID,
		&user.CompanyID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if passwordHash.Valid {
		user.PasswordHash = passwordHash.String
	}
	if managerID.Valid {
		user.ManagerID = &managerID.Int64
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, role, password_hash, manager_id, company_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		nullString(user.PasswordHash),
		nullInt64(user.ManagerID),
		user.CompanyID,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// Update updates an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = ?, email = ?, role = ?, password_hash = ?, manager_id = ?, company_id = ?
		WHERE id = ?
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		nullString(user.PasswordHash),
		nullInt64(user.ManagerID),
		user.CompanyID,
		user.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int64("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListAdminsByCompany returns the company's admins in ascending id order so
// default approval chains are reproducible.
func (r *UserRepository) ListAdminsByCompany(ctx context.Context, companyID int64) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = ? AND role = ? ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, companyID, models.RoleAdmin)
	if err != nil {
		r.logger.Error("Failed to list admins", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
