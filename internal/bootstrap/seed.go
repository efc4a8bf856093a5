// Package bootstrap seeds a fresh database with a sample tenant so the
// service is usable immediately after first start.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/expensio/expense-approval/internal/auth"
	"github.com/expensio/expense-approval/internal/currency"
	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/internal/repository"
	"github.com/expensio/expense-approval/pkg/database"
)

// Seeder creates the default company and admin on an empty database
type Seeder struct {
	db        *database.DB
	companies *repository.CompanyRepository
	users     *repository.UserRepository
	rules     *repository.RuleRepository
	resolver  currency.CountryResolver
	logger    *zap.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(
	db *database.DB,
	companies *repository.CompanyRepository,
	users *repository.UserRepository,
	rules *repository.RuleRepository,
	resolver currency.CountryResolver,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{
		db:        db,
		companies: companies,
		users:     users,
		rules:     rules,
		resolver:  resolver,
		logger:    logger,
	}
}

// SeedDefault creates SampleCo with an admin user (admin@sample, password
// "admin") and a 50% threshold rule when no company exists yet. Running it
// against a populated database is a no-op.
func (s *Seeder) SeedDefault(ctx context.Context) error {
	count, err := s.companies.Count(ctx)
	if err != nil {
		return fmt.Errorf("count companies: %w", err)
	}
	if count > 0 {
		return nil
	}

	baseCurrency, err := s.resolver.CurrencyForCountry(ctx, "India")
	if err != nil {
		return fmt.Errorf("resolve currency: %w", err)
	}

	passwordHash, err := auth.HashPassword(auth.DefaultPassword)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}

	return s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		company := &models.Company{
			Name:     "SampleCo",
			Country:  "India",
			Currency: baseCurrency,
		}
		if err := s.companies.Create(txCtx, company); err != nil {
			return err
		}

		admin := &models.User{
			Name:         "Administrator",
			Email:        "admin@sample",
			Role:         models.RoleAdmin,
			PasswordHash: passwordHash,
			CompanyID:    company.ID,
		}
		if err := s.users.Create(txCtx, admin); err != nil {
			return err
		}

		threshold := 50
		rule := &models.ApprovalRule{
			CompanyID:           company.ID,
			PercentageThreshold: &threshold,
			Mode:                "or",
		}
		if err := s.rules.Create(txCtx, rule); err != nil {
			return err
		}

		s.logger.Info("Seeded default company",
			zap.Int64("company_id", company.ID),
			zap.Int64("admin_id", admin.ID),
			zap.String("currency", company.Currency))
		return nil
	})
}
