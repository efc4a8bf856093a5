package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/expensio/expense-approval/internal/approval"
	"github.com/expensio/expense-approval/internal/auth"
	"github.com/expensio/expense-approval/internal/bootstrap"
	"github.com/expensio/expense-approval/internal/config"
	"github.com/expensio/expense-approval/internal/currency"
	httpserver "github.com/expensio/expense-approval/internal/interfaces/http"
	"github.com/expensio/expense-approval/internal/receipt"
	"github.com/expensio/expense-approval/internal/report"
	"github.com/expensio/expense-approval/internal/repository"
	"github.com/expensio/expense-approval/pkg/database"
	"github.com/expensio/expense-approval/pkg/utils"
)

func main() {
	// Local overrides for development; missing .env is fine
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense approval service",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("external_rates", cfg.Currency.UseExternal))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	companyRepo := repository.NewCompanyRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	expenseRepo := repository.NewExpenseRepository(db, logger)
	stepRepo := repository.NewStepRepository(db, logger)
	decisionRepo := repository.NewDecisionRepository(db, logger)
	ruleRepo := repository.NewRuleRepository(db, logger)

	// Currency collaborators
	var rateSource currency.RateSource
	var resolver currency.CountryResolver
	if cfg.Currency.UseExternal {
		rateSource = currency.NewHTTPRateSource(cfg.Currency.RatesURL, cfg.Currency.Timeout, logger)
		resolver = currency.NewHTTPCountryResolver(cfg.Currency.CountriesURL, cfg.Currency.Timeout, logger)
	} else {
		rateSource = currency.NewStaticRateSource()
		resolver = currency.NewStaticCountryResolver()
	}
	normalizer := currency.NewNormalizer(rateSource, logger)

	// Approval engine
	engine := approval.NewEngine(
		companyRepo,
		userRepo,
		expenseRepo,
		stepRepo,
		decisionRepo,
		ruleRepo,
		db,
		normalizer,
		logger,
	)

	// First-run seeding
	seeder := bootstrap.NewSeeder(db, companyRepo, userRepo, ruleRepo, resolver, logger)
	if err := seeder.SeedDefault(context.Background()); err != nil {
		logger.Fatal("Failed to seed default data", zap.Error(err))
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	parser := receipt.NewParser(logger)
	exporter := report.NewExporter(expenseRepo, logger)

	handlers := httpserver.NewHandlers(
		engine,
		companyRepo,
		userRepo,
		ruleRepo,
		db,
		resolver,
		issuer,
		parser,
		exporter,
		logger,
	)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, issuer, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
