package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/expensio/expense-approval/internal/approval"
	"github.com/expensio/expense-approval/internal/auth"
	"github.com/expensio/expense-approval/internal/currency"
	"github.com/expensio/expense-approval/internal/models"
	"github.com/expensio/expense-approval/internal/receipt"
	"github.com/expensio/expense-approval/internal/report"
	"github.com/expensio/expense-approval/internal/repository"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine    *approval.Engine
	companies *repository.CompanyRepository
	users     *repository.UserRepository
	rules     *repository.RuleRepository
	tx        approval.TransactionManager
	resolver  currency.CountryResolver
	issuer    *auth.TokenIssuer
	parser    *receipt.Parser
	exporter  *report.Exporter
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine *approval.Engine,
	companies *repository.CompanyRepository,
	users *repository.UserRepository,
	rules *repository.RuleRepository,
	tx approval.TransactionManager,
	resolver currency.CountryResolver,
	issuer *auth.TokenIssuer,
	parser *receipt.Parser,
	exporter *report.Exporter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:    engine,
		companies: companies,
		users:     users,
		rules:     rules,
		tx:        tx,
		resolver:  resolver,
		issuer:    issuer,
		parser:    parser,
		exporter:  exporter,
		logger:    logger,
	}
}

// SignupRequest registers a new company with its first admin
type SignupRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Country     string `json:"country" binding:"required"`
	AdminName   string `json:"admin_name" binding:"required"`
	AdminEmail  string `json:"admin_email" binding:"required"`
}

// CreateUserRequest creates or updates a user within a company
type CreateUserRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Role      string `json:"role"`
	CompanyID int64  `json:"company_id" binding:"required"`
	ManagerID *int64 `json:"manager_id"`
	Password  string `json:"password"`
}

// SubmitExpenseRequest submits a new expense
type SubmitExpenseRequest struct {
	SubmitterID int64   `json:"submitter_id" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
	Currency    string  `json:"currency" binding:"required"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	ApproverIDs []int64 `json:"approver_ids"`
}

// DecisionRequest records one approver's decision
type DecisionRequest struct {
	ApproverID int64  `json:"approver_id" binding:"required"`
	Approved   *bool  `json:"approved" binding:"required"`
	Comment    string `json:"comment"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "expense-approval",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Signup handles POST /signup: creates a company, its first admin (with the
// default password), and a default 50% threshold rule in one transaction.
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	baseCurrency, err := h.resolver.CurrencyForCountry(c.Request.Context(), req.Country)
	if err != nil {
		h.logger.Error("Failed to resolve currency", zap.String("country", req.Country), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to resolve country currency"})
		return
	}

	passwordHash, err := auth.HashPassword(auth.DefaultPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	company := &models.Company{Name: req.CompanyName, Country: req.Country, Currency: baseCurrency}
	admin := &models.User{
		Name:         req.AdminName,
		Email:        req.AdminEmail,
		Role:         models.RoleAdmin,
		PasswordHash: passwordHash,
	}

	err = h.tx.WithTransaction(c.Request.Context(), func(txCtx context.Context) error {
		if err := h.companies.Create(txCtx, company); err != nil {
			return err
		}
		admin.CompanyID = company.ID
		if err := h.users.Create(txCtx, admin); err != nil {
			return err
		}
		threshold := 50
		return h.rules.Create(txCtx, &models.ApprovalRule{
			CompanyID:           company.ID,
			PercentageThreshold: &threshold,
			Mode:                "or",
		})
	})
	if err != nil {
		h.logger.Error("Failed to sign up company", zap.String("company", req.CompanyName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create company"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"company_id": company.ID,
		"admin_id":   admin.ID,
		"currency":   baseCurrency,
	})
}

// Login handles POST /token with form fields username and password
func (h *Handlers) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := h.users.GetByEmail(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if user == nil || user.PasswordHash == "" || !auth.CheckPassword(password, user.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect username or password"})
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Int64("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// CreateUser handles POST /users (admin only). A request for an existing
// email updates that user instead of creating a duplicate.
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleEmployee
	}

	ctx := c.Request.Context()
	existing, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
		return
	}

	user := existing
	if user == nil {
		user = &models.User{Email: req.Email}
	}
	user.Name = req.Name
	user.Role = role
	user.CompanyID = req.CompanyID
	user.ManagerID = req.ManagerID
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}
		user.PasswordHash = hash
	}

	if existing != nil {
		err = h.users.Update(ctx, user)
	} else {
		err = h.users.Create(ctx, user)
	}
	if err != nil {
		h.logger.Error("Failed to save user", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save user"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// SubmitExpense handles POST /expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	expense, err := h.engine.Submit(c.Request.Context(), approval.SubmitRequest{
		SubmitterID: req.SubmitterID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		Date:        &date,
		ApproverIDs: req.ApproverIDs,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, expense)
}

// ListUserExpenses handles GET /expenses/user/:user_id
func (h *Handlers) ListUserExpenses(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	expenses, err := h.engine.ListExpensesFor(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// ListPendingApprovals handles GET /approvals/user/:user_id/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	pending, err := h.engine.ListPendingFor(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

// MakeDecision handles POST /approvals/:expense_id/decision
func (h *Handlers) MakeDecision(c *gin.Context) {
	expenseID, ok := pathID(c, "expense_id")
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caller, ok := auth.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	result, err := h.engine.Decide(c.Request.Context(), expenseID, req.ApproverID, *req.Approved, req.Comment, caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ParseReceipt handles POST /ocr/receipt
func (h *Handlers) ParseReceipt(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	parsed := h.parser.Parse(file.Filename, file.Size)
	c.JSON(http.StatusOK, parsed)
}

// ExportCompanyReport handles GET /reports/company/:company_id/expenses
// (admin only), streaming the company's expenses as an xlsx download.
func (h *Handlers) ExportCompanyReport(c *gin.Context) {
	companyID, ok := pathID(c, "company_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	company, err := h.companies.GetByID(ctx, companyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load company"})
		return
	}
	if company == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
		return
	}

	buf, err := h.exporter.ExportCompanyExpenses(ctx, company)
	if err != nil {
		h.logger.Error("Failed to export report", zap.Int64("company_id", companyID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	filename := fmt.Sprintf("expenses_company_%d.xlsx", companyID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// respondError maps engine errors to HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the approver or an admin can make decisions"})
	case errors.Is(err, approval.ErrNoPendingStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending approval step for this approver"})
	case errors.Is(err, approval.ErrExpenseFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": "expense already finalized"})
	case errors.Is(err, approval.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary conflict, retry the request"})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	var id int64
	if _, err := fmt.Sscanf(c.Param(name), "%d", &id); err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}
