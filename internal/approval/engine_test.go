package approval

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/expensio/expense-approval/internal/models"
)

type engineFixture struct {
	store    *memStore
	engine   *Engine
	company  *models.Company
	manager  *models.User
	admin    *models.User
	employee *models.User
}

func newEngineFixture() *engineFixture {
	store := newMemStore()
	company := store.addCompany(&models.Company{Name: "SampleCo", Country: "India", Currency: "INR"})
	manager := store.addUser(&models.User{Name: "Manager", Email: "manager@sample", Role: models.RoleManager, CompanyID: company.ID})
	admin := store.addUser(&models.User{Name: "Administrator", Email: "admin@sample", Role: models.RoleAdmin, CompanyID: company.ID})
	employee := store.addUser(&models.User{Name: "Employee", Email: "employee@sample", Role: models.RoleEmployee, CompanyID: company.ID, ManagerID: &manager.ID})

	engine := NewEngine(
		companyView{store}, userView{store}, expenseView{store},
		stepView{store}, decisionView{store}, ruleView{store},
		nopTxManager{},
		&fakeNormalizer{rates: map[string]float64{"USD/INR": 82}},
		zap.NewNop(),
	)
	return &engineFixture{
		store:    store,
		engine:   engine,
		company:  company,
		manager:  manager,
		admin:    admin,
		employee: employee,
	}
}

func (f *engineFixture) submit(t *testing.T, req SubmitRequest) *models.Expense {
	t.Helper()
	expense, err := f.engine.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return expense
}

func (f *engineFixture) caller(u *models.User) CallerIdentity {
	return CallerIdentity{UserID: u.ID, Role: u.Role}
}

func TestEngine_Submit_NormalizesIntoCompanyCurrency(t *testing.T) {
	f := newEngineFixture()

	expense := f.submit(t, SubmitRequest{
		SubmitterID: f.employee.ID,
		Amount:      100,
		Currency:    "USD",
		Category:    "travel",
	})

	if expense.Status != models.StatusPending {
		t.Errorf("status = %v, want pending", expense.Status)
	}
	if expense.AmountCompanyCurrency != 8200 {
		t.Errorf("amount_company_currency = %v, want 8200", expense.AmountCompanyCurrency)
	}
	if expense.Amount != 100 || expense.Currency != "USD" {
		t.Errorf("original amount mutated: %v %s", expense.Amount, expense.Currency)
	}

	steps, _ := stepView{f.store}.ListByExpense(context.Background(), expense.ID)
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2 (manager then admin)", len(steps))
	}
	if steps[0].ApproverID != f.manager.ID || steps[1].ApproverID != f.admin.ID {
		t.Errorf("chain = [%d %d], want [%d %d]",
			steps[0].ApproverID, steps[1].ApproverID, f.manager.ID, f.admin.ID)
	}
}

func TestEngine_Submit_UnknownSubmitter(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.Submit(context.Background(), SubmitRequest{SubmitterID: 999, Amount: 10, Currency: "INR"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Submit() error = %v, want ErrNotFound", err)
	}
}

func TestEngine_Decide_PercentageThresholdShortCircuits(t *testing.T) {
	f := newEngineFixture()
	f.store.addRule(&models.ApprovalRule{CompanyID: f.company.ID, PercentageThreshold: intPtr(50)})
	expense := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 500, Currency: "INR"})
	ctx := context.Background()

	// One approval out of two steps already reaches 50%.
	result, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "ok", f.caller(f.manager))
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if result.Status != models.StatusApproved {
		t.Errorf("status = %v, want approved", result.Status)
	}
	if result.Reason != "50% approvals >= 50%" {
		t.Errorf("reason = %q", result.Reason)
	}

	// The admin's residual step no longer matters: the decide is a no-op
	// reporting the settled state.
	result, err = f.engine.Decide(ctx, expense.ID, f.admin.ID, false, "too late", f.caller(f.admin))
	if err != nil {
		t.Fatalf("Decide() after finalization error = %v", err)
	}
	if result.Status != models.StatusApproved || result.Reason != "already finalized" {
		t.Errorf("got %v %q, want approved %q", result.Status, result.Reason, "already finalized")
	}

	decisions, _ := decisionView{f.store}.ListByExpense(ctx, expense.ID)
	if len(decisions) != 1 {
		t.Errorf("got %d decisions, want 1 (late vote not recorded)", len(decisions))
	}
}

func TestEngine_Decide_SpecialApproverOverridesThreshold(t *testing.T) {
	f := newEngineFixture()
	f.store.addRule(&models.ApprovalRule{
		CompanyID:           f.company.ID,
		PercentageThreshold: intPtr(100),
		SpecialApproverIDs:  strconv.FormatInt(f.manager.ID, 10),
	})
	expense := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 500, Currency: "INR"})

	result, err := f.engine.Decide(context.Background(), expense.ID, f.manager.ID, true, "", f.caller(f.manager))
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if result.Status != models.StatusApproved || result.Reason != "special approver approved" {
		t.Errorf("got %v %q, want approved by special approver", result.Status, result.Reason)
	}
}

func TestEngine_Decide_ExhaustionWithRejection(t *testing.T) {
	f := newEngineFixture()
	expense := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 500, Currency: "INR"})
	ctx := context.Background()

	result, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.manager))
	if err != nil {
		t.Fatalf("first Decide() error = %v", err)
	}
	if result.Status != models.StatusPending || result.Reason != "moved to next approver" {
		t.Errorf("got %v %q, want pending %q", result.Status, result.Reason, "moved to next approver")
	}

	result, err = f.engine.Decide(ctx, expense.ID, f.admin.ID, false, "over budget", f.caller(f.admin))
	if err != nil {
		t.Fatalf("second Decide() error = %v", err)
	}
	if result.Status != models.StatusRejected || result.Reason != "finalized" {
		t.Errorf("got %v %q, want rejected %q", result.Status, result.Reason, "finalized")
	}

	stored, _ := expenseView{f.store}.GetByID(ctx, expense.ID)
	if stored.Status != models.StatusRejected {
		t.Errorf("persisted status = %v, want rejected", stored.Status)
	}
}

func TestEngine_Decide_DuplicateExplicitApprover(t *testing.T) {
	f := newEngineFixture()
	// A duplicated explicit approver gets one step per occurrence and may
	// decide once per step, oldest first.
	expense := f.submit(t, SubmitRequest{
		SubmitterID: f.employee.ID,
		Amount:      500,
		Currency:    "INR",
		ApproverIDs: []int64{f.manager.ID, f.manager.ID, f.admin.ID},
	})
	ctx := context.Background()

	result, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.manager))
	if err != nil {
		t.Fatalf("first Decide() error = %v", err)
	}
	if result.Status != models.StatusPending {
		t.Errorf("status after first vote = %v, want pending", result.Status)
	}

	result, err = f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.manager))
	if err != nil {
		t.Fatalf("second Decide() error = %v", err)
	}
	if result.Status != models.StatusPending {
		t.Errorf("status after second vote = %v, want pending", result.Status)
	}

	_, err = f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.manager))
	if !errors.Is(err, ErrNoPendingStep) {
		t.Errorf("third Decide() error = %v, want ErrNoPendingStep", err)
	}

	result, err = f.engine.Decide(ctx, expense.ID, f.admin.ID, true, "", f.caller(f.admin))
	if err != nil {
		t.Fatalf("final Decide() error = %v", err)
	}
	if result.Status != models.StatusApproved || result.Reason != "finalized" {
		t.Errorf("got %v %q, want approved %q", result.Status, result.Reason, "finalized")
	}

	decisions, _ := decisionView{f.store}.ListByExpense(ctx, expense.ID)
	if len(decisions) != 3 {
		t.Errorf("got %d decisions, want 3", len(decisions))
	}
}

func TestEngine_Decide_ExactlyOncePerApprover(t *testing.T) {
	f := newEngineFixture()
	expense := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 500, Currency: "INR"})
	ctx := context.Background()

	if _, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.manager)); err != nil {
		t.Fatalf("first Decide() error = %v", err)
	}
	_, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.manager))
	if !errors.Is(err, ErrNoPendingStep) {
		t.Errorf("second Decide() error = %v, want ErrNoPendingStep", err)
	}
}

func TestEngine_Decide_Authorization(t *testing.T) {
	f := newEngineFixture()
	otherCompany := f.store.addCompany(&models.Company{Name: "OtherCo", Currency: "USD"})
	outsideAdmin := f.store.addUser(&models.User{Name: "Outside Admin", Role: models.RoleAdmin, CompanyID: otherCompany.ID})
	expense := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 500, Currency: "INR"})
	ctx := context.Background()

	// The employee cannot act for the manager's step.
	_, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.employee))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("employee acting for manager: error = %v, want ErrForbidden", err)
	}

	// An admin of another company cannot either.
	_, err = f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(outsideAdmin))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("outside admin: error = %v, want ErrForbidden", err)
	}

	// An admin of the expense's company may act for the named approver.
	if _, err := f.engine.Decide(ctx, expense.ID, f.manager.ID, true, "", f.caller(f.admin)); err != nil {
		t.Errorf("company admin acting for manager: error = %v", err)
	}
}

func TestEngine_Decide_ExpenseNotFound(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.Decide(context.Background(), 404, f.manager.ID, true, "", f.caller(f.manager))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Decide() error = %v, want ErrNotFound", err)
	}
}

func TestEngine_Decide_ConcurrentSameStep(t *testing.T) {
	f := newEngineFixture()
	// Three explicit approvers so the first completion cannot finalize.
	expense := f.submit(t, SubmitRequest{
		SubmitterID: f.employee.ID,
		Amount:      500,
		Currency:    "INR",
		ApproverIDs: []int64{f.manager.ID, f.admin.ID, f.employee.ID},
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Decide(context.Background(), expense.ID, f.manager.ID, true, "", f.caller(f.manager))
		}(i)
	}
	wg.Wait()

	var ok, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNoPendingStep):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || lost != 1 {
		t.Errorf("got %d successes and %d losers, want exactly one of each", ok, lost)
	}

	decisions, _ := decisionView{f.store}.ListByExpense(context.Background(), expense.ID)
	if len(decisions) != 1 {
		t.Errorf("got %d decisions, want 1", len(decisions))
	}
}

func TestEngine_ListPendingFor_SkipsTerminalExpenses(t *testing.T) {
	f := newEngineFixture()
	f.store.addRule(&models.ApprovalRule{CompanyID: f.company.ID, PercentageThreshold: intPtr(50)})
	ctx := context.Background()

	settled := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 10, Currency: "INR"})
	open := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 20, Currency: "INR"})

	// Finalize the first expense; the admin's residual step on it must not
	// show up in the admin's queue.
	if _, err := f.engine.Decide(ctx, settled.ID, f.manager.ID, true, "", f.caller(f.manager)); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	pending, err := f.engine.ListPendingFor(ctx, f.admin.ID)
	if err != nil {
		t.Fatalf("ListPendingFor() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].Expense.ID != open.ID {
		t.Errorf("pending expense = %d, want %d", pending[0].Expense.ID, open.ID)
	}
	if pending[0].Sequence != 2 {
		t.Errorf("sequence = %d, want 2", pending[0].Sequence)
	}
}

func TestEngine_ListExpensesFor(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	first := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 1, Currency: "INR"})
	second := f.submit(t, SubmitRequest{SubmitterID: f.employee.ID, Amount: 2, Currency: "INR"})

	expenses, err := f.engine.ListExpensesFor(ctx, f.employee.ID)
	if err != nil {
		t.Fatalf("ListExpensesFor() error = %v", err)
	}
	if len(expenses) != 2 || expenses[0].ID != first.ID || expenses[1].ID != second.ID {
		t.Errorf("unexpected listing: %+v", expenses)
	}
}
