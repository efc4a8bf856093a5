package approval

import (
	"context"
	"sort"
	"sync"

	"github.com/expensio/expense-approval/internal/models"
)

// memStore is an in-memory implementation of every store interface plus the
// transaction manager. Guards mirror the SQL ones: the completed flip and the
// status update only succeed from the expected prior state.
type memStore struct {
	mu        sync.Mutex
	companies map[int64]*models.Company
	users     map[int64]*models.User
	expenses  map[int64]*models.Expense
	steps     map[int64]*models.ApprovalStep
	decisions []*models.ApprovalDecision
	rules     []*models.ApprovalRule
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		companies: make(map[int64]*models.Company),
		users:     make(map[int64]*models.User),
		expenses:  make(map[int64]*models.Expense),
		steps:     make(map[int64]*models.ApprovalStep),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addCompany(c *models.Company) *models.Company {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.companies[c.ID] = c
	return c
}

func (m *memStore) addUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addRule(r *models.ApprovalRule) *models.ApprovalRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.id()
	}
	m.rules = append(m.rules, r)
	return r
}

// The views expose the single memStore as separate stores, since the store
// interfaces declare colliding method names.
type companyView struct{ *memStore }
type userView struct{ *memStore }
type expenseView struct{ *memStore }
type stepView struct{ *memStore }
type decisionView struct{ *memStore }
type ruleView struct{ *memStore }

// CompanyStore

func (v companyView) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// UserStore

func (v userView) GetByID(ctx context.Context, id int64) (*models.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	u, ok := v.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (v userView) ListAdminsByCompany(ctx context.Context, companyID int64) ([]*models.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var admins []*models.User
	for _, u := range v.users {
		if u.CompanyID == companyID && u.Role == models.RoleAdmin {
			cp := *u
			admins = append(admins, &cp)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

// ExpenseStore

func (v expenseView) Create(ctx context.Context, expense *models.Expense) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	expense.ID = v.id()
	cp := *expense
	v.expenses[expense.ID] = &cp
	return nil
}

func (v expenseView) GetByID(ctx context.Context, id int64) (*models.Expense, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.expenses[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (v expenseView) UpdateStatus(ctx context.Context, id int64, status models.Status) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.expenses[id]
	if !ok || e.Status != models.StatusPending {
		return 0, nil
	}
	e.Status = status
	return 1, nil
}

func (v expenseView) ListBySubmitter(ctx context.Context, submitterID int64) ([]*models.Expense, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*models.Expense
	for _, e := range v.expenses {
		if e.SubmitterID == submitterID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// StepStore

func (v stepView) Create(ctx context.Context, step *models.ApprovalStep) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	step.ID = v.id()
	cp := *step
	v.steps[step.ID] = &cp
	return nil
}

func (v stepView) GetIncomplete(ctx context.Context, expenseID, approverID int64) (*models.ApprovalStep, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var oldest *models.ApprovalStep
	for _, s := range v.steps {
		if s.ExpenseID == expenseID && s.ApproverID == approverID && !s.Completed {
			if oldest == nil || s.ID < oldest.ID {
				oldest = s
			}
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

func (v stepView) MarkCompleted(ctx context.Context, stepID int64) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.steps[stepID]
	if !ok || s.Completed {
		return false, nil
	}
	s.Completed = true
	return true, nil
}

func (v stepView) ListByExpense(ctx context.Context, expenseID int64) ([]*models.ApprovalStep, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*models.ApprovalStep
	for _, s := range v.steps {
		if s.ExpenseID == expenseID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (v stepView) ListIncompleteByApprover(ctx context.Context, approverID int64) ([]*models.ApprovalStep, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*models.ApprovalStep
	for _, s := range v.steps {
		if s.ApproverID == approverID && !s.Completed {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DecisionStore

func (v decisionView) Create(ctx context.Context, decision *models.ApprovalDecision) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	decision.ID = v.id()
	cp := *decision
	v.decisions = append(v.decisions, &cp)
	return nil
}

func (v decisionView) ListByExpense(ctx context.Context, expenseID int64) ([]*models.ApprovalDecision, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*models.ApprovalDecision
	for _, d := range v.decisions {
		if d.ExpenseID == expenseID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RuleStore

func (v ruleView) GetLatestByCompany(ctx context.Context, companyID int64) (*models.ApprovalRule, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var latest *models.ApprovalRule
	for _, r := range v.rules {
		if r.CompanyID == companyID && (latest == nil || r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// nopTxManager runs the unit of work without a real transaction
type nopTxManager struct{}

func (nopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeNormalizer converts via a fixed from->to rate table, 1:1 on misses
type fakeNormalizer struct {
	rates map[string]float64 // key "FROM/TO"
}

func (f *fakeNormalizer) Normalize(ctx context.Context, amount float64, fromCurrency, toCurrency string) float64 {
	if fromCurrency == toCurrency {
		return amount
	}
	if rate, ok := f.rates[fromCurrency+"/"+toCurrency]; ok {
		return amount * rate
	}
	return amount
}
