package approval

import (
	"fmt"
	"strconv"

	"github.com/expensio/expense-approval/internal/models"
)

// Outcome is the result of evaluating the rule set after a decision.
type Outcome struct {
	Status models.Status
	Reason string
}

// Evaluator applies the company rule set to the full decision state of an
// expense. Evaluation is pure: it reads the rows it is given and computes a
// status, leaving persistence to the engine.
type Evaluator struct{}

// NewEvaluator creates a new rule evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate decides the new expense status from the aggregate state, first
// match wins:
//
//  1. Special approver override: any approval by a special approver approves
//     the expense outright. A rejection by a special approver does not
//     short-circuit; it falls through.
//  2. Percentage threshold: approved when
//     100 * approvals / total steps >= threshold. No steps counts as 0%, so
//     a positive threshold is never met by an empty plan.
//  3. Exhaustion: when no incomplete steps remain, rejected if any decision
//     was a rejection, approved otherwise.
//  4. Otherwise the expense stays pending.
//
// Terminal expenses are never re-evaluated; the current status comes back
// unchanged.
func (e *Evaluator) Evaluate(expense *models.Expense, rule *models.ApprovalRule, decisions []*models.ApprovalDecision, steps []*models.ApprovalStep) Outcome {
	if expense.Status.IsTerminal() {
		return Outcome{Status: expense.Status, Reason: "already finalized"}
	}

	if rule != nil {
		if outcome, ok := e.specialApprover(rule, decisions); ok {
			return outcome
		}
		if outcome, ok := e.percentageThreshold(rule, decisions, steps); ok {
			return outcome
		}
	}

	if outcome, ok := e.exhaustion(decisions, steps); ok {
		return outcome
	}

	return Outcome{Status: models.StatusPending, Reason: "moved to next approver"}
}

func (e *Evaluator) specialApprover(rule *models.ApprovalRule, decisions []*models.ApprovalDecision) (Outcome, bool) {
	special := rule.SpecialApprovers()
	if len(special) == 0 {
		return Outcome{}, false
	}

	specialSet := make(map[int64]bool, len(special))
	for _, id := range special {
		specialSet[id] = true
	}

	for _, d := range decisions {
		if d.Approved && specialSet[d.ApproverID] {
			return Outcome{Status: models.StatusApproved, Reason: "special approver approved"}, true
		}
	}
	return Outcome{}, false
}

func (e *Evaluator) percentageThreshold(rule *models.ApprovalRule, decisions []*models.ApprovalDecision, steps []*models.ApprovalStep) (Outcome, bool) {
	if rule.PercentageThreshold == nil {
		return Outcome{}, false
	}
	threshold := *rule.PercentageThreshold

	approvals := 0
	for _, d := range decisions {
		if d.Approved {
			approvals++
		}
	}

	pct := 0.0
	if len(steps) > 0 {
		pct = float64(approvals) / float64(len(steps)) * 100
	}

	if pct >= float64(threshold) {
		reason := fmt.Sprintf("%s%% approvals >= %d%%",
			strconv.FormatFloat(pct, 'g', -1, 64), threshold)
		return Outcome{Status: models.StatusApproved, Reason: reason}, true
	}
	return Outcome{}, false
}

func (e *Evaluator) exhaustion(decisions []*models.ApprovalDecision, steps []*models.ApprovalStep) (Outcome, bool) {
	for _, s := range steps {
		if !s.Completed {
			return Outcome{}, false
		}
	}

	for _, d := range decisions {
		if !d.Approved {
			return Outcome{Status: models.StatusRejected, Reason: "finalized"}, true
		}
	}
	return Outcome{Status: models.StatusApproved, Reason: "finalized"}, true
}
