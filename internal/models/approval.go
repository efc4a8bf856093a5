package models

import (
	"strconv"
	"strings"
	"time"
)

// ApprovalStep is one approver's pending obligation on an expense. Sequence
// is a 1-based order hint only; completion order is not gated by it.
// Completed flips exactly once, from false to true.
type ApprovalStep struct {
	ID         int64     `json:"id"`
	ExpenseID  int64     `json:"expense_id"`
	ApproverID int64     `json:"approver_id"`
	Sequence   int       `json:"sequence"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovalDecision is one approver's recorded vote on an expense.
// Decisions are append-only.
type ApprovalDecision struct {
	ID         int64     `json:"id"`
	ExpenseID  int64     `json:"expense_id"`
	ApproverID int64     `json:"approver_id"`
	Approved   bool      `json:"approved"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovalRule configures rule evaluation for a company. PercentageThreshold
// is an integer 0-100 or nil. SpecialApproverIDs is stored as CSV in the
// database. Mode is stored but not consulted by evaluation.
type ApprovalRule struct {
	ID                  int64     `json:"id"`
	CompanyID           int64     `json:"company_id"`
	PercentageThreshold *int      `json:"percentage_threshold,omitempty"`
	SpecialApproverIDs  string    `json:"special_approver_ids,omitempty"`
	Mode                string    `json:"mode,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// SpecialApprovers parses the CSV id list, skipping blanks and malformed
// entries.
func (r *ApprovalRule) SpecialApprovers() []int64 {
	if r == nil || r.SpecialApproverIDs == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(r.SpecialApproverIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
