package models

import "time"

// Status represents the lifecycle status of an expense.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// IsTerminal returns true if no further status transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsValid returns true if the status is a known lifecycle status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Expense represents a submitted expense. Amount/Currency hold the original
// submission; AmountCompanyCurrency is the value normalized into the owning
// company's base currency at submission time. Status is mutated only by rule
// evaluation and never changes again once terminal.
type Expense struct {
	ID                    int64      `json:"id"`
	SubmitterID           int64      `json:"submitter_id"`
	CompanyID             int64      `json:"company_id"`
	Amount                float64    `json:"amount"`
	Currency              string     `json:"currency"`
	AmountCompanyCurrency float64    `json:"amount_company_currency"`
	Category              string     `json:"category,omitempty"`
	Description           string     `json:"description,omitempty"`
	Date                  *time.Time `json:"date,omitempty"`
	Status                Status     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
}
