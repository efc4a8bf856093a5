package models

import "time"

// Company represents a tenant. Every user and expense belongs to exactly one
// company, and all amounts are normalized into the company's base currency.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Currency  string    `json:"currency"` // base currency code, e.g. "INR"
	CreatedAt time.Time `json:"created_at"`
}
