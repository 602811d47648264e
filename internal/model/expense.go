// Package model defines the core domain types for the expense ledger.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Sync states for a locally stored expense. The flag is an integer with
// exactly two legal values so it can back the store's secondary index.
const (
	SyncPending   = 0
	SyncConfirmed = 1
)

// DefaultCategory is applied when the caller leaves the category empty.
const DefaultCategory = "General"

// DateLayout is the calendar-date format used throughout the ledger.
// Dates are stored as plain ISO 8601 strings, independent of the time zone
// the record was created in.
const DateLayout = "2006-01-02"

// Expense represents a single expense record in the local ledger.
type Expense struct {
	CreatedAt   time.Time
	Description string
	Date        string
	Category    string
	ClientToken string
	RemoteID    string
	ID          int64
	Amount      float64
	Synced      int
}

// ExpenseInput carries the caller-supplied fields for a new expense.
// Sync status, creation time and the record identifier are always assigned
// by the store; values supplied here for those are never consulted.
type ExpenseInput struct {
	Description string
	Date        string
	Category    string
	ClientToken string
	Amount      float64
}

// Validate checks the caller-supplied fields. It does not fill defaults;
// the store owns defaulting so that every insert path behaves the same.
func (in ExpenseInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("description must not be empty")
	}
	if in.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", in.Amount)
	}
	if _, err := time.Parse(DateLayout, in.Date); err != nil {
		return fmt.Errorf("date must be a calendar date in %s form: %w", DateLayout, err)
	}
	return nil
}

// Pending reports whether the expense still awaits remote confirmation.
func (e *Expense) Pending() bool {
	return e.Synced == SyncPending
}

// Suggestion is a transient prefill produced by the capture pipeline or the
// backend's scan endpoint. Every field is independently optional; it is
// discarded once merged into a submitted expense or abandoned.
type Suggestion struct {
	Description string
	Date        string
	Category    string
	Amount      float64
}

// Empty reports whether the suggestion carries no usable field at all.
func (s *Suggestion) Empty() bool {
	return strings.TrimSpace(s.Description) == "" && s.Amount <= 0 &&
		strings.TrimSpace(s.Date) == "" && strings.TrimSpace(s.Category) == ""
}

// Apply merges the suggestion's usable fields into an expense input,
// leaving fields the suggestion does not carry untouched.
func (s *Suggestion) Apply(in ExpenseInput) ExpenseInput {
	if strings.TrimSpace(s.Description) != "" {
		in.Description = s.Description
	}
	if s.Amount > 0 {
		in.Amount = s.Amount
	}
	if strings.TrimSpace(s.Date) != "" {
		in.Date = s.Date
	}
	if strings.TrimSpace(s.Category) != "" {
		in.Category = s.Category
	}
	return in
}
