// Package service defines the interfaces the ledger's components are wired through.
package service

import (
	"context"
	"io"
	"time"

	"github.com/offlinefirst/snapledger/internal/model"
)

// Store defines the contract for the local durable record store.
//
// All mutation of expense records goes through these operations; no other
// component touches record storage directly. Each operation is transactional
// at single-record granularity.
type Store interface {
	// AddExpense inserts a new record. The store assigns the identifier,
	// forces the sync flag to pending and stamps the creation time,
	// regardless of anything the caller supplied for those fields.
	AddExpense(ctx context.Context, input model.ExpenseInput) (*model.Expense, error)

	// GetAllExpenses returns every record. No ordering is guaranteed;
	// callers impose their own.
	GetAllExpenses(ctx context.Context) ([]model.Expense, error)

	// GetUnsyncedExpenses returns exactly the records still pending sync.
	GetUnsyncedExpenses(ctx context.Context) ([]model.Expense, error)

	// MarkSynced flips a record to confirmed. Marking an already-confirmed
	// record is a no-op; an unknown id is logged, not an error.
	MarkSynced(ctx context.Context, id int64) error

	Migrate(ctx context.Context) error
	Close() error
}

// Gateway is the remote backend contract the sync coordinator depends on.
// Implementations normalize transport failures, non-2xx responses and
// malformed bodies into a single gateway error kind.
type Gateway interface {
	ListExpenses(ctx context.Context) ([]model.Expense, error)
	CreateExpense(ctx context.Context, exp model.Expense) (*model.Expense, error)
	ScanImage(ctx context.Context, image io.Reader, filename string) (*model.Suggestion, error)
	ParseText(ctx context.Context, text string) (*model.Suggestion, error)
}

// Checker reports whether the device can currently reach the network.
type Checker interface {
	Online() bool
}

// Subscriber delivers connectivity transitions. Each value on the channel
// is the new state; an offline-to-online edge arrives as true.
type Subscriber interface {
	Subscribe() <-chan bool
	Unsubscribe(ch <-chan bool)
}

// Source combines both connectivity views: the synchronous check consulted
// at submit time and the transition feed that triggers backlog retry.
type Source interface {
	Checker
	Subscriber
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
