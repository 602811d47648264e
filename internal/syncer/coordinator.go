// Package syncer reconciles locally stored expenses with the remote backend.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/model"
	"github.com/offlinefirst/snapledger/internal/service"
)

// Coordinator opportunistically pushes pending records to the backend
// without ever gating the local write path on network state.
type Coordinator struct {
	store        service.Store
	gateway      service.Gateway
	connectivity service.Source
	retry        service.RetryOptions
}

// Config holds configuration options for the coordinator.
type Config struct {
	Retry service.RetryOptions
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Report summarizes one backlog pass.
type Report struct {
	Attempted int
	Synced    int
	Failed    int
}

// New creates a coordinator with the given dependencies.
func New(store service.Store, gateway service.Gateway, connectivity service.Source) *Coordinator {
	return NewWithConfig(store, gateway, connectivity, DefaultConfig())
}

// NewWithConfig creates a coordinator with custom configuration.
func NewWithConfig(store service.Store, gateway service.Gateway, connectivity service.Source, config Config) *Coordinator {
	return &Coordinator{
		store:        store,
		gateway:      gateway,
		connectivity: connectivity,
		retry:        config.Retry,
	}
}

// Submit saves a new expense locally and, when the device is online,
// immediately attempts remote delivery.
//
// The local write is the save operation's promise: it happens first,
// unconditionally, and its error is the only one a caller ever sees.
// A gateway failure merely leaves the record pending for a later backlog
// pass, logged but swallowed, because the user-visible save has already
// succeeded.
func (c *Coordinator) Submit(ctx context.Context, input model.ExpenseInput) (*model.Expense, error) {
	exp, err := c.store.AddExpense(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to save expense: %w", err)
	}

	if !c.connectivity.Online() {
		slog.Info("Offline, expense held for later sync", "id", exp.ID)
		return exp, nil
	}

	if err := c.push(ctx, exp); err != nil {
		common.LogError(err, "Sync deferred, expense remains pending", common.Fields{
			"id": exp.ID,
		})
		return exp, nil
	}

	exp.Synced = model.SyncConfirmed
	return exp, nil
}

// SyncBacklog attempts delivery for every pending record, each one
// independently: a failure on one never blocks the rest.
func (c *Coordinator) SyncBacklog(ctx context.Context) (Report, error) {
	var report Report

	backlog, err := c.store.GetUnsyncedExpenses(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load backlog: %w", err)
	}

	if len(backlog) == 0 {
		slog.Debug("No pending expenses to sync")
		return report, nil
	}

	slog.Info("Syncing backlog", "pending", len(backlog))

	for i := range backlog {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		report.Attempted++
		if err := c.push(ctx, &backlog[i]); err != nil {
			report.Failed++
			common.LogError(err, "Backlog sync failed for expense", common.Fields{
				"id": backlog[i].ID,
			})
			continue
		}
		report.Synced++
	}

	slog.Info("Backlog pass complete",
		"attempted", report.Attempted,
		"synced", report.Synced,
		"failed", report.Failed)

	return report, nil
}

// Run watches connectivity and replays the backlog on every
// offline-to-online transition. It returns when ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	ch := c.connectivity.Subscribe()
	defer c.connectivity.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online, ok := <-ch:
			if !ok {
				return nil
			}
			if !online {
				continue
			}
			if _, err := c.SyncBacklog(ctx); err != nil && ctx.Err() == nil {
				common.LogError(err, "Backlog sync pass aborted", nil)
			}
		}
	}
}

// push delivers one record and flips its local flag on success. The
// record's client token makes a repeated create after a lost
// acknowledgment collapse server-side instead of double-booking.
func (c *Coordinator) push(ctx context.Context, exp *model.Expense) error {
	err := common.WithRetry(ctx, func() error {
		_, createErr := c.gateway.CreateExpense(ctx, *exp)
		return createErr
	}, c.retry)
	if err != nil {
		return err
	}

	if err := c.store.MarkSynced(ctx, exp.ID); err != nil {
		return fmt.Errorf("delivered but failed to mark synced: %w", err)
	}

	return nil
}
