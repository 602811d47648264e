package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/connectivity"
	"github.com/offlinefirst/snapledger/internal/gateway"
	"github.com/offlinefirst/snapledger/internal/model"
	"github.com/offlinefirst/snapledger/internal/service"
	"github.com/offlinefirst/snapledger/internal/storage"
	"github.com/offlinefirst/snapledger/internal/testutil"
)

// singleAttempt keeps tests fast: no backoff sleeps, one try per record.
var singleAttempt = Config{
	Retry: service.RetryOptions{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	},
}

func newTestCoordinator(t *testing.T, online bool) (*Coordinator, *storage.SQLiteStore, *gateway.MockGateway, *connectivity.Static) {
	t.Helper()

	store := testutil.SetupTestStore(t)
	mock := gateway.NewMockGateway()
	source := connectivity.NewStatic(online)

	return NewWithConfig(store, mock, source, singleAttempt), store, mock, source
}

func coffeeInput() model.ExpenseInput {
	return model.ExpenseInput{
		Description: "Coffee",
		Amount:      4.50,
		Date:        "2024-03-01",
		Category:    "Food",
	}
}

func TestSubmitOfflineSavesLocally(t *testing.T) {
	coordinator, store, mock, _ := newTestCoordinator(t, false)
	ctx := context.Background()

	exp, err := coordinator.Submit(ctx, coffeeInput())
	require.NoError(t, err, "an offline save must not surface any error")
	assert.Equal(t, model.SyncPending, exp.Synced)

	// No network attempt at all while offline.
	assert.Empty(t, mock.CreateCalls)

	all, err := store.GetAllExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.SyncPending, all[0].Synced)
}

func TestSubmitOnlineFlipsSyncFlag(t *testing.T) {
	coordinator, store, mock, _ := newTestCoordinator(t, true)
	ctx := context.Background()

	exp, err := coordinator.Submit(ctx, coffeeInput())
	require.NoError(t, err)
	assert.Equal(t, model.SyncConfirmed, exp.Synced)

	require.Len(t, mock.CreateCalls, 1)
	assert.NotEmpty(t, mock.CreateCalls[0].ClientToken,
		"every create must carry the idempotency token")

	stored, err := store.GetExpenseByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncConfirmed, stored.Synced)
}

func TestSubmitSwallowsGatewayFailure(t *testing.T) {
	coordinator, store, mock, _ := newTestCoordinator(t, true)
	ctx := context.Background()

	mock.CreateExpenseFn = func(context.Context, model.Expense) (*model.Expense, error) {
		return nil, common.NewGatewayError("create", 503, errors.New("backend down"))
	}

	exp, err := coordinator.Submit(ctx, coffeeInput())
	require.NoError(t, err, "a gateway failure must not fail the save")
	assert.Equal(t, model.SyncPending, exp.Synced)

	stored, err := store.GetExpenseByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, stored.Synced)
}

func TestSubmitPropagatesStorageFailure(t *testing.T) {
	coordinator, _, mock, _ := newTestCoordinator(t, true)

	// Invalid input fails the local write, which is the one error a
	// caller must see.
	_, err := coordinator.Submit(context.Background(), model.ExpenseInput{})
	require.Error(t, err)
	assert.Empty(t, mock.CreateCalls, "nothing should reach the gateway when the local write fails")
}

func TestSyncBacklogIsolatesFailures(t *testing.T) {
	coordinator, store, mock, _ := newTestCoordinator(t, false)
	ctx := context.Background()

	first, err := coordinator.Submit(ctx, coffeeInput())
	require.NoError(t, err)
	second, err := coordinator.Submit(ctx, model.ExpenseInput{
		Description: "Taxi",
		Amount:      9.80,
		Date:        "2024-03-02",
	})
	require.NoError(t, err)

	mock.CreateExpenseFn = func(_ context.Context, exp model.Expense) (*model.Expense, error) {
		if exp.ID == first.ID {
			return nil, common.NewGatewayError("create", 500, errors.New("boom"))
		}
		created := exp
		created.RemoteID = "remote-2"
		return &created, nil
	}

	report, err := coordinator.SyncBacklog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Failed)

	storedFirst, err := store.GetExpenseByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, storedFirst.Synced)

	storedSecond, err := store.GetExpenseByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncConfirmed, storedSecond.Synced)
}

func TestSyncBacklogEmpty(t *testing.T) {
	coordinator, _, mock, _ := newTestCoordinator(t, true)

	report, err := coordinator.SyncBacklog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, mock.CreateCalls)
}

func TestRunSyncsOnReconnect(t *testing.T) {
	coordinator, store, _, source := newTestCoordinator(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exp, err := coordinator.Submit(ctx, coffeeInput())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- coordinator.Run(ctx)
	}()

	// Give Run a moment to subscribe, then bring the device online.
	time.Sleep(50 * time.Millisecond)
	source.Set(true)

	require.Eventually(t, func() bool {
		stored, getErr := store.GetExpenseByID(context.Background(), exp.ID)
		return getErr == nil && stored.Synced == model.SyncConfirmed
	}, 2*time.Second, 20*time.Millisecond, "reconnect must trigger a backlog pass")

	cancel()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIgnoresOfflineTransitions(t *testing.T) {
	coordinator, _, mock, source := newTestCoordinator(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- coordinator.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	source.Set(false)
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, mock.CreateCalls, "going offline must not trigger sync attempts")

	cancel()
	<-done
}
