package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/config"
	"github.com/offlinefirst/snapledger/internal/connectivity"
	"github.com/offlinefirst/snapledger/internal/gateway"
	"github.com/offlinefirst/snapledger/internal/model"
	"github.com/offlinefirst/snapledger/internal/service"
	"github.com/offlinefirst/snapledger/internal/storage"
	"github.com/offlinefirst/snapledger/internal/syncer"
)

// openStore opens and migrates the local ledger database.
func openStore(ctx context.Context) (*storage.SQLiteStore, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, common.NewUserError("could not open the local ledger", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("could not migrate the local ledger", err)
	}

	return store, nil
}

// newGateway builds the backend client from configuration.
func newGateway() (*gateway.Client, error) {
	backendURL := viper.GetString("backend.url")
	if backendURL == "" {
		return nil, fmt.Errorf("%w: backend.url is not set (flag --backend-url, env SNAPLEDGER_BACKEND_URL)", common.ErrMissingConfig)
	}
	return gateway.NewClient(backendURL)
}

// newConnectivity builds the connectivity source. The --offline override
// pins the device offline; otherwise a probing monitor is returned with a
// fresh initial reading.
func newConnectivity(ctx context.Context) (service.Source, error) {
	if viper.GetBool("offline") {
		return connectivity.NewStatic(false), nil
	}

	backendURL := viper.GetString("backend.url")
	if backendURL == "" {
		// No backend configured means nothing to sync against; behave as
		// offline rather than failing local-only commands.
		return connectivity.NewStatic(false), nil
	}

	monitor, err := connectivity.NewMonitor(backendURL, 15*time.Second)
	if err != nil {
		return nil, err
	}
	monitor.Refresh(ctx)
	return monitor, nil
}

// newCoordinator wires the full submit/sync stack.
func newCoordinator(ctx context.Context) (*syncer.Coordinator, *storage.SQLiteStore, service.Source, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	source, err := newConnectivity(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	var gw service.Gateway
	client, err := newGateway()
	if err != nil {
		// Local-only usage is fine until a sync is actually requested;
		// substitute a gateway that reports the missing configuration.
		gw = unconfiguredGateway{err: err}
	} else {
		gw = client
	}

	return syncer.New(store, gw, source), store, source, nil
}

// unconfiguredGateway stands in when no backend URL is configured. With no
// backend the connectivity source reports offline, so these methods are
// only reached by an explicit sync request, which should see the real
// configuration error.
type unconfiguredGateway struct {
	err error
}

func (g unconfiguredGateway) ListExpenses(context.Context) ([]model.Expense, error) {
	return nil, g.err
}

func (g unconfiguredGateway) CreateExpense(context.Context, model.Expense) (*model.Expense, error) {
	return nil, g.err
}

func (g unconfiguredGateway) ScanImage(context.Context, io.Reader, string) (*model.Suggestion, error) {
	return nil, g.err
}

func (g unconfiguredGateway) ParseText(context.Context, string) (*model.Suggestion, error) {
	return nil, g.err
}
