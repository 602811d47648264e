package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/model"
)

// AddExpense inserts a new expense record.
//
// The store owns the identifier, the sync flag and the creation timestamp:
// every inserted record starts pending no matter what the caller supplied,
// because a record is pending until proven synced. The insert is a single
// transaction; on failure no partial row is visible.
func (s *SQLiteStore) AddExpense(ctx context.Context, input model.ExpenseInput) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateExpenseInput(input); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = model.DefaultCategory
	}

	token := strings.TrimSpace(input.ClientToken)
	if token == "" {
		token = uuid.New().String()
	}

	createdAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", common.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (client_token, description, amount, date, category, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, token, input.Description, input.Amount, input.Date, category, model.SyncPending, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to insert expense: %v", common.ErrStorageUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read inserted id: %v", common.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit insert: %v", common.ErrStorageUnavailable, err)
	}

	return &model.Expense{
		ID:          id,
		ClientToken: token,
		Description: input.Description,
		Amount:      input.Amount,
		Date:        input.Date,
		Category:    category,
		Synced:      model.SyncPending,
		CreatedAt:   createdAt,
	}, nil
}

// GetAllExpenses returns every expense record. The store makes no ordering
// promise; the CLI sorts by date for display.
func (s *SQLiteStore) GetAllExpenses(ctx context.Context) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryExpenses(ctx, s.db, `
		SELECT id, client_token, description, amount, date, category, synced, created_at
		FROM expenses
	`)
}

// GetUnsyncedExpenses returns the records still awaiting remote confirmation,
// served by the synced index.
func (s *SQLiteStore) GetUnsyncedExpenses(ctx context.Context) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryExpenses(ctx, s.db, `
		SELECT id, client_token, description, amount, date, category, synced, created_at
		FROM expenses
		WHERE synced = ?
	`, model.SyncPending)
}

// GetExpenseByID retrieves a single expense record.
func (s *SQLiteStore) GetExpenseByID(ctx context.Context, id int64) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	var exp model.Expense
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_token, description, amount, date, category, synced, created_at
		FROM expenses
		WHERE id = ?
	`, id).Scan(
		&exp.ID,
		&exp.ClientToken,
		&exp.Description,
		&exp.Amount,
		&exp.Date,
		&exp.Category,
		&exp.Synced,
		&exp.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return &exp, nil
}

// MarkSynced flips a record's sync flag to confirmed. It is idempotent:
// marking an already-confirmed record changes nothing. An unknown id is
// logged rather than propagated, since the record may have been removed by
// a process outside this subsystem.
func (s *SQLiteStore) MarkSynced(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", common.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE expenses SET synced = ? WHERE id = ?
	`, model.SyncConfirmed, id)
	if err != nil {
		return fmt.Errorf("%w: failed to mark expense synced: %v", common.ErrStorageUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM expenses WHERE id = ?)`, id).Scan(&exists); scanErr == nil && !exists {
			slog.Warn("MarkSynced called for unknown expense", "id", id)
		}
	}

	return tx.Commit()
}

// CountExpenses returns the total number of records and how many are pending.
func (s *SQLiteStore) CountExpenses(ctx context.Context) (total, pending int, err error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0)
		FROM expenses
	`).Scan(&total, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	return total, pending, nil
}

func (s *SQLiteStore) queryExpenses(ctx context.Context, q queryable, query string, args ...any) ([]model.Expense, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []model.Expense
	for rows.Next() {
		var exp model.Expense
		if err := rows.Scan(
			&exp.ID,
			&exp.ClientToken,
			&exp.Description,
			&exp.Amount,
			&exp.Date,
			&exp.Category,
			&exp.Synced,
			&exp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
	}

	return expenses, rows.Err()
}
