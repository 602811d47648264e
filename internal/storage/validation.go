package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/offlinefirst/snapledger/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context must not be nil")
	}
	return nil
}

func validateString(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	return nil
}

func validateExpenseInput(input model.ExpenseInput) error {
	if err := input.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("id must be positive, got %d", id)
	}
	return nil
}
