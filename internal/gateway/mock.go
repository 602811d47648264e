package gateway

import (
	"context"
	"io"

	"github.com/offlinefirst/snapledger/internal/model"
	"github.com/offlinefirst/snapledger/internal/service"
)

// MockGateway is a mock implementation of service.Gateway for testing.
type MockGateway struct {
	// Functions that can be set by tests to control behavior
	ListExpensesFn  func(ctx context.Context) ([]model.Expense, error)
	CreateExpenseFn func(ctx context.Context, exp model.Expense) (*model.Expense, error)
	ScanImageFn     func(ctx context.Context, image io.Reader, filename string) (*model.Suggestion, error)
	ParseTextFn     func(ctx context.Context, text string) (*model.Suggestion, error)

	// Call tracking
	CreateCalls    []model.Expense
	ParseTextCalls []string
	ListCalls      int
	ScanCalls      int
}

// NewMockGateway creates a new mock gateway client.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		CreateCalls:    []model.Expense{},
		ParseTextCalls: []string{},
	}
}

// ListExpenses implements service.Gateway.
func (m *MockGateway) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	m.ListCalls++

	if m.ListExpensesFn != nil {
		return m.ListExpensesFn(ctx)
	}
	return []model.Expense{}, nil
}

// CreateExpense implements service.Gateway.
func (m *MockGateway) CreateExpense(ctx context.Context, exp model.Expense) (*model.Expense, error) {
	m.CreateCalls = append(m.CreateCalls, exp)

	if m.CreateExpenseFn != nil {
		return m.CreateExpenseFn(ctx, exp)
	}

	// Default behavior: echo the record back with a remote identifier
	created := exp
	created.RemoteID = "remote-1"
	return &created, nil
}

// ScanImage implements service.Gateway.
func (m *MockGateway) ScanImage(ctx context.Context, image io.Reader, filename string) (*model.Suggestion, error) {
	m.ScanCalls++

	if m.ScanImageFn != nil {
		return m.ScanImageFn(ctx, image, filename)
	}
	return &model.Suggestion{}, nil
}

// ParseText implements service.Gateway.
func (m *MockGateway) ParseText(ctx context.Context, text string) (*model.Suggestion, error) {
	m.ParseTextCalls = append(m.ParseTextCalls, text)

	if m.ParseTextFn != nil {
		return m.ParseTextFn(ctx, text)
	}
	return &model.Suggestion{}, nil
}

// Reset clears all call tracking.
func (m *MockGateway) Reset() {
	m.CreateCalls = []model.Expense{}
	m.ParseTextCalls = []string{}
	m.ListCalls = 0
	m.ScanCalls = 0
}

// Ensure MockGateway implements the gateway contract.
var _ service.Gateway = (*MockGateway)(nil)
