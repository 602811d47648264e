package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/gateway"
	"github.com/offlinefirst/snapledger/internal/model"
)

// fakeExtractor returns canned text, optionally blocking until its context
// is canceled to simulate a slow optical pass.
type fakeExtractor struct {
	text    string
	err     error
	block   bool
	started chan struct{}
}

func (f *fakeExtractor) ExtractText(ctx context.Context, _ string, progress func(float64)) (TextResult, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return TextResult{}, ctx.Err()
	}
	if f.err != nil {
		return TextResult{}, f.err
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	return TextResult{Text: f.text, Confidence: 0.9}, nil
}

// extractorFunc adapts a function to the Extractor interface.
type extractorFunc func(ctx context.Context, path string, progress func(float64)) (TextResult, error)

func (f extractorFunc) ExtractText(ctx context.Context, path string, progress func(float64)) (TextResult, error) {
	return f(ctx, path, progress)
}

func receiptSuggestion() *model.Suggestion {
	return &model.Suggestion{
		Description: "Grocery Mart",
		Amount:      23.10,
		Date:        "2024-03-01",
		Category:    "Food",
	}
}

func TestCaptureHappyPath(t *testing.T) {
	mock := gateway.NewMockGateway()
	mock.ParseTextFn = func(context.Context, string) (*model.Suggestion, error) {
		return receiptSuggestion(), nil
	}

	pipeline := New(&fakeExtractor{text: "GROCERY MART  TOTAL 23.10"}, mock)

	suggestion, err := pipeline.Capture(context.Background(), "receipt.jpg", nil)
	require.NoError(t, err)
	require.NotNil(t, suggestion)
	assert.Equal(t, "Grocery Mart", suggestion.Description)
	assert.Equal(t, StateReady, pipeline.State())

	require.Len(t, mock.ParseTextCalls, 1)
	assert.Equal(t, "GROCERY MART  TOTAL 23.10", mock.ParseTextCalls[0])
}

func TestCaptureInsufficientTextSkipsRemoteCall(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "   \n\t  "},
		{name: "below threshold", text: "TOTAL 12"},
		{name: "padding does not count", text: "  short  \n\n   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := gateway.NewMockGateway()
			pipeline := New(&fakeExtractor{text: tt.text}, mock)

			_, err := pipeline.Capture(context.Background(), "receipt.jpg", nil)
			require.ErrorIs(t, err, common.ErrInsufficientText)
			assert.Equal(t, StateFailed, pipeline.State())
			assert.Empty(t, mock.ParseTextCalls,
				"unusable text must never reach the remote parser")
		})
	}
}

func TestCaptureExtractionFailure(t *testing.T) {
	mock := gateway.NewMockGateway()
	pipeline := New(&fakeExtractor{err: errors.New("unreadable image")}, mock)

	_, err := pipeline.Capture(context.Background(), "receipt.jpg", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text extraction failed")
	assert.Equal(t, StateFailed, pipeline.State())
	assert.Empty(t, mock.ParseTextCalls)
}

func TestCaptureMalformedSuggestion(t *testing.T) {
	tests := []struct {
		suggestion *model.Suggestion
		name       string
	}{
		{name: "nil suggestion", suggestion: nil},
		{name: "empty suggestion", suggestion: &model.Suggestion{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := gateway.NewMockGateway()
			mock.ParseTextFn = func(context.Context, string) (*model.Suggestion, error) {
				return tt.suggestion, nil
			}
			pipeline := New(&fakeExtractor{text: "GROCERY MART TOTAL 23.10"}, mock)

			_, err := pipeline.Capture(context.Background(), "receipt.jpg", nil)
			require.ErrorIs(t, err, common.ErrMalformedSuggestion)
			assert.Equal(t, StateFailed, pipeline.State())
		})
	}
}

func TestCaptureInterpretationFailure(t *testing.T) {
	mock := gateway.NewMockGateway()
	mock.ParseTextFn = func(context.Context, string) (*model.Suggestion, error) {
		return nil, common.NewGatewayError("parse-text", 502, errors.New("bad gateway"))
	}
	pipeline := New(&fakeExtractor{text: "GROCERY MART TOTAL 23.10"}, mock)

	_, err := pipeline.Capture(context.Background(), "receipt.jpg", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text interpretation failed")
	assert.Equal(t, StateFailed, pipeline.State())
}

func TestCaptureProgressIsMonotonic(t *testing.T) {
	mock := gateway.NewMockGateway()
	mock.ParseTextFn = func(context.Context, string) (*model.Suggestion, error) {
		return receiptSuggestion(), nil
	}
	pipeline := New(&fakeExtractor{text: "GROCERY MART TOTAL 23.10"}, mock)

	var mu sync.Mutex
	var seen []float64
	_, err := pipeline.Capture(context.Background(), "receipt.jpg", func(frac float64) {
		mu.Lock()
		seen = append(seen, frac)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1],
			"progress must never move backwards")
	}
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestCaptureSupersession(t *testing.T) {
	mock := gateway.NewMockGateway()
	mock.ParseTextFn = func(context.Context, string) (*model.Suggestion, error) {
		return receiptSuggestion(), nil
	}

	started := make(chan struct{})
	extractor := extractorFunc(func(ctx context.Context, path string, _ func(float64)) (TextResult, error) {
		if path == "first.jpg" {
			close(started)
			<-ctx.Done()
			return TextResult{}, ctx.Err()
		}
		return TextResult{Text: "GROCERY MART TOTAL 23.10", Confidence: 0.9}, nil
	})
	pipeline := New(extractor, mock)

	firstDone := make(chan error, 1)
	go func() {
		_, err := pipeline.Capture(context.Background(), "first.jpg", nil)
		firstDone <- err
	}()

	// Wait until the first capture is inside extraction, then supersede it.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first capture never started")
	}

	suggestion, err := pipeline.Capture(context.Background(), "second.jpg", nil)
	require.NoError(t, err)
	require.NotNil(t, suggestion)

	select {
	case firstErr := <-firstDone:
		require.ErrorIs(t, firstErr, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded capture never returned")
	}

	// The winning capture owns the final state.
	assert.Equal(t, StateReady, pipeline.State())
}

func TestCaptureCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	pipeline := New(&fakeExtractor{block: true, started: started}, gateway.NewMockGateway())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Capture(ctx, "receipt.jpg", nil)
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not honor cancellation")
	}
	assert.Equal(t, StateFailed, pipeline.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "extracting", StateExtracting.String())
	assert.Equal(t, "interpreting", StateInterpreting.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(99)", State(99).String())
}
