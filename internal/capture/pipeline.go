// Package capture turns a photographed receipt into a structured field
// suggestion: local optical text extraction first, then remote semantic
// parsing of the extracted text. The pipeline never submits anything; the
// caller confirms or edits the suggestion before it reaches the store.
package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/model"
	"github.com/offlinefirst/snapledger/internal/service"
)

// State identifies where a capture currently is.
type State int

// Pipeline states.
const (
	StateIdle State = iota
	StateExtracting
	StateInterpreting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateInterpreting:
		return "interpreting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MinTextLength is the shortest extracted text worth forwarding to the
// remote parser. Anything shorter fails fast instead of wasting the call.
const MinTextLength = 10

// TextResult is the outcome of local optical extraction.
type TextResult struct {
	Text       string
	Confidence float64
}

// Extractor performs the local optical text-recognition step. Progress is
// reported as a fraction in [0,1] and must be monotonically non-decreasing
// within one invocation.
type Extractor interface {
	ExtractText(ctx context.Context, path string, progress func(float64)) (TextResult, error)
}

// ProgressFunc receives overall pipeline progress: extraction maps onto
// 0–0.5, interpretation onto 0.6–1.0.
type ProgressFunc func(float64)

// Pipeline chains local extraction and remote parsing. Starting a new
// capture supersedes any capture still in flight on the same pipeline, so
// two suggestions can never race to populate the same form.
type Pipeline struct {
	extractor Extractor
	gateway   service.Gateway

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	state  State
}

// New creates a capture pipeline.
func New(extractor Extractor, gateway service.Gateway) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		gateway:   gateway,
		state:     StateIdle,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Capture runs the full two-stage flow for the image at path.
//
// A capture started while another is in flight cancels the older one; the
// superseded call returns context.Canceled and never delivers a result.
func (p *Pipeline) Capture(ctx context.Context, path string, progress ProgressFunc) (*model.Suggestion, error) {
	runCtx, cancel, gen := p.begin(ctx)
	defer p.finish(gen, cancel)

	report := monotonic(progress)

	// Stage one: local optical extraction, 0–0.5 of overall progress.
	p.setState(gen, StateExtracting)
	report(0)

	result, err := p.extractor.ExtractText(runCtx, path, func(frac float64) {
		report(frac * 0.5)
	})
	if err != nil {
		p.setState(gen, StateFailed)
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if len([]rune(text)) < MinTextLength {
		p.setState(gen, StateFailed)
		return nil, fmt.Errorf("%w: got %d characters", common.ErrInsufficientText, len([]rune(text)))
	}

	// Stage two: remote semantic parsing, 0.6–1.0.
	p.setState(gen, StateInterpreting)
	report(0.6)

	suggestion, err := p.gateway.ParseText(runCtx, text)
	if err != nil {
		p.setState(gen, StateFailed)
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		return nil, fmt.Errorf("text interpretation failed: %w", err)
	}

	if suggestion == nil || suggestion.Empty() {
		p.setState(gen, StateFailed)
		return nil, common.ErrMalformedSuggestion
	}

	p.setState(gen, StateReady)
	report(1)

	return suggestion, nil
}

// begin cancels any in-flight capture and installs this one as current.
func (p *Pipeline) begin(ctx context.Context) (context.Context, context.CancelFunc, uint64) {
	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.gen++
	return runCtx, cancel, p.gen
}

// finish releases the capture slot, unless a newer capture took it over.
func (p *Pipeline) finish(gen uint64, cancel context.CancelFunc) {
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen == gen {
		p.cancel = nil
	}
}

// setState records the state of the capture identified by gen; a superseded
// capture no longer owns the pipeline state and its updates are dropped.
func (p *Pipeline) setState(gen uint64, s State) {
	p.mu.Lock()
	if p.gen == gen {
		p.state = s
	}
	p.mu.Unlock()
}

// monotonic wraps a progress callback so reported fractions never decrease
// within one invocation.
func monotonic(progress ProgressFunc) func(float64) {
	if progress == nil {
		return func(float64) {}
	}
	var mu sync.Mutex
	high := 0.0
	return func(frac float64) {
		mu.Lock()
		defer mu.Unlock()
		if frac < high {
			frac = high
		}
		if frac > 1 {
			frac = 1
		}
		high = frac
		progress(frac)
	}
}
