package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a mock classifier for testing
type MockClient struct {
	mu      sync.Mutex
	verdict *Verdict
	label   string
	err     error
	delay   time.Duration
	fn      func(Request) (*Verdict, error)
	calls   []Request
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithVerdict sets a fixed verdict to return
func WithVerdict(v *Verdict) MockOption {
	return func(m *MockClient) {
		m.verdict = v
	}
}

// WithLabel labels every field of every requested step with label
func WithLabel(label string) MockOption {
	return func(m *MockClient) {
		m.label = label
	}
}

// WithError sets an error to return from Classify
func WithError(err error) MockOption {
	return func(m *MockClient) {
		m.err = err
	}
}

// WithDelay makes Classify wait before answering, or until ctx is done
func WithDelay(d time.Duration) MockOption {
	return func(m *MockClient) {
		m.delay = d
	}
}

// WithFunc answers with fn
func WithFunc(fn func(Request) (*Verdict, error)) MockOption {
	return func(m *MockClient) {
		m.fn = fn
	}
}

// NewMockClient creates a mock classifier that labels everything EXACT
// unless configured otherwise.
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{label: "EXACT"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classify records req and returns the configured answer
func (m *MockClient) Classify(ctx context.Context, req Request) (*Verdict, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay, err, fn, verdict, label := m.delay, m.err, m.fn, m.verdict, m.label
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}

	switch {
	case err != nil:
		return nil, err
	case fn != nil:
		return fn(req)
	case verdict != nil:
		return verdict, nil
	}
	return UniformVerdict(req, label), nil
}

// Calls returns the number of Classify calls
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, if any
func (m *MockClient) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Request{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// UniformVerdict labels every field of req with label
func UniformVerdict(req Request, label string) *Verdict {
	v := &Verdict{GlobalFeedback: "Mock feedback"}
	for _, p := range req.Steps {
		v.Steps = append(v.Steps, StepVerdict{
			Step:       FlexInt(p.Step),
			Ingredient: label,
			Technique:  label,
			Tool:       label,
			Feedback:   fmt.Sprintf("Step %d: %s", p.Step, label),
		})
	}
	return v
}
