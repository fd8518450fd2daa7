package shipping

import (
	"context"
	"sync"
)

// Mock implements Calculator for testing.
// CalculateFunc, when set, decides the outcome; otherwise a single flat-rate
// method is returned.
type Mock struct {
	CalculateFunc func(ctx context.Context, req Request) (*Result, error)

	mu    sync.Mutex
	calls []Request
}

// Calculate records the request and delegates to CalculateFunc.
func (m *Mock) Calculate(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.CalculateFunc != nil {
		return m.CalculateFunc(ctx, req)
	}
	return &Result{
		Success: true,
		AvailableMethods: []Method{
			{ID: "flat_rate:1", Label: "Flat Rate", Cost: 25, Total: 25},
		},
		RestrictedProducts: []RestrictedProduct{},
		MinimumOrderMet:    true,
	}, nil
}

// Calls returns the requests seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

var _ Calculator = (*Mock)(nil)
