package speech

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
)

// Mock is a Sink that records every delivery. DeliverFunc, when set, decides
// the outcome of each call.
type Mock struct {
	DeliverFunc func(ctx context.Context, text string, lang announce.Language) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one Deliver invocation.
type MockCall struct {
	Text     string
	Language announce.Language
	Time     time.Time
}

// NewMock creates a Mock that accepts every delivery.
func NewMock() *Mock {
	return &Mock{}
}

// Deliver records the call and runs DeliverFunc.
func (m *Mock) Deliver(ctx context.Context, text string, lang announce.Language) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, Language: lang, Time: time.Now()})
	fn := m.DeliverFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, lang)
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Texts returns the delivered texts in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Text
	}
	return out
}

// CallCount returns the number of deliveries.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Sink = (*Mock)(nil)
