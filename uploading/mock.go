package uploading

import (
	"context"
	"sync"
	"time"
)

// SendCall records one transport invocation for assertions.
type SendCall struct {
	ChatID   int64
	FilePath string
	Meta     VideoMeta
}

// MockTransport is a Transport test double. It records calls, can be told
// to fail, and instruments concurrent use so tests can verify the queue's
// single-flight invariant.
type MockTransport struct {
	mu          sync.Mutex
	calls       []SendCall
	failWith    error
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

// NewMockTransport creates a new mock transport that succeeds by default.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// FailWith makes subsequent sends return err; pass nil to succeed again.
func (m *MockTransport) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetDelay makes each send take at least d, widening the window in which
// concurrent sends would overlap.
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SendVideo implements Transport.
func (m *MockTransport) SendVideo(ctx context.Context, chatID int64, filePath string, meta VideoMeta) error {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	if m.failWith != nil {
		return m.failWith
	}

	m.calls = append(m.calls, SendCall{ChatID: chatID, FilePath: filePath, Meta: meta})
	return nil
}

// Calls returns a copy of the recorded successful sends.
func (m *MockTransport) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]SendCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// MaxInFlight returns the largest number of sends that were ever in flight
// at the same time.
func (m *MockTransport) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}
