package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a hand-written Client for unit tests. SendErrs is consumed
// one entry per call (nil = success), so tests can script a failure followed
// by a success to exercise the retry path.
type MockClient struct {
	mu       sync.Mutex
	calls    []SendCall
	sendErrs []error

	// SignatureValid controls VerifySignature. Default true.
	SignatureValid bool
}

// SendCall records one Send invocation.
type SendCall struct {
	PhoneNumber string
	Body        string
}

func NewMockClient() *MockClient {
	return &MockClient{SignatureValid: true}
}

// ScriptErrors queues per-call outcomes: entry i is returned from call i
// (nil = success). Calls beyond the script succeed.
func (m *MockClient) ScriptErrors(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErrs = errs
}

func (m *MockClient) Send(_ context.Context, phoneNumber, body string) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.calls)
	m.calls = append(m.calls, SendCall{PhoneNumber: phoneNumber, Body: body})

	if idx < len(m.sendErrs) && m.sendErrs[idx] != nil {
		return nil, m.sendErrs[idx]
	}
	return &SendResult{
		ProviderMessageID: fmt.Sprintf("SM%08d", idx+1),
		Status:            "queued",
	}, nil
}

func (m *MockClient) VerifySignature(_ []byte, _ string) bool {
	return m.SignatureValid
}

// Calls returns a snapshot of all Send invocations.
func (m *MockClient) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Client = (*MockClient)(nil)
