package userstore

import (
	"context"
	"sync"
	"time"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// MockUserStore is a hand-written, in-memory UserStore for unit tests.
type MockUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User

	// TaskCounts maps userID -> pending task count returned for any window.
	TaskCounts map[string]int

	// Optional error overrides.
	ListErr  error
	GetErr   error
	CountErr error
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		users:      make(map[string]*domain.User),
		TaskCounts: make(map[string]int),
	}
}

// Put adds or replaces a user.
func (m *MockUserStore) Put(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	m.users[u.ID] = &clone
}

func (m *MockUserStore) ListEligible(_ context.Context) ([]*domain.User, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		if u.IsActive && u.SMSOptIn && u.PhoneNumber != nil {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MockUserStore) SetOptInByPhone(_ context.Context, phoneNumber string, optIn bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneNumber != nil && *u.PhoneNumber == phoneNumber {
			u.SMSOptIn = optIn
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockUserStore) PendingTaskCount(_ context.Context, userID string, _, _ time.Time) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TaskCounts[userID], nil
}
