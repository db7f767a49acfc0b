package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// MockLedger is a hand-written, in-memory Ledger used in unit tests.
// It enforces the same one-non-failed-row-per-key rule as the partial
// unique index, so idempotency races are observable without a database.
type MockLedger struct {
	mu      sync.Mutex
	records map[string]*domain.SendRecord

	// Optional error overrides, set in tests to simulate failure paths.
	InsertErr error
	HasErr    error
}

func NewMockLedger() *MockLedger {
	return &MockLedger{records: make(map[string]*domain.SendRecord)}
}

func (m *MockLedger) InsertQueued(_ context.Context, userID string, mt domain.MessageType, localDay string) (*domain.SendRecord, bool, error) {
	if m.InsertErr != nil {
		return nil, false, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findNonFailed(userID, mt, localDay); existing != nil {
		clone := *existing
		return &clone, false, nil
	}

	now := time.Now().UTC()
	rec := &domain.SendRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		MessageType: mt,
		LocalDay:    localDay,
		Status:      domain.SendQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.records[rec.ID] = rec
	clone := *rec
	return &clone, true, nil
}

func (m *MockLedger) HasNonFailed(_ context.Context, userID string, mt domain.MessageType, localDay string) (bool, error) {
	if m.HasErr != nil {
		return false, m.HasErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findNonFailed(userID, mt, localDay) != nil, nil
}

func (m *MockLedger) MarkSent(_ context.Context, id, providerMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = domain.SendSent
	rec.ProviderMessageID = &providerMessageID
	rec.ErrorDetail = nil
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockLedger) MarkFailed(_ context.Context, id, errDetail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = domain.SendFailed
	rec.ErrorDetail = &errDetail
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockLedger) UpdateStatusByProviderID(_ context.Context, providerMessageID string, status domain.SendStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ProviderMessageID != nil && *rec.ProviderMessageID == providerMessageID {
			if statusRank(status) <= statusRank(rec.Status) {
				// Stale callback; never move the record backwards.
				return nil
			}
			rec.Status = status
			rec.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockLedger) GetByID(_ context.Context, id string) (*domain.SendRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

// Records returns a snapshot of all rows, for test assertions.
func (m *MockLedger) Records() []*domain.SendRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.SendRecord, 0, len(m.records))
	for _, rec := range m.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out
}

func (m *MockLedger) findNonFailed(userID string, mt domain.MessageType, localDay string) *domain.SendRecord {
	for _, rec := range m.records {
		if rec.UserID == userID && rec.MessageType == mt && rec.LocalDay == localDay && rec.Status != domain.SendFailed {
			return rec
		}
	}
	return nil
}
