package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// MockStore is a hand-written, in-memory Store for unit tests. It applies
// the same live-job uniqueness rule as the partial index on the jobs table.
type MockStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	// Optional error overrides.
	InsertErr error
	ClaimErr  error
}

func NewMockStore() *MockStore {
	return &MockStore{jobs: make(map[string]*domain.Job)}
}

func (m *MockStore) Insert(_ context.Context, job *domain.Job) (bool, error) {
	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.UserID == job.UserID && j.MessageType == job.MessageType && j.LocalDay == job.LocalDay &&
			(j.Status == domain.JobPending || j.Status == domain.JobLeased) {
			return false, nil
		}
	}
	clone := *job
	m.jobs[job.ID] = &clone
	return true, nil
}

func (m *MockStore) ClaimDue(_ context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]*domain.Job, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.Job
	for _, j := range m.jobs {
		pendingDue := j.Status == domain.JobPending && !j.RunAt.After(now)
		leaseLapsed := j.Status == domain.JobLeased && j.LeaseExpiresAt != nil && !j.LeaseExpiresAt.After(now)
		if pendingDue || leaseLapsed {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].RunAt.Before(due[k].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.Job, 0, len(due))
	for _, j := range due {
		expiry := now.Add(leaseTTL)
		j.Status = domain.JobLeased
		j.LeaseExpiresAt = &expiry
		j.UpdatedAt = now
		clone := *j
		claimed = append(claimed, &clone)
	}
	return claimed, nil
}

func (m *MockStore) Release(_ context.Context, jobID string) error {
	return m.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobPending
		j.LeaseExpiresAt = nil
	})
}

func (m *MockStore) Complete(_ context.Context, jobID string) error {
	return m.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobDone
		j.LeaseExpiresAt = nil
	})
}

func (m *MockStore) RetryAt(_ context.Context, jobID string, attempt int, runAt time.Time, errDetail string) error {
	return m.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobPending
		j.Attempt = attempt
		j.RunAt = runAt
		j.ErrorDetail = &errDetail
		j.LeaseExpiresAt = nil
	})
}

func (m *MockStore) Reschedule(_ context.Context, jobID string, runAt time.Time) error {
	return m.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobPending
		j.RunAt = runAt
		j.LeaseExpiresAt = nil
	})
}

func (m *MockStore) MarkDead(_ context.Context, jobID, errDetail string) error {
	return m.update(jobID, func(j *domain.Job) {
		j.Status = domain.JobDead
		j.ErrorDetail = &errDetail
		j.LeaseExpiresAt = nil
	})
}

func (m *MockStore) Sweep(_ context.Context, doneBefore, deadBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, j := range m.jobs {
		if (j.Status == domain.JobDone && j.UpdatedAt.Before(doneBefore)) ||
			(j.Status == domain.JobDead && j.UpdatedAt.Before(deadBefore)) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MockStore) CountActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, j := range m.jobs {
		if j.Status == domain.JobPending || j.Status == domain.JobLeased {
			count++
		}
	}
	return count, nil
}

// Get returns a snapshot of one job, for test assertions.
func (m *MockStore) Get(jobID string) (*domain.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	clone := *j
	return &clone, true
}

func (m *MockStore) update(jobID string, fn func(*domain.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(j)
	j.UpdatedAt = time.Now().UTC()
	return nil
}
