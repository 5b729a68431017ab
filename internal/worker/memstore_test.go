package worker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/courierhq/courier/internal/domain"
)

// fakeClock — управляемые часы для детерминированных тестов.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore — in-memory реализация Store и LogStore.
//
// После каждой мутации проверяет инварианты хранилища:
// pending⇔locked, waiting⇔retry_at, поглощающие терминальные
// состояния и неубывающий retry_count.
type memStore struct {
	mu   sync.Mutex
	t    *testing.T
	now  func() time.Time
	reqs map[int64]*domain.Request
	logs []domain.RequestLog

	pingErr  error
	claimErr error
	logErr   error
}

func newMemStore(t *testing.T, clk *fakeClock) *memStore {
	t.Helper()
	return &memStore{
		t:    t,
		now:  clk.Now,
		reqs: make(map[int64]*domain.Request),
	}
}

func (s *memStore) add(req domain.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.State == "" {
		req.State = domain.StateReady
	}
	if req.RetryFactor == 0 {
		req.RetryFactor = domain.DefaultRetryFactor
	}
	req.StateChangedAt = s.now()
	req.CreatedAt = s.now()
	s.reqs[req.ID] = &req
}

func (s *memStore) get(id int64) domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reqs[id]
}

func (s *memStore) logsFor(id int64) []domain.RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RequestLog
	for _, l := range s.logs {
		if l.RequestID == id {
			out = append(out, l)
		}
	}
	return out
}

func (s *memStore) Ping(context.Context) error {
	return s.pingErr
}

func (s *memStore) ClaimReadyBatch(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}

	var ready []*domain.Request
	for _, req := range s.reqs {
		if req.State == domain.StateReady && req.LockedAt == nil {
			ready = append(ready, req)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].ID < ready[j].ID
	})

	if len(ready) > limit {
		ready = ready[:limit]
	}

	ids := make([]int64, 0, len(ready))
	for _, req := range ready {
		req.MarkPending(s.now())
		ids = append(ids, req.ID)
	}
	s.checkInvariantsLocked()
	return ids, nil
}

func (s *memStore) Load(_ context.Context, ids []int64) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Request, 0, len(ids))
	for _, id := range ids {
		if req, ok := s.reqs[id]; ok {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) Complete(_ context.Context, id int64, info domain.AttemptInfo) error {
	return s.transition(id, func(req *domain.Request) {
		req.MarkCompleted(s.now(), info)
	})
}

func (s *memStore) Fail(_ context.Context, id int64, info domain.AttemptInfo) error {
	return s.transition(id, func(req *domain.Request) {
		req.MarkFailed(s.now(), info)
	})
}

func (s *memStore) Defer(_ context.Context, id int64, retryAt time.Time, info domain.AttemptInfo) error {
	return s.transition(id, func(req *domain.Request) {
		req.MarkWaiting(s.now(), retryAt, info)
	})
}

func (s *memStore) Unlock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.reqs[id]; ok {
		req.Unlock()
	}
	s.checkInvariantsLocked()
	return nil
}

func (s *memStore) PromoteWaiting(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var promoted int64
	for _, req := range s.reqs {
		if req.State == domain.StateWaiting && req.RetryAt != nil && !req.RetryAt.After(now) {
			req.MarkReady(now)
			promoted++
		}
	}
	s.checkInvariantsLocked()
	return promoted, nil
}

func (s *memStore) Append(_ context.Context, log *domain.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logErr != nil {
		return s.logErr
	}
	log.ID = int64(len(s.logs) + 1)
	log.CreatedAt = s.now()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *memStore) transition(id int64, apply func(*domain.Request)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.reqs[id]
	if !ok {
		s.t.Fatalf("transition on unknown request %d", id)
	}
	if req.State.IsTerminal() {
		s.t.Errorf("transition out of terminal state %s for request %d", req.State, id)
		return nil
	}

	prevRetries := req.RetryCount
	apply(req)
	if req.RetryCount < prevRetries {
		s.t.Errorf("retry_count decreased for request %d: %d → %d", id, prevRetries, req.RetryCount)
	}
	s.checkInvariantsLocked()
	return nil
}

func (s *memStore) checkInvariantsLocked() {
	s.t.Helper()
	for _, req := range s.reqs {
		locked := req.LockedAt != nil
		if locked != (req.State == domain.StatePending) {
			s.t.Errorf("request %d: locked_at=%v but state=%s", req.ID, locked, req.State)
		}
		waiting := req.RetryAt != nil
		if waiting != (req.State == domain.StateWaiting) {
			s.t.Errorf("request %d: retry_at=%v but state=%s", req.ID, waiting, req.State)
		}
	}
}
