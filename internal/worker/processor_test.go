package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/courierhq/courier/internal/domain"
	"github.com/courierhq/courier/internal/transport"
)

// scriptTransport отдаёт заранее заданные исходы по порядку вызовов.
// Когда сценарий короче числа вызовов, последний исход повторяется.
type scriptTransport struct {
	mu       sync.Mutex
	outcomes []transport.Outcome
	sent     []int64
	onSend   func(call int)
}

func (s *scriptTransport) Send(_ context.Context, req *domain.Request) transport.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := len(s.sent)
	s.sent = append(s.sent, req.ID)
	if s.onSend != nil {
		s.onSend(call)
	}

	if call >= len(s.outcomes) {
		call = len(s.outcomes) - 1
	}
	return s.outcomes[call]
}

func (s *scriptTransport) sentIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.sent...)
}

// panicTransport имитирует баг процессора.
type panicTransport struct{}

func (panicTransport) Send(context.Context, *domain.Request) transport.Outcome {
	panic("transport bug")
}

func httpOutcome(code int) transport.Outcome {
	body := `{"status":"noted"}`
	return transport.Outcome{
		Code:    code,
		Body:    &body,
		Headers: http.Header{"Content-Type": {"application/json"}},
		WallMs:  12.5,
		CPUMs:   1.25,
	}
}

func timedOutOutcome() transport.Outcome {
	return transport.Outcome{Code: domain.CodeTimedOut, WallMs: 5000}
}

func inconsistentOutcome() transport.Outcome {
	return transport.Outcome{Code: domain.CodeInconsistent, WallMs: 3.5}
}

func newTestWorker(t *testing.T, clk *fakeClock, store *memStore, tr transport.Transport, mutate func(*Config)) *Worker {
	t.Helper()

	cfg := Config{
		Store:     store,
		Logs:      store,
		Transport: tr,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.now = clk.Now
	return w
}

func TestCycleCompletesSuccessfulRequest(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://api.example.com/hook", Method: "POST"})

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	w := newTestWorker(t, clk, store, tr, nil)

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	req := store.get(1)
	if req.State != domain.StateCompleted {
		t.Fatalf("state = %s, want completed", req.State)
	}
	if req.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", req.RetryCount)
	}
	if req.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if req.LockedAt != nil {
		t.Error("locked_at not cleared")
	}
	if req.TimingsWallMs != 12.5 || req.TimingsCPUMs != 1.25 {
		t.Errorf("timings = (%v, %v), want (12.5, 1.25)", req.TimingsWallMs, req.TimingsCPUMs)
	}

	logs := store.logsFor(1)
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].ResponseCode != 200 {
		t.Errorf("log code = %d, want 200", logs[0].ResponseCode)
	}
	if logs[0].ResponseBody == nil || logs[0].ResponseHeaders == nil {
		t.Error("log body/headers missing for HTTP response")
	}
}

func TestCycleFailsOnClientError(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://api.example.com/hook", Method: "POST"})

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(404)}}
	w := newTestWorker(t, clk, store, tr, nil)

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	req := store.get(1)
	if req.State != domain.StateFailed {
		t.Fatalf("state = %s, want failed", req.State)
	}
	// Попытка состоялась и считается, хотя retry не будет.
	if req.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", req.RetryCount)
	}

	logs := store.logsFor(1)
	if len(logs) != 1 || logs[0].ResponseCode != 404 {
		t.Fatalf("logs = %+v, want single 404 entry", logs)
	}
}

func TestBackoffScheduleGrowsExponentially(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://api.example.com/hook", Method: "POST"})

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(503)}}
	w := newTestWorker(t, clk, store, tr, func(cfg *Config) {
		cfg.RetryBaseDelay = 5 * time.Second
	})

	wantDelays := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

	for attempt, want := range wantDelays {
		if err := w.cycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", attempt+1, err)
		}

		req := store.get(1)
		if req.State != domain.StateWaiting {
			t.Fatalf("after attempt %d: state = %s, want waiting", attempt+1, req.State)
		}
		if req.RetryCount != attempt+1 {
			t.Fatalf("after attempt %d: retry_count = %d", attempt+1, req.RetryCount)
		}
		if got := req.RetryAt.Sub(clk.Now()); got != want {
			t.Errorf("attempt %d: backoff = %v, want %v", attempt+1, got, want)
		}

		clk.Advance(want)
		if _, err := store.PromoteWaiting(context.Background()); err != nil {
			t.Fatalf("promote: %v", err)
		}
	}
}

// Лимит проверяется до попытки: при max_retries=2 строка проходит
// waiting(1) → waiting(2) → failed(2), без роста счётчика на последнем шаге.
func TestRetriesExhausted(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://api.example.com/hook", Method: "POST"})

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(503)}}
	w := newTestWorker(t, clk, store, tr, func(cfg *Config) {
		cfg.MaxRetries = 2
	})

	steps := []struct {
		state      domain.RequestState
		retryCount int
	}{
		{domain.StateWaiting, 1},
		{domain.StateWaiting, 2},
		{domain.StateFailed, 2},
	}

	for i, want := range steps {
		if err := w.cycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}

		req := store.get(1)
		if req.State != want.state || req.RetryCount != want.retryCount {
			t.Fatalf("after cycle %d: (%s, %d), want (%s, %d)",
				i+1, req.State, req.RetryCount, want.state, want.retryCount)
		}

		if want.state == domain.StateWaiting {
			clk.Advance(time.Hour)
			if _, err := store.PromoteWaiting(context.Background()); err != nil {
				t.Fatalf("promote: %v", err)
			}
		}
	}

	if logs := store.logsFor(1); len(logs) != 3 {
		t.Errorf("got %d logs, want 3 (one per attempt)", len(logs))
	}
}

func TestTimeoutOutcomeDefers(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://slow.example.com", Method: "GET"})

	tr := &scriptTransport{outcomes: []transport.Outcome{timedOutOutcome()}}
	w := newTestWorker(t, clk, store, tr, nil)

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	req := store.get(1)
	if req.State != domain.StateWaiting {
		t.Fatalf("state = %s, want waiting", req.State)
	}
	if req.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", req.RetryCount)
	}

	logs := store.logsFor(1)
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].ResponseCode != domain.CodeTimedOut {
		t.Errorf("log code = %d, want %d", logs[0].ResponseCode, domain.CodeTimedOut)
	}
	if logs[0].ResponseBody != nil || logs[0].ResponseHeaders != nil {
		t.Error("timeout log must have NULL body and headers")
	}
}

func TestInconsistentOutcome(t *testing.T) {
	tests := []struct {
		name              string
		retryInconsistent bool
		wantState         domain.RequestState
	}{
		{"fatal by default", false, domain.StateFailed},
		{"retryable when opted in", true, domain.StateWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newFakeClock()
			store := newMemStore(t, clk)
			store.add(domain.Request{
				ID:                1,
				URL:               "https://api.example.com/hook",
				Method:            "POST",
				RetryInconsistent: tt.retryInconsistent,
			})

			tr := &scriptTransport{outcomes: []transport.Outcome{inconsistentOutcome()}}
			w := newTestWorker(t, clk, store, tr, nil)

			if err := w.cycle(context.Background()); err != nil {
				t.Fatalf("cycle: %v", err)
			}

			req := store.get(1)
			if req.State != tt.wantState {
				t.Fatalf("state = %s, want %s", req.State, tt.wantState)
			}
			if req.RetryCount != 1 {
				t.Errorf("retry_count = %d, want 1", req.RetryCount)
			}

			logs := store.logsFor(1)
			if len(logs) != 1 || logs[0].ResponseCode != domain.CodeInconsistent {
				t.Fatalf("logs = %+v, want single %d entry", logs, domain.CodeInconsistent)
			}
		})
	}
}

func TestBatchProcessedInPriorityOrder(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, Priority: 5, URL: "https://a.example.com", Method: "GET"})
	store.add(domain.Request{ID: 2, Priority: 1, URL: "https://b.example.com", Method: "GET"})
	store.add(domain.Request{ID: 3, Priority: 1, URL: "https://c.example.com", Method: "GET"})

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	w := newTestWorker(t, clk, store, tr, nil)

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	want := []int64{2, 3, 1}
	got := tr.sentIDs()
	if len(got) != len(want) {
		t.Fatalf("sent = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent = %v, want %v", got, want)
		}
	}
}

func TestBatchSizeLimitsClaim(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	for id := int64(1); id <= 5; id++ {
		store.add(domain.Request{ID: id, URL: "https://api.example.com", Method: "GET"})
	}

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	w := newTestWorker(t, clk, store, tr, func(cfg *Config) {
		cfg.BatchSize = 2
	})

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if got := len(tr.sentIDs()); got != 2 {
		t.Fatalf("processed %d requests, want 2", got)
	}
	if req := store.get(3); req.State != domain.StateReady {
		t.Errorf("request 3 state = %s, want ready", req.State)
	}
}

func TestProcessorPanicPausesRequest(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://api.example.com", Method: "GET", RetryCount: 3})

	pause := 45 * time.Second
	w := newTestWorker(t, clk, store, panicTransport{}, func(cfg *Config) {
		cfg.PauseDelay = pause
	})

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	req := store.get(1)
	if req.State != domain.StateWaiting {
		t.Fatalf("state = %s, want waiting", req.State)
	}
	// Пауза — не попытка: счётчик не растёт.
	if req.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", req.RetryCount)
	}
	if got := req.RetryAt.Sub(clk.Now()); got != pause {
		t.Errorf("pause delay = %v, want %v", got, pause)
	}
	if req.LockedAt != nil {
		t.Error("locked_at not cleared after panic")
	}
	if logs := store.logsFor(1); len(logs) != 0 {
		t.Errorf("got %d logs, want 0", len(logs))
	}
}

func TestLogAppendFailurePausesRequest(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://api.example.com", Method: "GET"})
	store.logErr = errors.New("log table gone")

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	w := newTestWorker(t, clk, store, tr, nil)

	if err := w.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	req := store.get(1)
	if req.State != domain.StateWaiting {
		t.Fatalf("state = %s, want waiting", req.State)
	}
	if req.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", req.RetryCount)
	}
}

func TestCycleReturnsClaimError(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.claimErr = errors.New("deadlock retries exhausted")

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	w := newTestWorker(t, clk, store, tr, nil)

	if err := w.cycle(context.Background()); err == nil {
		t.Fatal("cycle must propagate claim error")
	}
}

func TestCyclePingsStoreWhenConfigured(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.pingErr = errors.New("connection reset")

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	w := newTestWorker(t, clk, store, tr, func(cfg *Config) {
		cfg.UseDBReconnect = true
	})

	if err := w.cycle(context.Background()); err == nil {
		t.Fatal("cycle must propagate ping error")
	}
}

// Сигнал остановки наблюдается только между циклами: оба запроса
// батча доводятся до терминального состояния, блокировки сняты.
func TestGracefulShutdownFinishesBatch(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	store.add(domain.Request{ID: 1, URL: "https://a.example.com", Method: "GET"})
	store.add(domain.Request{ID: 2, URL: "https://b.example.com", Method: "GET"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}
	tr.onSend = func(call int) {
		if call == 0 {
			cancel() // сигнал приходит посреди батча
		}
	}

	w := newTestWorker(t, clk, store, tr, func(cfg *Config) {
		cfg.TickInterval = time.Hour
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	for _, id := range []int64{1, 2} {
		req := store.get(id)
		if req.State != domain.StateCompleted {
			t.Errorf("request %d state = %s, want completed", id, req.State)
		}
		if req.LockedAt != nil {
			t.Errorf("request %d still locked", id)
		}
	}
}
