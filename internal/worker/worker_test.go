package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courierhq/courier/internal/domain"
	"github.com/courierhq/courier/internal/transport"
)

func TestNewDefaults(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)

	w, err := New(Config{
		Store:     store,
		Logs:      store,
		Transport: &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if w.batchSize != defaultBatchSize {
		t.Errorf("batchSize = %d, want %d", w.batchSize, defaultBatchSize)
	}
	if w.tickInterval != defaultTickInterval {
		t.Errorf("tickInterval = %v, want %v", w.tickInterval, defaultTickInterval)
	}
	if w.maxRetries != defaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", w.maxRetries, defaultMaxRetries)
	}
	if w.retryBaseDelay != defaultRetryBaseDelay {
		t.Errorf("retryBaseDelay = %v, want %v", w.retryBaseDelay, defaultRetryBaseDelay)
	}
	if w.retryMaxDelay != defaultRetryMaxDelay {
		t.Errorf("retryMaxDelay = %v, want %v", w.retryMaxDelay, defaultRetryMaxDelay)
	}
	if w.pauseDelay != defaultPauseDelay {
		t.Errorf("pauseDelay = %v, want %v", w.pauseDelay, defaultPauseDelay)
	}
	if len(w.ID()) != 8 {
		t.Errorf("worker id %q: want 8-char tag", w.ID())
	}
}

func TestNewValidation(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)
	tr := &scriptTransport{outcomes: []transport.Outcome{httpOutcome(200)}}

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing store", Config{Logs: store, Transport: tr}, ErrNoStore},
		{"missing log store", Config{Store: store, Transport: tr}, ErrNoLogStore},
		{"missing transport", Config{Store: store, Logs: store}, ErrNoTransport},
		{"negative batch size", Config{Store: store, Logs: store, Transport: tr, BatchSize: -1}, ErrBadBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	const (
		base = 5 * time.Second
		max  = time.Hour
	)

	tests := []struct {
		name       string
		factor     int
		retryCount int
		want       time.Duration
	}{
		{"first retry", 2, 0, 5 * time.Second},
		{"second retry", 2, 1, 10 * time.Second},
		{"third retry", 2, 2, 20 * time.Second},
		{"factor three", 3, 2, 45 * time.Second},
		{"capped at max", 2, 20, time.Hour},
		{"huge count does not overflow", 2, 1000, time.Hour},
		{"factor below two is clamped", 0, 1, 10 * time.Second},
		{"negative factor is clamped", -5, 1, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoffDelay(base, max, tt.factor, tt.retryCount); got != tt.want {
				t.Errorf("backoffDelay(%v, %v, %d, %d) = %v, want %v",
					base, max, tt.factor, tt.retryCount, got, tt.want)
			}
		})
	}
}

func TestSecondGate(t *testing.T) {
	clk := newFakeClock()
	gate := newSecondGate(clk.Now)

	// База выставлена при создании: та же секунда не пропускает.
	if gate.TryEnter() {
		t.Fatal("gate fired in the construction second")
	}

	clk.Advance(999 * time.Millisecond)
	if gate.TryEnter() {
		t.Fatal("gate fired before a full second elapsed")
	}

	clk.Advance(time.Millisecond)
	if !gate.TryEnter() {
		t.Fatal("gate did not fire after a full second")
	}

	// Повторный вход в ту же секунду запрещён.
	if gate.TryEnter() {
		t.Fatal("gate fired twice within one second")
	}

	clk.Advance(time.Second)
	if !gate.TryEnter() {
		t.Fatal("gate did not fire in the next second")
	}

	// Длинная пауза — всё равно один вход.
	clk.Advance(10 * time.Second)
	if !gate.TryEnter() {
		t.Fatal("gate did not fire after a long pause")
	}
	if gate.TryEnter() {
		t.Fatal("gate fired twice after a long pause")
	}
}

// Повторный sweep в ту же секунду — no-op: продвигать больше нечего.
func TestPromoteWaitingIdempotent(t *testing.T) {
	clk := newFakeClock()
	store := newMemStore(t, clk)

	retryAt := clk.Now().Add(-time.Second)
	store.add(domain.Request{
		ID:     1,
		URL:    "https://api.example.com",
		Method: "GET",
		State:  domain.StateWaiting,
	})
	store.mu.Lock()
	store.reqs[1].RetryAt = &retryAt
	store.mu.Unlock()

	ctx := context.Background()

	promoted, err := store.PromoteWaiting(ctx)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("promoted = %d, want 1", promoted)
	}

	promoted, err = store.PromoteWaiting(ctx)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted != 0 {
		t.Fatalf("second promote = %d, want 0", promoted)
	}

	if req := store.get(1); req.State != domain.StateReady || req.RetryAt != nil {
		t.Errorf("request = (%s, retry_at=%v), want (ready, nil)", req.State, req.RetryAt)
	}
}
