package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/courierhq/courier/internal/domain"
	"github.com/courierhq/courier/internal/telemetry"
)

// collectSpec — расписание сбора (каждые 15 секунд).
const collectSpec = "*/15 * * * * *"

// StateCounter считает requests по состояниям.
// Реализуется repo.RequestRepo.
type StateCounter interface {
	CountByState(ctx context.Context) (map[domain.RequestState]int64, error)
}

// Monitor периодически снимает глубину очереди в Prometheus-гейдж
// courier_requests{state}.
type Monitor struct {
	counter StateCounter
	logger  *slog.Logger
	cron    *cron.Cron
}

// New создаёт Monitor.
func New(counter StateCounter, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		counter: counter,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start запускает расписание сбора.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(collectSpec, m.collect); err != nil {
		return fmt.Errorf("schedule monitor: %w", err)
	}
	m.cron.Start()
	m.logger.Info("queue monitor started", "schedule", collectSpec)
	return nil
}

// Stop останавливает расписание и дожидается текущего сбора.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Monitor) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := m.counter.CountByState(ctx)
	if err != nil {
		m.logger.Warn("failed to count requests by state", "error", err)
		return
	}

	// Выставляем все состояния, включая нулевые — иначе гейдж
	// залипает на последнем ненулевом значении.
	for _, state := range domain.States() {
		telemetry.RequestsByState.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}
