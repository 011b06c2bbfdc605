package scheduler

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
)

const (
	defaultBatchSize = 100
	defaultTick      = time.Second
)

// ScheduleStore — хранилище расписаний. Реализуется repo.ScheduleRepo.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	RecordRun(ctx context.Context, id uuid.UUID, prevDue time.Time, executionID string, ranAt, nextDue time.Time) error
}

// FlowStore — источник flows. Реализуется repo.FlowRepo.
type FlowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
}

// TriggerPublisher ставит flow в очередь. Реализуется mq.Publisher.
type TriggerPublisher interface {
	PublishFlowTriggered(ctx context.Context, payload mq.FlowTriggeredPayload) error
}

// Leader — блокировка лидера. Реализуется repo.AdvisoryLock.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Flows     FlowStore
	Publisher TriggerPublisher
	Logger    *slog.Logger

	// BatchSize — количество schedules за один тик (default: 100).
	BatchSize int

	// Now — источник времени.
	Now func() time.Time
}

// Scheduler ставит в очередь flows, у которых подошло время запуска.
type Scheduler struct {
	schedules ScheduleStore
	flows     FlowStore
	publisher TriggerPublisher
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		schedules: cfg.Schedules,
		flows:     cfg.Flows,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		now:       cfg.Now,
	}
}

// ScheduledExecutionID выдаёт executionId для слота расписания.
//
// Один и тот же слот (schedule, next_due_at) всегда получает один ID,
// поэтому повторная публикация не создаёт второе выполнение.
func ScheduledExecutionID(scheduleID uuid.UUID, due time.Time) string {
	slot := uuid.NewSHA1(scheduleID, []byte(due.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("exec_%d_%s", due.UnixMilli(), hex.EncodeToString(slot[:])[:7])
}

// Run вызывает Tick с периодом tick, пока процесс держит блокировку лидера.
// Блокируется до отмены ctx; при выходе блокировка освобождается.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration, leader Leader) {
	if tick <= 0 {
		tick = defaultTick
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	defer func() {
		if err := leader.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release leader lock", "error", err)
		}
	}()

	var leading bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		ok, err := leader.TryAcquire(ctx)
		if err != nil {
			s.logger.Warn("leader lock failed", "error", err)
			continue
		}
		if ok != leading {
			s.logger.Info("leadership changed", "leader", ok)
			leading = ok
		}
		if !ok {
			continue
		}
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	}
}

// Tick обрабатывает расписания с истекшим next_due_at.
//
// Для каждого: публикует flow.triggered и сдвигает next_due_at.
// Ошибка одного расписания не блокирует остальные.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var triggered int
	for i := range due {
		sched := &due[i]
		ok, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		if ok {
			triggered++
		}
	}

	s.logger.Info("scheduler tick completed", "due", len(due), "triggered", triggered)
	return nil
}

// processSchedule обрабатывает одно расписание.
// Возвращает true, если flow поставлен в очередь.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	if sched.NextDueAt == nil {
		return false, nil
	}
	prevDue := *sched.NextDueAt
	execID := ScheduledExecutionID(sched.ID, prevDue)

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// next_due_at не сдвигается: расписание нужно исправить
		return false, fmt.Errorf("calculate next due: %w", err)
	}

	publish := true
	flow, err := s.flows.GetByID(ctx, sched.FlowID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.logger.Warn("flow not found for schedule, skipping", "schedule_id", sched.ID, "flow_id", sched.FlowID)
		publish = false
	case err != nil:
		return false, fmt.Errorf("get flow: %w", err)
	case !flow.IsActive:
		s.logger.Debug("flow is inactive, skipping slot", "schedule_id", sched.ID, "flow_id", sched.FlowID)
		publish = false
	}

	var recordedID string
	if publish {
		err := s.publisher.PublishFlowTriggered(ctx, mq.FlowTriggeredPayload{
			ExecutionID: execID,
			FlowID:      sched.FlowID,
			Variables:   sched.Variables,
			Source:      mq.SourceSchedule,
		})
		if err != nil {
			// слот будет повторён на следующем тике с тем же executionId
			return false, fmt.Errorf("publish flow.triggered: %w", err)
		}
		recordedID = execID
	}

	err = s.schedules.RecordRun(ctx, sched.ID, prevDue, recordedID, now, nextDue)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Debug("schedule slot already recorded", "schedule_id", sched.ID)
		return publish, nil
	}
	if err != nil {
		return publish, fmt.Errorf("record run: %w", err)
	}

	if publish {
		s.logger.Info("flow triggered by schedule",
			"schedule_id", sched.ID,
			"flow_id", sched.FlowID,
			"execution_id", execID,
			"next_due_at", nextDue,
		)
	}
	return publish, nil
}
