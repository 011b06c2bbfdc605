package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

// FlowStore — хранилище flows. Реализуется repo.FlowRepo.
type FlowStore interface {
	Create(ctx context.Context, flow *domain.Flow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
	List(ctx context.Context) ([]domain.Flow, error)
	Update(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExecutionStore — история выполнений. Реализуется repo.ExecutionRepo.
type ExecutionStore interface {
	Save(ctx context.Context, exec *domain.Execution) error
	GetByID(ctx context.Context, id string) (*domain.Execution, error)
	List(ctx context.Context, filter repo.ExecutionFilter) ([]domain.Execution, error)
}

// ScheduleStore — расписания. Реализуется repo.ScheduleRepo.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// WebhookStore — подписки на webhooks. Реализуется repo.WebhookRepo.
type WebhookStore interface {
	Create(ctx context.Context, s *domain.WebhookSubscription) error
	List(ctx context.Context, activeOnly bool) ([]domain.WebhookSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TriggerPublisher ставит flow в очередь. Реализуется mq.Publisher.
type TriggerPublisher interface {
	PublishFlowTriggered(ctx context.Context, payload mq.FlowTriggeredPayload) error
}

// InlineRunner выполняет сохранённый flow в процессе API. Реализуется runner.Runner.
type InlineRunner interface {
	HandleTrigger(ctx context.Context, payload mq.FlowTriggeredPayload) (*domain.Execution, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine     *orchestrator.Engine
	flows      FlowStore
	executions ExecutionStore
	schedules  ScheduleStore
	webhooks   WebhookStore
	publisher  TriggerPublisher
	dispatcher *webhook.Dispatcher
	runner     InlineRunner
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine     *orchestrator.Engine
	Flows      FlowStore
	Executions ExecutionStore
	Schedules  ScheduleStore
	Webhooks   WebhookStore

	// Publisher — опционально. Без него запуск flow выполняется
	// синхронно через Runner.
	Publisher TriggerPublisher

	// Runner — синхронный запуск сохранённых flows, если нет Publisher.
	Runner InlineRunner

	// Dispatcher — рассылка входящих webhooks подписчикам.
	Dispatcher *webhook.Dispatcher

	// Metrics — опционально, счётчик HTTP запросов.
	Metrics *telemetry.Metrics

	Logger *slog.Logger
	Now    func() time.Time
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = orchestrator.New(orchestrator.Config{Logger: cfg.Logger})
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = webhook.NewDispatcher(webhook.NewSender(webhook.Config{}), 0, cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Handler{
		engine:     cfg.Engine,
		flows:      cfg.Flows,
		executions: cfg.Executions,
		schedules:  cfg.Schedules,
		webhooks:   cfg.Webhooks,
		publisher:  cfg.Publisher,
		dispatcher: cfg.Dispatcher,
		runner:     cfg.Runner,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}
