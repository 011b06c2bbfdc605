package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/exchange"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
)

const defaultConcurrency = 2

// FlowStore — источник сохранённых flows. Реализуется repo.FlowRepo.
type FlowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
}

// ExecutionStore — история выполнений. Реализуется repo.ExecutionRepo.
type ExecutionStore interface {
	GetByID(ctx context.Context, id string) (*domain.Execution, error)
	Save(ctx context.Context, exec *domain.Execution) error
}

// CompletionPublisher публикует итог выполнения. Реализуется mq.Publisher.
type CompletionPublisher interface {
	PublishExecutionCompleted(ctx context.Context, payload mq.ExecutionCompletedPayload) error
}

// Config — конфигурация Runner.
type Config struct {
	Engine     *orchestrator.Engine
	Flows      FlowStore
	Executions ExecutionStore

	// Publisher — опционально; без него execution.completed не публикуется.
	Publisher CompletionPublisher

	// Conn — соединение для consumer. Без него Start недоступен,
	// HandleTrigger работает.
	Conn *mq.Connection

	// Exchanges — все интеграции бирж оператора.
	// Flow получает только те, что перечислены в его ExchangeIDs.
	Exchanges []domain.ExchangeIntegration

	// Concurrency — число одновременно выполняемых flows (default: 2).
	Concurrency int

	Logger *slog.Logger
}

// Runner выполняет flows из очереди.
type Runner struct {
	engine     *orchestrator.Engine
	flows      FlowStore
	executions ExecutionStore
	publisher  CompletionPublisher
	conn       *mq.Connection
	exchanges  []domain.ExchangeIntegration
	workers    int
	logger     *slog.Logger

	consumers  []*mq.Consumer
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}
	eng := cfg.Engine
	if eng == nil {
		eng = orchestrator.New(orchestrator.Config{Logger: logger})
	}
	return &Runner{
		engine:     eng,
		flows:      cfg.Flows,
		executions: cfg.Executions,
		publisher:  cfg.Publisher,
		conn:       cfg.Conn,
		exchanges:  cfg.Exchanges,
		workers:    workers,
		logger:     logger,
	}
}

// Start запускает consumers очереди flows.triggered.
func (r *Runner) Start(ctx context.Context) error {
	if r.conn == nil {
		return fmt.Errorf("runner: %w", mq.ErrNoChannel)
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting runner", "concurrency", r.workers, "exchanges", len(r.exchanges))

	for range r.workers {
		c := mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
			Queue:    mq.QueueFlowsTriggered,
			Handler:  r.handleFlowTriggered,
			Prefetch: 1,
		})
		r.consumers = append(r.consumers, c)

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("flow consumer error", "error", err)
			}
		}()
	}
	return nil
}

// Stop останавливает consumers и ждёт их завершения.
// Выполняемые flows получают отмену и сохраняются как CANCELLED.
func (r *Runner) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	for _, c := range r.consumers {
		c.Stop()
	}
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// handleFlowTriggered обрабатывает сообщение flow.triggered.
func (r *Runner) handleFlowTriggered(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.FlowTriggeredPayload](&d.Message)
	if err != nil {
		return mq.Reject(err)
	}

	_, err = r.HandleTrigger(ctx, payload)
	switch {
	case errors.Is(err, ErrFlowNotFound):
		return mq.Reject(err)
	case errors.Is(err, ErrFlowInactive):
		r.logger.Info("skipping inactive flow", "flow_id", payload.FlowID, "source", payload.Source)
		return nil
	case errors.Is(err, ErrSaveFailed):
		// повторная доставка выполнила бы flow ещё раз
		return mq.Reject(err)
	}
	return err
}

// HandleTrigger выполняет flow по запросу и сохраняет отчёт.
//
// Если выполнение с тем же ExecutionID уже сохранено, возвращает его
// без повторного запуска. Ошибка означает, что выполнение не состоялось
// или не сохранено; неуспешный flow ошибкой не является.
func (r *Runner) HandleTrigger(ctx context.Context, p mq.FlowTriggeredPayload) (*domain.Execution, error) {
	logger := telemetry.WithFlowID(r.logger, p.FlowID.String())

	if p.ExecutionID != "" {
		prev, err := r.executions.GetByID(ctx, p.ExecutionID)
		if err == nil {
			logger.Info("execution already recorded, skipping", "execution_id", p.ExecutionID)
			return prev, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("check execution: %w", err)
		}
	}

	flow, err := r.flows.GetByID(ctx, p.FlowID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, p.FlowID)
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}
	if !flow.IsActive && p.Source != mq.SourceManual {
		return nil, fmt.Errorf("%w: %s", ErrFlowInactive, p.FlowID)
	}

	exec := r.engine.Execute(ctx, r.invocation(flow, p))

	// отчёт сохраняется и при отмене ctx (остановка процесса)
	saveCtx := context.WithoutCancel(ctx)
	if err := r.executions.Save(saveCtx, exec); err != nil {
		return exec, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if r.publisher != nil {
		if err := r.publisher.PublishExecutionCompleted(saveCtx, mq.CompletedFrom(exec)); err != nil {
			logger.Warn("failed to publish execution.completed", "execution_id", exec.ID, "error", err)
		}
	}

	logger.Info("flow executed",
		"execution_id", exec.ID,
		"source", p.Source,
		"status", exec.Status,
		"duration", exec.Duration(),
	)
	return exec, nil
}

// invocation собирает запрос к движку: переменные flow, поверх них
// переменные запуска, и интеграции, перечисленные во flow.
func (r *Runner) invocation(flow *domain.Flow, p mq.FlowTriggeredPayload) orchestrator.Invocation {
	vars := make(map[string]any, len(flow.Variables)+len(p.Variables))
	maps.Copy(vars, flow.Variables)
	maps.Copy(vars, p.Variables)

	return orchestrator.Invocation{
		ExecutionID: p.ExecutionID,
		FlowID:      flow.ID.String(),
		Nodes:       flow.Nodes,
		Edges:       flow.Edges,
		Exchanges:   exchange.Select(r.exchanges, flow.ExchangeIDs),
		Variables:   vars,
	}
}
