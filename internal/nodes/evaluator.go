package nodes

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/exchange"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

// DefaultTimeout — таймаут внешнего вызова узла по умолчанию.
const DefaultTimeout = 30 * time.Second

// Scope — состояние выполнения, доступное узлу на чтение.
//
// Реализуется orchestrator.ExecutionContext. Variables и NodeOutputs
// возвращают копии: узел не может изменить состояние в обход Outcome.
type Scope interface {
	ExecutionID() string
	Variables() map[string]any
	NodeOutputs() map[string]any
	Exchange(id string) (domain.ExchangeIntegration, bool)
}

// Inputs — входы узла, собранные планировщиком по входящим рёбрам.
type Inputs struct {
	// Values — значения по ключу ребра (targetHandle или ID источника).
	Values map[string]any

	// Primary — значение первого входящего ребра.
	Primary any

	// Missing — ключи входов, чьи источники завершились без значения.
	Missing []string
}

// Outcome — результат вычисления узла.
type Outcome struct {
	// Value — выход узла.
	Value any

	// Branch — выбранная ветка ("true"/"false"), только для condition.
	Branch string

	// Writes — переменные, которые нужно записать в контекст.
	Writes map[string]any

	// Summary — строка журнала уровня info.
	Summary string
}

// Config — настройки Evaluator.
type Config struct {
	// Factory — адаптеры бирж.
	Factory *exchange.Factory

	// Sender — отправитель исходящих webhooks.
	Sender *webhook.Sender

	// Logger — логгер.
	Logger *slog.Logger

	// DefaultTimeout — таймаут внешнего вызова, если узел не задал timeout_sec.
	DefaultTimeout time.Duration
}

// Evaluator вычисляет узлы.
//
// Evaluator не хранит состояние выполнения и безопасен для
// одновременного использования разными runs.
type Evaluator struct {
	factory *exchange.Factory
	sender  *webhook.Sender
	logger  *slog.Logger
	timeout time.Duration
}

// NewEvaluator создаёт Evaluator.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.Factory == nil {
		cfg.Factory = exchange.NewFactory(exchange.Options{})
	}
	if cfg.Sender == nil {
		cfg.Sender = webhook.NewSender(webhook.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	return &Evaluator{
		factory: cfg.Factory,
		sender:  cfg.Sender,
		logger:  cfg.Logger,
		timeout: cfg.DefaultTimeout,
	}
}

// Evaluate вычисляет узел.
//
// Ошибка возвращается как есть; решение abort/continue принимает
// планировщик по Policy узла.
func (e *Evaluator) Evaluate(ctx context.Context, node *domain.Node, in Inputs, scope Scope) (*Outcome, error) {
	spec, err := Parse(node)
	if err != nil {
		return nil, err
	}
	policy := ParsePolicy(node)

	if len(in.Missing) > 0 {
		if !policy.HasDefault {
			return nil, &MissingInputError{NodeID: node.ID, Input: in.Missing[0]}
		}
		in = in.withDefault(policy.Default)
	}

	ts := &engine.Scope{
		Vars:   scope.Variables(),
		Nodes:  scope.NodeOutputs(),
		Input:  in.Primary,
		Inputs: in.Values,
	}

	switch s := spec.(type) {
	case TriggerSpec:
		return evalTrigger(s, ts)
	case ConditionSpec:
		return evalCondition(node.ID, s, ts)
	case TransformSpec:
		return evalTransform(node.ID, s, ts)
	case ExchangeCallSpec:
		ctx, cancel := e.withTimeout(ctx, policy)
		defer cancel()
		out, err := e.evalExchangeCall(ctx, node.ID, s, ts, scope)
		return out, e.timeoutError(ctx, node.ID, policy, err)
	case WebhookSpec:
		ctx, cancel := e.withTimeout(ctx, policy)
		defer cancel()
		out, err := e.evalWebhook(ctx, node.ID, s, ts)
		return out, e.timeoutError(ctx, node.ID, policy, err)
	case VariableWriteSpec:
		return evalVariableWrite(s, ts)
	case DelaySpec:
		ctx, cancel := e.withTimeout(ctx, policy)
		defer cancel()
		out, err := evalDelay(ctx, s, ts)
		return out, e.timeoutError(ctx, node.ID, policy, err)
	case NotificationSpec:
		return e.evalNotification(node.ID, s, ts)
	}

	return nil, &UnknownNodeTypeError{NodeID: node.ID, Type: node.Type}
}

// withDefault подставляет значение по умолчанию вместо отсутствующих входов.
func (in Inputs) withDefault(def any) Inputs {
	values := make(map[string]any, len(in.Values)+len(in.Missing))
	maps.Copy(values, in.Values)
	for _, key := range in.Missing {
		values[key] = def
	}
	primary := in.Primary
	if primary == nil {
		primary = def
	}
	return Inputs{Values: values, Primary: primary}
}

// withTimeout ограничивает внешний вызов таймаутом узла.
func (e *Evaluator) withTimeout(ctx context.Context, p Policy) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.effectiveTimeout(p))
}

func (e *Evaluator) effectiveTimeout(p Policy) time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return e.timeout
}

// timeoutError превращает истёкший дедлайн узла в *TimeoutError.
func (e *Evaluator) timeoutError(ctx context.Context, nodeID string, p Policy, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{NodeID: nodeID, Timeout: e.effectiveTimeout(p), Err: err}
	}
	return err
}
