package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/nodes"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
)

// Phase — фаза выполнения.
//
//	Initializing → Scheduling → Completed
//	                          ↘ Aborted (фатальная ошибка или невалидный граф)
//	                          ↘ Cancelled
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseScheduling   Phase = "scheduling"
	PhaseCompleted    Phase = "completed"
	PhaseAborted      Phase = "aborted"
	PhaseCancelled    Phase = "cancelled"
)

// Evaluator вычисляет узел. Реализуется *nodes.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, node *domain.Node, in nodes.Inputs, scope nodes.Scope) (*nodes.Outcome, error)
}

// Observer получает события выполнения. Используется для метрик.
type Observer interface {
	RunStarted(flowID string)
	NodeFinished(kind domain.NodeKind, status domain.NodeStatus, d time.Duration)
	RunFinished(status domain.RunStatus, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) RunStarted(string)                                           {}
func (nopObserver) NodeFinished(domain.NodeKind, domain.NodeStatus, time.Duration) {}
func (nopObserver) RunFinished(domain.RunStatus, time.Duration)                 {}

// Config — конфигурация Engine.
type Config struct {
	// Evaluator — вычислитель узлов. По умолчанию nodes.NewEvaluator.
	Evaluator Evaluator

	// Logger — логгер процесса.
	Logger *slog.Logger

	// Observer — наблюдатель (метрики).
	Observer Observer

	// IDGen — генератор executionId. По умолчанию NewExecutionID.
	IDGen func() string

	// Now — источник времени.
	Now func() time.Time
}

// Invocation — запрос на выполнение workflow.
type Invocation struct {
	// ExecutionID — заранее выданный executionId (например, из очереди).
	// Пустой — сгенерировать.
	ExecutionID string `json:"executionId,omitempty"`

	FlowID    string                       `json:"flowId"`
	Nodes     []domain.Node                `json:"nodes"`
	Edges     []domain.Edge                `json:"edges"`
	Exchanges []domain.ExchangeIntegration `json:"exchanges"`
	Variables map[string]any               `json:"variables,omitempty"`
}

// Engine выполняет workflows.
//
// Engine не хранит состояние выполнений: каждый Run независим,
// NewRun безопасен для одновременного вызова.
type Engine struct {
	evaluator Evaluator
	logger    *slog.Logger
	observer  Observer
	idGen     func() string
	now       func() time.Time
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = nodes.NewEvaluator(nodes.Config{Logger: logger})
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.IDGen == nil {
		cfg.IDGen = NewExecutionID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		evaluator: cfg.Evaluator,
		logger:    logger,
		observer:  cfg.Observer,
		idGen:     cfg.IDGen,
		now:       cfg.Now,
	}
}

// NewExecutionID генерирует executionId вида exec_<unix ms>_<7 символов>.
func NewExecutionID() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("exec_%d_%s", time.Now().UnixMilli(), token)
}

// Execute создаёт Run и выполняет его.
func (e *Engine) Execute(ctx context.Context, inv Invocation) *domain.Execution {
	return e.NewRun(inv).Execute(ctx)
}

// NewRun готовит выполнение: выдаёт executionId и создаёт контекст.
// Узлы не вычисляются до вызова Execute.
func (e *Engine) NewRun(inv Invocation) *Run {
	id := inv.ExecutionID
	if id == "" {
		id = e.idGen()
	}
	ec := NewExecutionContext(id, inv.FlowID, inv.Variables, inv.Exchanges, e.now)

	logger := telemetry.WithExecutionID(telemetry.WithFlowID(e.logger, inv.FlowID), id)
	return &Run{
		engine: e,
		inv:    inv,
		ec:     ec,
		logger: logger,
		phase:  PhaseInitializing,
	}
}

// Run — одно выполнение workflow.
type Run struct {
	engine *Engine
	inv    Invocation
	ec     *ExecutionContext
	logger *slog.Logger

	once   sync.Once
	report *domain.Execution

	phase Phase
	mu    sync.RWMutex
}

// ExecutionID возвращает executionId.
func (r *Run) ExecutionID() string {
	return r.ec.ExecutionID()
}

// Context возвращает контекст выполнения.
func (r *Run) Context() *ExecutionContext {
	return r.ec
}

// Phase возвращает текущую фазу.
func (r *Run) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

func (r *Run) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

// Report возвращает отчёт о выполнении или nil, если Execute ещё не завершился.
func (r *Run) Report() *domain.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

// Execute выполняет workflow и возвращает отчёт.
//
// Отчёт формируется всегда: при невалидном графе, фатальной ошибке
// и отмене. Отмена ctx проверяется только между узлами; узел вычисляется
// до конца в пределах своего таймаута. Повторный вызов возвращает тот же отчёт.
func (r *Run) Execute(ctx context.Context) *domain.Execution {
	r.once.Do(func() {
		exec := r.execute(ctx)
		r.mu.Lock()
		r.report = exec
		r.mu.Unlock()
	})
	return r.Report()
}

func (r *Run) execute(ctx context.Context) *domain.Execution {
	ec := r.ec
	obs := r.engine.observer

	obs.RunStarted(ec.FlowID())
	r.logger.Info("execution started",
		"nodes", len(r.inv.Nodes),
		"edges", len(r.inv.Edges),
	)
	ec.Log(domain.LogLevelInfo, "Starting workflow execution", "")

	// Initializing: граф проверяется до любых побочных эффектов
	g, err := engine.BuildGraph(r.inv.Nodes, r.inv.Edges)
	if err != nil {
		ec.Log(domain.LogLevelError, "Execution failed: "+err.Error(), "")
		return r.finish(nil, domain.RunStatusFailed, err.Error(), nil)
	}
	for _, id := range g.Unreachable() {
		ec.Log(domain.LogLevelWarn, "Node is not reachable from any trigger and will not run", id)
	}
	sink := findSink(g, r.inv.Nodes)

	st := newRunState(g)
	r.setPhase(PhaseScheduling)

	evalCtx := context.WithoutCancel(ctx)
	var last string

	for st.pending() {
		// отмена после последнего узла не отменяет завершённый запуск
		if ctx.Err() != nil {
			ec.Log(domain.LogLevelWarn, "Execution cancelled", "")
			return r.finish(st, domain.RunStatusCancelled, ErrCancelled.Error(), nil)
		}

		id, _ := st.next()
		node, _ := g.Node(id)
		policy := nodes.ParsePolicy(node)
		logger := telemetry.WithNodeID(r.logger, id)

		logger.Debug("evaluating node", "type", node.Type)
		start := time.Now()
		out, err := r.engine.evaluator.Evaluate(evalCtx, node, st.inputs(id, ec), ec)
		d := time.Since(start)
		last = id

		if err != nil {
			if policy.Optional {
				ec.RecordRecovered(id)
				ec.Log(domain.LogLevelWarn, "Node failed, continuing: "+err.Error(), id)
				logger.Warn("optional node failed", "error", err)
				r.logPruned(st.complete(id, domain.NodeStatusRecovered, ""))
				obs.NodeFinished(node.Kind(), domain.NodeStatusRecovered, d)
				continue
			}

			st.fail(id)
			ec.Log(domain.LogLevelError, "Execution failed: "+err.Error(), id)
			logger.Error("node failed", "error", err)
			obs.NodeFinished(node.Kind(), domain.NodeStatusFailed, d)
			return r.finish(st, domain.RunStatusFailed, err.Error(), nil)
		}

		for name, value := range out.Writes {
			ec.WriteVariable(name, value)
		}
		ec.Record(id, out.Value)
		ec.Log(domain.LogLevelInfo, out.Summary, id)
		r.logPruned(st.complete(id, domain.NodeStatusDone, out.Branch))
		obs.NodeFinished(node.Kind(), domain.NodeStatusDone, d)
	}

	if sink == "" {
		sink = last
	}
	output, _ := ec.Output(sink)

	ec.Log(domain.LogLevelInfo, "Workflow execution completed successfully", "")
	return r.finish(st, domain.RunStatusSucceeded, "", output)
}

// logPruned пишет в журнал узлы отсечённых веток.
func (r *Run) logPruned(ids []string) {
	for _, id := range ids {
		r.ec.Log(domain.LogLevelInfo, "Skipped: branch not taken", id)
	}
}

// finish фиксирует фазу и формирует отчёт.
func (r *Run) finish(st *runState, status domain.RunStatus, errMsg string, output any) *domain.Execution {
	switch status {
	case domain.RunStatusSucceeded:
		r.setPhase(PhaseCompleted)
	case domain.RunStatusCancelled:
		r.setPhase(PhaseCancelled)
	default:
		r.setPhase(PhaseAborted)
	}

	exec := buildReport(r.ec, st, status, errMsg, output, r.engine.now())
	r.engine.observer.RunFinished(status, exec.Duration())

	r.logger.Info("execution finished",
		"status", status,
		"duration", exec.Duration(),
		"error", errMsg,
	)
	return exec
}

// findSink возвращает первый узел с sink: true в порядке объявления.
func findSink(g *engine.Graph, list []domain.Node) string {
	for i := range list {
		if !g.Reachable(list[i].ID) {
			continue
		}
		if nodes.ParsePolicy(&list[i]).Sink {
			return list[i].ID
		}
	}
	return ""
}
