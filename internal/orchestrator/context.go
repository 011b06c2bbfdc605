package orchestrator

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// ExecutionContext — изменяемое состояние одного выполнения.
//
// Содержит переменные, выходы завершённых узлов и журнал.
// Планировщик пишет в контекст из одной горутины; мьютекс нужен
// для чтения снимков снаружи (наблюдатели, API) во время выполнения.
//
// Реализует nodes.Scope.
type ExecutionContext struct {
	executionID string
	flowID      string
	startedAt   time.Time
	now         func() time.Time

	// exchanges — интеграции по ID, только для чтения.
	exchanges map[string]domain.ExchangeIntegration

	variables map[string]any
	outputs   map[string]any
	logs      []domain.LogEntry

	mu sync.RWMutex
}

// NewExecutionContext создаёт контекст выполнения.
//
// variables копируется; при повторе ID интеграции используется первая.
func NewExecutionContext(executionID, flowID string, variables map[string]any, exchanges []domain.ExchangeIntegration, now func() time.Time) *ExecutionContext {
	if now == nil {
		now = time.Now
	}

	byID := make(map[string]domain.ExchangeIntegration, len(exchanges))
	for _, x := range exchanges {
		if _, dup := byID[x.ID]; !dup {
			byID[x.ID] = x
		}
	}

	vars := make(map[string]any, len(variables))
	maps.Copy(vars, variables)

	return &ExecutionContext{
		executionID: executionID,
		flowID:      flowID,
		startedAt:   now(),
		now:         now,
		exchanges:   byID,
		variables:   vars,
		outputs:     make(map[string]any),
	}
}

// ExecutionID возвращает идентификатор выполнения.
func (c *ExecutionContext) ExecutionID() string {
	return c.executionID
}

// FlowID возвращает идентификатор flow.
func (c *ExecutionContext) FlowID() string {
	return c.flowID
}

// StartedAt возвращает время создания контекста.
func (c *ExecutionContext) StartedAt() time.Time {
	return c.startedAt
}

// Exchange возвращает интеграцию биржи по ID.
func (c *ExecutionContext) Exchange(id string) (domain.ExchangeIntegration, bool) {
	x, ok := c.exchanges[id]
	return x, ok
}

// ReadVariable возвращает переменную выполнения.
func (c *ExecutionContext) ReadVariable(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// WriteVariable записывает переменную. Видна всем узлам, выполняемым позже.
func (c *ExecutionContext) WriteVariable(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// Variables возвращает копию переменных.
func (c *ExecutionContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.variables)
}

// Record сохраняет выход успешно завершённого узла.
func (c *ExecutionContext) Record(nodeID string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[nodeID] = output
}

// RecordRecovered отмечает optional-узел, завершившийся ошибкой:
// узел попадает в выходы с неопределённым значением.
func (c *ExecutionContext) RecordRecovered(nodeID string) {
	c.Record(nodeID, nil)
}

// Output возвращает выход узла.
func (c *ExecutionContext) Output(nodeID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.outputs[nodeID]
	return v, ok
}

// NodeOutputs возвращает копию выходов завершённых узлов.
func (c *ExecutionContext) NodeOutputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.outputs)
}

// Log добавляет запись в журнал. nodeID пуст для записей уровня run.
func (c *ExecutionContext) Log(level domain.LogLevel, message, nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, domain.LogEntry{
		Timestamp: c.now().UTC(),
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
	})
}

// Logs возвращает копию журнала.
func (c *ExecutionContext) Logs() []domain.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.logs)
}
