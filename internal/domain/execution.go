package domain

import "time"

// LogLevel — уровень записи журнала выполнения.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry — запись журнала выполнения.
//
// Журнал только дополняется и упорядочен по времени добавления.
type LogEntry struct {
	// Timestamp — время записи (ISO-8601 в JSON).
	Timestamp time.Time `json:"timestamp"`

	// Level — уровень: info, warn, error.
	Level LogLevel `json:"level"`

	// Message — текст записи.
	Message string `json:"message"`

	// NodeID — узел, к которому относится запись. Пусто для записей уровня run.
	NodeID string `json:"nodeId,omitempty"`
}

// ExecutionResult — итог выполнения, возвращаемый вызывающей стороне.
type ExecutionResult struct {
	Success     bool       `json:"success"`
	ExecutionID string     `json:"executionId"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	Logs        []LogEntry `json:"logs"`
}

// Execution — полный отчёт о выполнении workflow.
//
// Execution формирует Result Reporter после завершения run (успешного,
// прерванного или отменённого). Он же сохраняется в историю.
type Execution struct {
	// ID — идентификатор выполнения (executionId).
	ID string `json:"id"`

	// FlowID — идентификатор flow.
	FlowID string `json:"flow_id"`

	// Status — финальный статус.
	Status RunStatus `json:"status"`

	// Output — выход sink-узла или последнего выполненного узла.
	Output any `json:"output,omitempty"`

	// Error — сообщение первой фатальной ошибки, "cancelled" при отмене.
	Error string `json:"error,omitempty"`

	// Logs — журнал выполнения.
	Logs []LogEntry `json:"logs"`

	// NodeOutputs — выходы завершённых узлов.
	NodeOutputs map[string]any `json:"node_outputs,omitempty"`

	// Order — порядок, в котором узлы были выполнены.
	Order []string `json:"order,omitempty"`

	// Pruned — узлы невыбранных веток.
	Pruned []string `json:"pruned,omitempty"`

	// StartedAt — время начала.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded возвращает true для успешного выполнения.
func (e *Execution) Succeeded() bool {
	return e.Status == RunStatusSucceeded
}

// Duration возвращает продолжительность выполнения.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Result возвращает итог в формате вызывающей стороны.
func (e *Execution) Result() ExecutionResult {
	logs := e.Logs
	if logs == nil {
		logs = []LogEntry{}
	}
	return ExecutionResult{
		Success:     e.Succeeded(),
		ExecutionID: e.ID,
		Output:      e.Output,
		Error:       e.Error,
		Logs:        logs,
	}
}
