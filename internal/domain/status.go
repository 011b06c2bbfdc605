package domain

// RunStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из RUNNING)
type RunStatus string

const (
	// RunStatusPending — выполнение поставлено в очередь.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — выполнение идёт.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — выполнение успешно завершено.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — выполнение прервано фатальной ошибкой.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — выполнение отменено.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "RUNNING":
		return RunStatusRunning
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "FAILED":
		return RunStatusFailed
	case "CANCELLED":
		return RunStatusCancelled
	default:
		return RunStatusPending
	}
}

// NodeStatus — состояние узла внутри одного выполнения.
//
// Жизненный цикл:
//
//	pending → ready → running → done
//	                          ↘ recovered (optional-узел упал, выход не определён)
//	                          ↘ failed (фатально)
//	pending → pruned (ветка не выбрана)
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusReady     NodeStatus = "ready"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusDone      NodeStatus = "done"
	NodeStatusRecovered NodeStatus = "recovered"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusPruned    NodeStatus = "pruned"
)

// IsSettled возвращает true, если узел больше не будет выполняться.
func (s NodeStatus) IsSettled() bool {
	switch s {
	case NodeStatusDone, NodeStatusRecovered, NodeStatusFailed, NodeStatusPruned:
		return true
	default:
		return false
	}
}
