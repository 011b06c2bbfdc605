package orchestrator

import (
	"slices"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// buildReport формирует отчёт о выполнении.
//
// st равен nil, если граф не прошёл валидацию: узлы не выполнялись.
// Журнал и выходы копируются, отчёт не связан с контекстом.
func buildReport(ec *ExecutionContext, st *runState, status domain.RunStatus, errMsg string, output any, finishedAt time.Time) *domain.Execution {
	exec := &domain.Execution{
		ID:          ec.ExecutionID(),
		FlowID:      ec.FlowID(),
		Status:      status,
		Error:       errMsg,
		Logs:        ec.Logs(),
		NodeOutputs: ec.NodeOutputs(),
		StartedAt:   ec.StartedAt(),
		FinishedAt:  finishedAt,
	}
	if status == domain.RunStatusSucceeded {
		exec.Output = output
	}
	if st != nil {
		exec.Order = slices.Clone(st.order)
		exec.Pruned = slices.Clone(st.pruned)
	}
	if exec.Logs == nil {
		exec.Logs = []domain.LogEntry{}
	}
	return exec
}
