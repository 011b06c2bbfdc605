package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска сохранённого flow.
//
// Поддерживаются два режима:
//   - cron-выражение: "*/5 * * * *" (каждые 5 минут)
//   - интервал в секундах
//
// Scheduler проверяет next_due_at и ставит flow в очередь, когда время подошло.
type Schedule struct {
	// ID — уникальный идентификатор расписания.
	ID uuid.UUID `json:"id"`

	// FlowID — flow, который нужно запускать.
	FlowID uuid.UUID `json:"flow_id"`

	// Name — имя расписания.
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение. Если задано, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал между запусками.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastExecutionID — executionId последнего запуска.
	LastExecutionID string `json:"last_execution_id,omitempty"`

	// Variables — переменные, передаваемые в каждый запуск
	// поверх переменных flow.
	Variables map[string]any `json:"variables,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(executionID string, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastExecutionID = executionID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
