package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// ErrNoSchedule — у расписания нет ни cron_expr, ни interval_sec.
var ErrNoSchedule = errors.New("schedule has neither cron_expr nor interval_sec")

// cronParser — пятипольный cron плюс дескрипторы (@hourly, @every 5m).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CalculateNextDue вычисляет следующее время запуска после from.
//
// Cron вычисляется в часовом поясе расписания (невалидный пояс — UTC).
// Результат всегда в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil || sched.Timezone == "" {
		loc = time.UTC
	}
	from = from.In(loc)

	switch {
	case sched.IsCron():
		s, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return s.Next(from).UTC(), nil
	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	default:
		return time.Time{}, ErrNoSchedule
	}
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
