// Package scheduler запускает сохранённые flows по расписанию.
//
// Scheduler периодически выбирает schedules с истекшим next_due_at,
// публикует flow.triggered и сдвигает next_due_at.
//
// Структура:
//   - scheduler.go — Scheduler (Run, Tick, processSchedule)
//   - cron.go      — cron-выражения и вычисление следующего времени
//
// Каждый слот расписания получает детерминированный executionId
// (ScheduledExecutionID): runner не выполнит слот дважды, даже если
// сообщение опубликовано повторно.
//
// Тик выполняет только лидер: Run захватывает repo.AdvisoryLock
// (pg_try_advisory_lock) перед каждым тиком.
package scheduler
