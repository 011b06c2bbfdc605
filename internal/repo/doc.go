// Package repo хранит flows, историю выполнений, расписания
// и подписки на webhooks в PostgreSQL (pgx).
//
// Схема описана в schema.sql и применяется Migrate при старте процессов.
// Движок выполнения от repo не зависит: история пишется вызывающей
// стороной (API, runner).
package repo
