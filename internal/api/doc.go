// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (хранилища, publisher, runner, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, metrics, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - execution_handler.go — выполнение workflow и история /executions
//   - flow_handler.go      — сохранённые flows и ручной запуск
//   - schedule_handler.go  — расписания
//   - webhook_handler.go   — подписки и приём входящих webhooks
//
// POST /api/v1/executions принимает workflow целиком и возвращает
// {success, executionId, output, error, logs}.
package api
