// Package domain содержит доменные модели jaxrun.
//
// Включает:
//   - flow.go      — граф workflow: Node, Edge, Flow, ExchangeIntegration
//   - execution.go — журнал выполнения и итоговый результат
//   - status.go    — статусы выполнения и узлов
//   - schedule.go  — расписание запуска сохранённых flow
//   - webhook.go   — подписки на исходящие webhooks
//
// Модели не зависят от хранилища и транспорта и используются
// движком, репозиториями и API одинаково.
package domain
