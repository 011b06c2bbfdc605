// Package mq — транспорт RabbitMQ между процессами jaxrun.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — exchanges, queues, bindings
//   - message.go    — конверт сообщения и payloads
//   - publisher.go  — публикация
//   - consumer.go   — потребление с ack/nack и DLQ
//
// Типы сообщений:
//   - flow.triggered      — flow нужно выполнить (API, scheduler → runner)
//   - execution.completed — выполнение завершено (runner → подписчики)
package mq
