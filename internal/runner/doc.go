// Package runner выполняет сохранённые flows по сообщениям flow.triggered.
//
// Runner — stateless процесс:
//   - получает flow.triggered из очереди RabbitMQ
//   - загружает flow из БД и подставляет интеграции бирж из EXCHANGES_FILE
//   - выполняет flow через orchestrator.Engine
//   - сохраняет отчёт в историю и публикует execution.completed
//
// Повторная доставка сообщения с тем же execution_id не запускает
// flow второй раз. Runners масштабируются горизонтально.
package runner
