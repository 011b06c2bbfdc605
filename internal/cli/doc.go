// Package cli реализует инструмент командной строки jaxrun.
//
// # Обзор
//
// CLI выполняет workflow-файлы локально (тем же движком, что и сервер)
// либо работает с jaxrun API по HTTP: flows, executions, schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для jaxrun API. Инкапсулирует запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и ошибки API (*APIError с кодом и деталями).
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr,
// поэтому работает pipe: jaxrun flow list --json | jq .
//
// ## Commands
//
//   - run FILE [--var K=V] [--remote]
//   - validate FILE
//   - flow: list, create, show, delete, trigger
//   - executions: list, show
//   - schedule: list, create, show, delete, enable, disable
//
// Группы создаются фабричными функциями (NewFlowCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
