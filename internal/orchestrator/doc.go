// Package orchestrator выполняет workflow.
//
// Engine принимает Invocation (узлы, рёбра, интеграции бирж, переменные)
// и проводит Run через фазы:
//   - Initializing — валидация графа до любых побочных эффектов
//   - Scheduling — узлы вычисляются по одному: сначала trigger-узлы по ID,
//     далее в ширину в порядке добавления рёбер
//   - Completed / Aborted / Cancelled — формирование отчёта
//
// Ветки condition отсекаются: узлы невыбранной ветки не выполняются
// и не считаются упавшими. Ошибка optional-узла пишется как warn,
// прочие ошибки прерывают выполнение.
//
// Состояние выполнения (переменные, выходы, журнал) хранит ExecutionContext.
package orchestrator
