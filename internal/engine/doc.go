// Package engine содержит модель графа workflow и вычисление значений.
//
// Включает:
//   - graph.go      — валидация и построение графа, топологический порядок
//   - template.go   — ссылки {{ name }} и Go templates в параметрах узлов
//   - expression.go — выражения условий и преобразований (expr-lang)
//
// Engine отвечает за понимание структуры flow; порядок выполнения
// и состояние узлов ведёт планировщик в пакете orchestrator.
package engine
