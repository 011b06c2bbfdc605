// Package nodes вычисляет узлы workflow.
//
// Параметры узла разбираются в закрытый набор типов Spec (TriggerSpec,
// ConditionSpec, ExchangeCallSpec, ...), Evaluator выполняет узел через
// исчерпывающий type switch и возвращает Outcome: значение и эффекты
// (запись переменных, выбор ветки, строка журнала).
//
// Evaluator не изменяет состояние выполнения сам: эффекты применяет
// планировщик (пакет orchestrator).
package nodes
