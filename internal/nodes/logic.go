package nodes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/engine"
)

const defaultTriggerMessage = "Workflow started"

// evalTrigger возвращает payload триггера с подставленными переменными.
func evalTrigger(s TriggerSpec, ts *engine.Scope) (*Outcome, error) {
	payload, err := engine.Resolve(s.Payload, ts)
	if err != nil {
		return nil, err
	}
	msg := s.Message
	if msg == "" {
		msg = defaultTriggerMessage
	}
	return &Outcome{Value: payload, Summary: msg}, nil
}

// evalCondition вычисляет условие и выбирает ветку.
//
// Результат дублируется в переменную <nodeID>_result.
func evalCondition(nodeID string, s ConditionSpec, ts *engine.Scope) (*Outcome, error) {
	var (
		result  bool
		summary string
	)

	if s.Expression != "" {
		b, err := engine.EvaluateBool(s.Expression, ts)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, err)
		}
		result = b
		summary = fmt.Sprintf("Condition: %s = %t", s.Expression, result)
	} else {
		left, err := engine.Resolve(s.Left, ts)
		if err != nil {
			return nil, fmt.Errorf("node %s: left value: %w", nodeID, err)
		}
		right, err := engine.Resolve(s.Right, ts)
		if err != nil {
			return nil, fmt.Errorf("node %s: right value: %w", nodeID, err)
		}
		result, err = engine.Compare(left, s.Operator, right)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, err)
		}
		summary = fmt.Sprintf("Condition: %s %s %s = %t",
			engine.Stringify(left), s.Operator, engine.Stringify(right), result)
	}

	return &Outcome{
		Value:   result,
		Branch:  strconv.FormatBool(result),
		Writes:  map[string]any{nodeID + "_result": result},
		Summary: summary,
	}, nil
}

// evalTransform вычисляет выражение и/или mappings.
//
// Если заданы оба, mappings видят результат выражения как основной вход.
func evalTransform(nodeID string, s TransformSpec, ts *engine.Scope) (*Outcome, error) {
	var value any

	if s.Expression != "" {
		v, err := engine.Evaluate(s.Expression, ts)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, err)
		}
		value = v
		if len(s.Mappings) > 0 {
			chained := *ts
			chained.Input = v
			ts = &chained
		}
	}

	if len(s.Mappings) > 0 {
		mapped, err := engine.Resolve(s.Mappings, ts)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, err)
		}
		value = mapped
	}

	return &Outcome{
		Value:   value,
		Summary: "Transform: " + engine.Stringify(value),
	}, nil
}

// evalVariableWrite записывает переменную выполнения.
func evalVariableWrite(s VariableWriteSpec, ts *engine.Scope) (*Outcome, error) {
	value, err := engine.Resolve(s.Value, ts)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Value:   value,
		Writes:  map[string]any{s.Name: value},
		Summary: fmt.Sprintf("Variable set: %s = %s", s.Name, engine.Stringify(value)),
	}, nil
}

// evalDelay приостанавливает выполнение и пропускает основной вход дальше.
func evalDelay(ctx context.Context, s DelaySpec, ts *engine.Scope) (*Outcome, error) {
	timer := time.NewTimer(s.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Outcome{
		Value:   ts.Input,
		Summary: fmt.Sprintf("Delayed for %dms", s.Duration.Milliseconds()),
	}, nil
}

// evalNotification пишет сообщение в журнал выполнения.
// Канал console дублирует сообщение в лог процесса.
func (e *Evaluator) evalNotification(nodeID string, s NotificationSpec, ts *engine.Scope) (*Outcome, error) {
	msg, err := engine.ResolveString(s.Message, ts)
	if err != nil {
		return nil, err
	}
	if s.Channel == "console" {
		e.logger.Info("notification", "node_id", nodeID, "message", msg)
	}
	return &Outcome{
		Value:   msg,
		Summary: fmt.Sprintf("Notification [%s]: %s", s.Channel, msg),
	}, nil
}
