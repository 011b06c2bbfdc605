package engine

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Evaluate вычисляет выражение над окружением Scope.
//
// Синтаксис — expr-lang: арифметика, сравнения, логические операторы,
// доступ к полям через точку:
//
//	price * 1.01
//	price > 60000 && vars.enabled
//	nodes.fetch.last - nodes.fetch.open
func Evaluate(code string, scope *Scope) (any, error) {
	env := scope.Env()
	program, err := expr.Compile(code, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrExpression, code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("%w: run %q: %v", ErrExpression, code, err)
	}
	return out, nil
}

// EvaluateBool вычисляет выражение, результат которого обязан быть bool.
func EvaluateBool(code string, scope *Scope) (bool, error) {
	env := scope.Env()
	program, err := expr.Compile(code, expr.Env(env), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("%w: compile %q: %v", ErrExpression, code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("%w: run %q: %v", ErrExpression, code, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T, want bool", ErrExpression, code, out)
	}
	return b, nil
}

// Compare сравнивает два операнда оператором из редактора.
//
// Поддерживаются ==, !=, >, <, >=, <= (а также === и !==).
// Если оба операнда приводятся к числу, сравниваются числа.
// Иначе == и != сравнивают строковые представления, а >, <, >=, <=
// возвращают false: отсутствующее или нечисловое значение
// не выбирает ветку "true".
func Compare(left any, operator string, right any) (bool, error) {
	op := strings.TrimSpace(operator)
	switch op {
	case "===", "=":
		op = "=="
	case "!==":
		op = "!="
	}

	lf, lok := ToFloat(left)
	rf, rok := ToFloat(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case ">":
			return lf > rf, nil
		case "<":
			return lf < rf, nil
		case ">=":
			return lf >= rf, nil
		case "<=":
			return lf <= rf, nil
		}
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}

	ls, rs := "", ""
	if left != nil {
		ls = Stringify(left)
	}
	if right != nil {
		rs = Stringify(right)
	}
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case ">", "<", ">=", "<=":
		// порядок определён только для чисел
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
}
