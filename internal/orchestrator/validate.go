package orchestrator

import (
	"errors"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/nodes"
)

// Validation — результат статической проверки workflow.
type Validation struct {
	// Errors — ошибки графа и конфигурации узлов.
	Errors []string `json:"errors,omitempty"`

	// Unreachable — узлы, недостижимые из trigger-узлов.
	Unreachable []string `json:"unreachable,omitempty"`

	errs []error
}

func (v *Validation) add(err error) {
	v.errs = append(v.errs, err)
	v.Errors = append(v.Errors, err.Error())
}

// Valid возвращает true, если ошибок нет.
func (v *Validation) Valid() bool {
	return len(v.Errors) == 0
}

// Err объединяет ошибки в одну; nil для валидного workflow.
// Исходные ошибки доступны через errors.Is/As.
func (v *Validation) Err() error {
	return errors.Join(v.errs...)
}

// Validate проверяет workflow без выполнения: структуру графа
// и конфигурацию каждого достижимого узла.
//
// Execute выполняет ту же проверку графа, но ошибки конфигурации
// узлов обнаруживает только при вычислении узла.
func Validate(nodeList []domain.Node, edges []domain.Edge) *Validation {
	v := &Validation{}

	g, err := engine.BuildGraph(nodeList, edges)
	if err != nil {
		v.add(err)
		return v
	}
	v.Unreachable = g.Unreachable()

	for i := range nodeList {
		if !g.Reachable(nodeList[i].ID) {
			continue
		}
		if _, err := nodes.Parse(&nodeList[i]); err != nil {
			v.add(err)
		}
	}
	return v
}
