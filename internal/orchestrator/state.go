package orchestrator

import (
	"slices"
	"strings"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/nodes"
)

// runState — состояние планирования одного выполнения.
//
// Отслеживает:
//   - статус каждого узла (pending → ready → running → done/recovered/failed, либо pruned)
//   - состояние каждого ребра: решено ли оно и живое ли
//   - очередь готовых узлов в порядке планирования
//
// Ребро решается, когда завершается его источник. Узел готов, когда решены
// все рёбра от достижимых источников и хотя бы одно живое; если все мёртвые,
// узел отсекается и решает свои исходящие рёбра как мёртвые.
type runState struct {
	graph *engine.Graph

	status map[string]domain.NodeStatus
	branch map[string]string

	edgeDone []bool
	edgeLive []bool

	queue  []string
	order  []string
	pruned []string
}

// newRunState создаёт состояние и ставит trigger-узлы в очередь.
func newRunState(g *engine.Graph) *runState {
	s := &runState{
		graph:    g,
		status:   make(map[string]domain.NodeStatus, g.Size()),
		branch:   make(map[string]string),
		edgeDone: make([]bool, g.EdgeCount()),
		edgeLive: make([]bool, g.EdgeCount()),
	}
	for _, id := range g.Order() {
		s.status[id] = domain.NodeStatusPending
	}
	for _, id := range g.Triggers() {
		s.status[id] = domain.NodeStatusReady
		s.queue = append(s.queue, id)
	}
	return s
}

// pending — есть ли готовые к выполнению узлы.
func (s *runState) pending() bool {
	return len(s.queue) > 0
}

// next извлекает следующий готовый узел.
func (s *runState) next() (string, bool) {
	if len(s.queue) == 0 {
		return "", false
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	s.status[id] = domain.NodeStatusRunning
	s.order = append(s.order, id)
	return id, true
}

// inputs собирает входы узла по живым входящим рёбрам.
func (s *runState) inputs(id string, ec *ExecutionContext) nodes.Inputs {
	in := nodes.Inputs{Values: make(map[string]any)}
	primarySet := false

	for _, idx := range s.graph.InEdges(id) {
		if !s.edgeLive[idx] {
			continue
		}
		e := s.graph.Edge(idx)
		key := e.InputKey()

		if s.status[e.Source] == domain.NodeStatusRecovered {
			if !slices.Contains(in.Missing, key) {
				in.Missing = append(in.Missing, key)
			}
			continue
		}
		v, _ := ec.Output(e.Source)
		in.Values[key] = v
		if !primarySet {
			in.Primary, primarySet = v, true
		}
	}
	return in
}

// complete отмечает завершение узла и решает его исходящие рёбра.
// Возвращает узлы, отсечённые в результате.
func (s *runState) complete(id string, status domain.NodeStatus, branch string) []string {
	s.status[id] = status
	s.branch[id] = branch
	return s.resolve(id)
}

// fail отмечает фатальную ошибку узла. Рёбра не решаются: выполнение прерывается.
func (s *runState) fail(id string) {
	s.status[id] = domain.NodeStatusFailed
}

// resolve решает исходящие рёбра узла и пересчитывает готовность приёмников.
func (s *runState) resolve(id string) []string {
	var pruned []string
	stack := []string{id}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, idx := range s.graph.OutEdges(cur) {
			s.edgeDone[idx] = true
			s.edgeLive[idx] = s.isLive(cur, s.graph.Edge(idx))

			target := s.graph.Edge(idx).Target
			switch s.readiness(target) {
			case readinessReady:
				s.status[target] = domain.NodeStatusReady
				s.queue = append(s.queue, target)
			case readinessDead:
				s.status[target] = domain.NodeStatusPruned
				s.pruned = append(s.pruned, target)
				pruned = append(pruned, target)
				stack = append(stack, target)
			}
		}
	}
	return pruned
}

// isLive определяет, передаёт ли ребро управление дальше.
//
// Рёбра отсечённого узла мёртвые. Для condition ребро с меткой
// "true"/"false" живое, только если метка совпадает с выбранной веткой;
// у condition, упавшего как optional, ветка не выбрана и такие рёбра мёртвые.
// Рёбра без метки (и рёбра прочих узлов) живые всегда.
func (s *runState) isLive(source string, e domain.Edge) bool {
	if s.status[source] == domain.NodeStatusPruned {
		return false
	}
	n, _ := s.graph.Node(source)
	if n.Kind() != domain.NodeKindCondition {
		return true
	}
	tag := strings.ToLower(strings.TrimSpace(e.Branch()))
	if tag != "true" && tag != "false" {
		return true
	}
	return tag == s.branch[source]
}

type readiness int

const (
	readinessWaiting readiness = iota
	readinessReady
	readinessDead
)

// readiness проверяет, можно ли планировать узел.
// Рёбра от недостижимых узлов не учитываются.
func (s *runState) readiness(id string) readiness {
	if s.status[id] != domain.NodeStatusPending {
		return readinessWaiting
	}

	live := false
	for _, idx := range s.graph.InEdges(id) {
		if !s.graph.Reachable(s.graph.Edge(idx).Source) {
			continue
		}
		if !s.edgeDone[idx] {
			return readinessWaiting
		}
		live = live || s.edgeLive[idx]
	}
	if live {
		return readinessReady
	}
	return readinessDead
}
