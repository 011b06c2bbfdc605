package engine

import (
	"fmt"
	"slices"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// Graph — проверенный граф workflow.
//
// Узлы и рёбра хранятся в массивах, связи — индексами по ID узла,
// поэтому планировщик оперирует только идентификаторами.
// Graph после построения не изменяется.
type Graph struct {
	nodes []domain.Node
	edges []domain.Edge
	index map[string]int

	// out / in — индексы рёбер в порядке их добавления.
	out map[string][]int
	in  map[string][]int

	triggers  []string
	order     []string
	reachable map[string]bool
}

// BuildGraph валидирует узлы и рёбра и строит граф.
//
// Проверяет:
//   - уникальность и непустоту ID узлов
//   - что концы каждого ребра существуют
//   - отсутствие петель и циклов (алгоритм Кана)
//   - наличие хотя бы одного trigger-узла без входящих рёбер
//
// Точные дубликаты рёбер (тот же источник, приёмник и handles) схлопываются.
// Ошибки возвращаются как *InvalidGraphError.
func BuildGraph(nodes []domain.Node, edges []domain.Edge) (*Graph, error) {
	if err := Validate(nodes, edges); err != nil {
		return nil, err
	}

	g := &Graph{
		nodes: nodes,
		edges: make([]domain.Edge, 0, len(edges)),
		index: make(map[string]int, len(nodes)),
		out:   make(map[string][]int, len(nodes)),
		in:    make(map[string][]int, len(nodes)),
	}
	for i := range nodes {
		g.index[nodes[i].ID] = i
	}

	// Связываем узлы рёбрами
	for _, e := range edges {
		g.addEdge(e)
	}

	// Trigger-узлы — точки входа, упорядочены по ID
	for i := range nodes {
		n := &nodes[i]
		if n.IsTrigger() && len(g.in[n.ID]) == 0 {
			g.triggers = append(g.triggers, n.ID)
		}
	}
	slices.Sort(g.triggers)

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.order = order
	g.reachable = g.walkFromTriggers()

	return g, nil
}

// addEdge добавляет ребро, пропуская точный дубликат уже добавленного.
func (g *Graph) addEdge(e domain.Edge) {
	for _, idx := range g.out[e.Source] {
		prev := g.edges[idx]
		if prev.Target == e.Target && prev.Branch() == e.Branch() && prev.TargetHandle == e.TargetHandle {
			return
		}
	}
	g.edges = append(g.edges, e)
	idx := len(g.edges) - 1
	g.out[e.Source] = append(g.out[e.Source], idx)
	g.in[e.Target] = append(g.in[e.Target], idx)
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
//
// Начальная очередь — узлы без входящих рёбер по возрастанию ID,
// далее потомки в порядке добавления рёбер. Возвращает ErrCyclicGraph,
// если обработаны не все узлы.
func (g *Graph) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	queue := make([]string, 0, len(g.nodes))
	for i := range g.nodes {
		id := g.nodes[i].ID
		inDegree[id] = len(g.in[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, idx := range g.out[id] {
			target := g.edges[idx].Target
			inDegree[target]--
			if inDegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if len(order) != len(g.nodes) {
		// Первый по порядку узел, оставшийся в цикле
		var stuck string
		for i := range g.nodes {
			if inDegree[g.nodes[i].ID] > 0 {
				stuck = g.nodes[i].ID
				break
			}
		}
		return nil, nodeError(stuck, "node is part of a cycle", ErrCyclicGraph)
	}

	return order, nil
}

// walkFromTriggers отмечает узлы, достижимые из trigger-узлов.
func (g *Graph) walkFromTriggers() map[string]bool {
	seen := make(map[string]bool, len(g.nodes))
	stack := slices.Clone(g.triggers)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, idx := range g.out[id] {
			stack = append(stack, g.edges[idx].Target)
		}
	}
	return seen
}

// Node возвращает узел по ID.
func (g *Graph) Node(id string) (*domain.Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.nodes[i], true
}

// Outgoing возвращает исходящие рёбра узла в порядке добавления.
func (g *Graph) Outgoing(id string) []domain.Edge {
	return g.collect(g.out[id])
}

// Incoming возвращает входящие рёбра узла в порядке добавления.
func (g *Graph) Incoming(id string) []domain.Edge {
	return g.collect(g.in[id])
}

func (g *Graph) collect(idx []int) []domain.Edge {
	edges := make([]domain.Edge, len(idx))
	for i, j := range idx {
		edges[i] = g.edges[j]
	}
	return edges
}

// OutEdges возвращает индексы исходящих рёбер узла в порядке добавления.
// Индекс стабилен для графа и адресует ребро через Edge.
func (g *Graph) OutEdges(id string) []int {
	return slices.Clone(g.out[id])
}

// InEdges возвращает индексы входящих рёбер узла в порядке добавления.
func (g *Graph) InEdges(id string) []int {
	return slices.Clone(g.in[id])
}

// Edge возвращает ребро по индексу.
func (g *Graph) Edge(i int) domain.Edge {
	return g.edges[i]
}

// EdgeCount возвращает количество рёбер после схлопывания дубликатов.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Triggers возвращает trigger-узлы по возрастанию ID.
func (g *Graph) Triggers() []string {
	return slices.Clone(g.triggers)
}

// Order возвращает топологический порядок всех узлов.
func (g *Graph) Order() []string {
	return slices.Clone(g.order)
}

// Reachable проверяет, достижим ли узел из trigger-узлов.
func (g *Graph) Reachable(id string) bool {
	return g.reachable[id]
}

// Unreachable возвращает узлы, недостижимые из trigger-узлов,
// в порядке их объявления.
func (g *Graph) Unreachable() []string {
	var ids []string
	for i := range g.nodes {
		if !g.reachable[g.nodes[i].ID] {
			ids = append(ids, g.nodes[i].ID)
		}
	}
	return ids
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Validate проверяет структуру узлов и рёбер без построения порядка.
func Validate(nodes []domain.Node, edges []domain.Edge) error {
	if len(nodes) == 0 {
		return &InvalidGraphError{Message: "graph has no nodes", Err: ErrNoNodes}
	}

	ids := make(map[string]bool, len(nodes))
	for i := range nodes {
		id := nodes[i].ID
		if id == "" {
			return &InvalidGraphError{
				Message: fmt.Sprintf("node #%d has empty ID", i),
				Err:     ErrEmptyNodeID,
			}
		}
		if ids[id] {
			return nodeError(id, "duplicate node ID", ErrDuplicateNodeID)
		}
		ids[id] = true
	}

	hasInput := make(map[string]bool, len(nodes))
	for i, e := range edges {
		edgeID := e.ID
		if edgeID == "" {
			edgeID = fmt.Sprintf("#%d", i)
		}
		if !ids[e.Source] {
			return edgeError(edgeID, fmt.Sprintf("unknown source node %q", e.Source), ErrDanglingEdge)
		}
		if !ids[e.Target] {
			return edgeError(edgeID, fmt.Sprintf("unknown target node %q", e.Target), ErrDanglingEdge)
		}
		if e.Source == e.Target {
			return edgeError(edgeID, "edge connects node to itself", ErrSelfLoop)
		}
		hasInput[e.Target] = true
	}

	hasTrigger := false
	for i := range nodes {
		n := &nodes[i]
		if !n.IsTrigger() {
			continue
		}
		if hasInput[n.ID] {
			return nodeError(n.ID, "trigger node has incoming edge", ErrTriggerHasInput)
		}
		hasTrigger = true
	}
	if !hasTrigger {
		return &InvalidGraphError{Message: "graph has no trigger node", Err: ErrNoTrigger}
	}

	return nil
}
