package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/exchange"
	"github.com/Crypto-Goatz/jaxrun/internal/nodes"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

// --- Fakes ---

// fakeVenue — биржа в памяти.
type fakeVenue struct {
	price float64
	err   error
}

func (v *fakeVenue) Venue() string { return "paper" }

func (v *fakeVenue) FetchBalance(ctx context.Context) ([]exchange.Balance, error) {
	return nil, v.err
}

func (v *fakeVenue) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &exchange.Ticker{Symbol: symbol, Last: v.price}, nil
}

func (v *fakeVenue) PlaceOrder(ctx context.Context, p exchange.OrderParams) (*exchange.Order, error) {
	return nil, v.err
}

// countingEvaluator считает вычисления по ID узла.
type countingEvaluator struct {
	inner Evaluator
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingEvaluator) Evaluate(ctx context.Context, node *domain.Node, in nodes.Inputs, scope nodes.Scope) (*nodes.Outcome, error) {
	c.mu.Lock()
	c.calls[node.ID]++
	c.mu.Unlock()
	return c.inner.Evaluate(ctx, node, in, scope)
}

func (c *countingEvaluator) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// hookObserver вызывает onNode после каждого узла.
type hookObserver struct {
	onNode func()
}

func (o *hookObserver) RunStarted(string) {}
func (o *hookObserver) NodeFinished(domain.NodeKind, domain.NodeStatus, time.Duration) {
	if o.onNode != nil {
		o.onNode()
	}
}
func (o *hookObserver) RunFinished(domain.RunStatus, time.Duration) {}

func newTestEngine(venue *fakeVenue, obs Observer) (*Engine, *countingEvaluator) {
	f := exchange.NewFactory(exchange.Options{})
	f.Register("paper", func(exchange.Credentials, exchange.Options) exchange.Client { return venue })

	counter := &countingEvaluator{
		inner: nodes.NewEvaluator(nodes.Config{
			Factory:        f,
			Sender:         webhook.NewSender(webhook.Config{}),
			DefaultTimeout: 2 * time.Second,
		}),
		calls: make(map[string]int),
	}
	return New(Config{Evaluator: counter, Observer: obs}), counter
}

func mkNode(id, typ string, config map[string]any) domain.Node {
	return domain.Node{ID: id, Type: typ, Config: config}
}

func mkEdge(from, to string) domain.Edge {
	return domain.Edge{ID: from + "-" + to, Source: from, Target: to}
}

func mkBranch(from, to, branch string) domain.Edge {
	return domain.Edge{ID: from + "-" + to, Source: from, Target: to, SourceHandle: branch}
}

func note(id, msg string) domain.Node {
	return mkNode(id, "notification", map[string]any{"message": msg})
}

var paperExchange = []domain.ExchangeIntegration{
	{ID: "main", ExchangeType: "paper", APIKey: "k", APISecret: "s"},
}

// priceAlertFlow — trigger → ticker → condition → webhook (ветка true).
func priceAlertFlow(webhookURL string) Invocation {
	return Invocation{
		FlowID: "price-alert",
		Nodes: []domain.Node{
			mkNode("start", "trigger", map[string]any{"payload": map[string]any{"symbol": "BTC/USDT"}}),
			mkNode("fetch", "exchangeCall", map[string]any{
				"exchangeId": "main",
				"operation":  "ticker",
				"symbol":     "{{ symbol }}",
			}),
			mkNode("check", "condition", map[string]any{"expression": "price > 60000"}),
			mkNode("alert", "webhook", map[string]any{
				"url":   webhookURL,
				"event": "price.alert",
				"data":  map[string]any{"alert": true, "price": "{{ fetch_price }}"},
			}),
		},
		Edges: []domain.Edge{
			mkEdge("start", "fetch"),
			mkEdge("fetch", "check"),
			mkBranch("check", "alert", "true"),
		},
		Exchanges: paperExchange,
	}
}

func infoEntries(logs []domain.LogEntry, nodeID string) int {
	n := 0
	for _, l := range logs {
		if l.NodeID == nodeID && l.Level == domain.LogLevelInfo {
			n++
		}
	}
	return n
}

func hasEntry(logs []domain.LogEntry, level domain.LogLevel, nodeID string) bool {
	for _, l := range logs {
		if l.Level == level && l.NodeID == nodeID {
			return true
		}
	}
	return false
}

// --- End-to-end scenarios ---

func TestEngine_PriceAlertDelivered(t *testing.T) {
	var got webhook.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	eng, _ := newTestEngine(&fakeVenue{price: 67000}, nil)
	exec := eng.Execute(context.Background(), priceAlertFlow(server.URL))

	if !exec.Succeeded() {
		t.Fatalf("expected success, got error %q, logs %+v", exec.Error, exec.Logs)
	}
	if exec.Output != http.StatusOK {
		t.Errorf("expected output 200, got %v", exec.Output)
	}

	data, _ := got.Data.(map[string]any)
	if data["alert"] != true || data["price"] != 67000.0 {
		t.Errorf("unexpected webhook payload: %+v", got)
	}

	for _, id := range []string{"start", "fetch", "check", "alert"} {
		if n := infoEntries(exec.Logs, id); n != 1 {
			t.Errorf("node %s: expected 1 info entry, got %d", id, n)
		}
	}
	if !slices.Equal(exec.Order, []string{"start", "fetch", "check", "alert"}) {
		t.Errorf("unexpected order: %v", exec.Order)
	}

	result := exec.Result()
	if !result.Success || result.ExecutionID != exec.ID {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestEngine_TickerFailureAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("webhook must not be called")
	}))
	defer server.Close()

	venueErr := &exchange.ExchangeCallError{Venue: "paper", Operation: "ticker", Message: "exchange is down"}
	eng, _ := newTestEngine(&fakeVenue{err: venueErr}, nil)
	exec := eng.Execute(context.Background(), priceAlertFlow(server.URL))

	if exec.Succeeded() || exec.Status != domain.RunStatusFailed {
		t.Fatalf("expected failure, got %s", exec.Status)
	}
	if !strings.Contains(exec.Error, "exchange is down") {
		t.Errorf("error should carry adapter message, got %q", exec.Error)
	}
	if _, ok := exec.NodeOutputs["alert"]; ok {
		t.Error("webhook node must not have output")
	}
	if _, ok := exec.NodeOutputs["start"]; !ok {
		t.Error("completed nodes should stay in outputs")
	}
	if !hasEntry(exec.Logs, domain.LogLevelError, "fetch") {
		t.Error("expected error entry for fetch")
	}
	if exec.Output != nil {
		t.Errorf("failed run should have no output, got %v", exec.Output)
	}
}

// --- Scheduling properties ---

func TestEngine_CycleRejectedBeforeEvaluation(t *testing.T) {
	eng, counter := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", nil),
			note("a", "a"),
			note("b", "b"),
		},
		Edges: []domain.Edge{mkEdge("start", "a"), mkEdge("a", "b"), mkEdge("b", "a")},
	})

	if exec.Succeeded() {
		t.Fatal("cyclic graph must be rejected")
	}
	if counter.total() != 0 {
		t.Errorf("expected zero evaluations, got %d", counter.total())
	}
	if !strings.Contains(exec.Error, "cycle") {
		t.Errorf("unexpected error: %s", exec.Error)
	}
	if len(exec.Order) != 0 || len(exec.NodeOutputs) != 0 {
		t.Errorf("nothing should run: %+v", exec)
	}
}

func TestEngine_InvalidGraph(t *testing.T) {
	eng, counter := newTestEngine(&fakeVenue{}, nil)

	tests := []struct {
		name string
		inv  Invocation
	}{
		{"no trigger", Invocation{Nodes: []domain.Node{note("a", "a")}}},
		{"dangling edge", Invocation{
			Nodes: []domain.Node{mkNode("start", "trigger", nil)},
			Edges: []domain.Edge{mkEdge("start", "ghost")},
		}},
		{"empty", Invocation{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := eng.Execute(context.Background(), tt.inv)
			if exec.Status != domain.RunStatusFailed || exec.Error == "" {
				t.Errorf("expected validation failure, got %s %q", exec.Status, exec.Error)
			}
			if len(exec.Logs) == 0 {
				t.Error("report should carry logs")
			}
		})
	}
	if counter.total() != 0 {
		t.Errorf("expected zero evaluations, got %d", counter.total())
	}
}

func TestEngine_BranchPruning(t *testing.T) {
	eng, counter := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", map[string]any{"payload": map[string]any{"price": 100}}),
			mkNode("check", "condition", map[string]any{"expression": "price > 1000"}),
			note("high", "high"),
			mkNode("high-calc", "transform", map[string]any{"expression": "high + 1"}),
			note("low", "low"),
			note("join", "done"),
		},
		Edges: []domain.Edge{
			mkEdge("start", "check"),
			mkBranch("check", "high", "true"),
			mkEdge("high", "high-calc"),
			mkBranch("check", "low", "false"),
			mkEdge("high-calc", "join"),
			mkEdge("low", "join"),
		},
	})

	if !exec.Succeeded() {
		t.Fatalf("expected success, got %q", exec.Error)
	}
	for _, id := range []string{"high", "high-calc"} {
		if _, ok := exec.NodeOutputs[id]; ok {
			t.Errorf("pruned node %s must not have output", id)
		}
		if counter.calls[id] != 0 {
			t.Errorf("pruned node %s must not be evaluated", id)
		}
	}
	for _, id := range []string{"low", "join"} {
		if _, ok := exec.NodeOutputs[id]; !ok {
			t.Errorf("node %s on the taken branch should complete", id)
		}
	}
	if !slices.Equal(exec.Pruned, []string{"high", "high-calc"}) {
		t.Errorf("unexpected pruned list: %v", exec.Pruned)
	}
	if exec.Output != "done" {
		t.Errorf("expected last node output, got %v", exec.Output)
	}
}

// Отсутствующая или нечисловая цена не открывает ветку покупки.
func TestEngine_ConditionOnMissingValueTakesFalseBranch(t *testing.T) {
	tests := []struct {
		name string
		left any
		op   string
	}{
		{"unset variable", "{{ missing_price }}", "<"},
		{"non-numeric", "abc", ">"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, counter := newTestEngine(&fakeVenue{}, nil)

			exec := eng.Execute(context.Background(), Invocation{
				Nodes: []domain.Node{
					mkNode("start", "trigger", nil),
					mkNode("check", "condition", map[string]any{
						"leftValue":  tt.left,
						"operator":   tt.op,
						"rightValue": 60000,
					}),
					note("buy", "buy"),
					note("hold", "hold"),
				},
				Edges: []domain.Edge{
					mkEdge("start", "check"),
					mkBranch("check", "buy", "true"),
					mkBranch("check", "hold", "false"),
				},
			})

			if !exec.Succeeded() {
				t.Fatalf("expected success, got %q", exec.Error)
			}
			if counter.calls["buy"] != 0 {
				t.Error("buy must not be evaluated")
			}
			if !slices.Equal(exec.Pruned, []string{"buy"}) {
				t.Errorf("expected buy pruned, got %v", exec.Pruned)
			}
			if _, ok := exec.NodeOutputs["hold"]; !ok {
				t.Error("hold should complete")
			}
		})
	}
}

func TestEngine_DeterministicOrder(t *testing.T) {
	inv := Invocation{
		Nodes: []domain.Node{
			note("z", "z"),
			mkNode("b-start", "trigger", nil),
			note("y", "y"),
			mkNode("a-start", "trigger", nil),
			note("x", "x"),
		},
		Edges: []domain.Edge{
			mkEdge("b-start", "y"),
			mkEdge("a-start", "x"),
			mkEdge("x", "z"),
			mkEdge("y", "z"),
		},
	}

	eng, _ := newTestEngine(&fakeVenue{}, nil)
	first := eng.Execute(context.Background(), inv)
	second := eng.Execute(context.Background(), inv)

	want := []string{"a-start", "b-start", "x", "y", "z"}
	if !slices.Equal(first.Order, want) {
		t.Errorf("expected order %v, got %v", want, first.Order)
	}
	if !slices.Equal(first.Order, second.Order) || first.Output != second.Output {
		t.Errorf("runs differ: %v/%v vs %v/%v", first.Order, first.Output, second.Order, second.Output)
	}
	if first.ID == second.ID {
		t.Error("each run should get its own execution id")
	}
}

func TestEngine_EachNodeEvaluatedOnce(t *testing.T) {
	eng, counter := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", nil),
			note("a", "a"),
			note("b", "b"),
			note("c", "c"),
			note("d", "d"),
		},
		Edges: []domain.Edge{
			mkEdge("start", "a"),
			mkEdge("start", "b"),
			mkEdge("a", "c"),
			mkEdge("b", "c"),
			mkEdge("a", "d"),
			mkEdge("c", "d"),
			mkEdge("b", "d"),
			{ID: "dup", Source: "a", Target: "c"},
		},
	})

	if !exec.Succeeded() {
		t.Fatalf("unexpected failure: %s", exec.Error)
	}
	for id, n := range counter.calls {
		if n != 1 {
			t.Errorf("node %s evaluated %d times", id, n)
		}
	}
	if len(counter.calls) != 5 {
		t.Errorf("expected 5 evaluated nodes, got %d", len(counter.calls))
	}
}

// --- Failure policy ---

func TestEngine_OptionalExchangeFailure(t *testing.T) {
	venue := &fakeVenue{err: errors.New("timeout from venue")}

	build := func(optional bool) Invocation {
		return Invocation{
			Nodes: []domain.Node{
				mkNode("start", "trigger", nil),
				mkNode("fetch", "priceCheck", map[string]any{
					"exchangeId": "main",
					"symbol":     "BTC/USDT",
					"optional":   optional,
				}),
				note("report", "report"),
			},
			Edges:     []domain.Edge{mkEdge("start", "fetch"), mkEdge("start", "report")},
			Exchanges: paperExchange,
		}
	}

	eng, _ := newTestEngine(venue, nil)

	exec := eng.Execute(context.Background(), build(true))
	if !exec.Succeeded() {
		t.Fatalf("optional failure should not abort: %s", exec.Error)
	}
	if !hasEntry(exec.Logs, domain.LogLevelWarn, "fetch") {
		t.Error("expected warn entry for fetch")
	}
	if v, ok := exec.NodeOutputs["fetch"]; !ok || v != nil {
		t.Errorf("recovered node should have undefined output, got %v (%t)", v, ok)
	}

	exec = eng.Execute(context.Background(), build(false))
	if exec.Succeeded() {
		t.Fatal("required exchange failure should abort")
	}
}

func TestEngine_MissingInputAfterRecovery(t *testing.T) {
	eng, _ := newTestEngine(&fakeVenue{err: errors.New("down")}, nil)

	build := func(config map[string]any) Invocation {
		return Invocation{
			Nodes: []domain.Node{
				mkNode("start", "trigger", nil),
				mkNode("fetch", "priceCheck", map[string]any{"exchangeId": "main", "symbol": "BTC/USDT", "optional": true}),
				mkNode("calc", "transform", config),
			},
			Edges:     []domain.Edge{mkEdge("start", "fetch"), mkEdge("fetch", "calc")},
			Exchanges: paperExchange,
		}
	}

	exec := eng.Execute(context.Background(), build(map[string]any{"expression": "fetch * 2"}))
	if exec.Succeeded() || !strings.Contains(exec.Error, "did not produce a value") {
		t.Errorf("expected missing input failure, got %s %q", exec.Status, exec.Error)
	}

	exec = eng.Execute(context.Background(), build(map[string]any{"expression": "fetch * 2", "default": 21.0}))
	if !exec.Succeeded() || exec.Output != 42.0 {
		t.Errorf("default should satisfy missing input, got %s %v %q", exec.Status, exec.Output, exec.Error)
	}
}

func TestEngine_WebhookFailureNonFatalByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	build := func(policy map[string]any) Invocation {
		cfg := map[string]any{"url": server.URL}
		for k, v := range policy {
			cfg[k] = v
		}
		return Invocation{
			Nodes: []domain.Node{
				mkNode("start", "trigger", nil),
				mkNode("hook", "webhook", cfg),
			},
			Edges: []domain.Edge{mkEdge("start", "hook")},
		}
	}

	eng, _ := newTestEngine(&fakeVenue{}, nil)

	for _, policy := range []map[string]any{nil, {"required": false}} {
		exec := eng.Execute(context.Background(), build(policy))
		if !exec.Succeeded() || !hasEntry(exec.Logs, domain.LogLevelWarn, "hook") {
			t.Errorf("%v: failed delivery should be a warning, got %s %+v", policy, exec.Status, exec.Logs)
		}
	}

	for _, policy := range []map[string]any{{"required": true}, {"optional": false}} {
		exec := eng.Execute(context.Background(), build(policy))
		if exec.Succeeded() {
			t.Errorf("%v: webhook failure should abort", policy)
		}
	}
}

func TestEngine_UnknownNodeType(t *testing.T) {
	eng, _ := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{mkNode("start", "trigger", nil), mkNode("x", "teleport", nil)},
		Edges: []domain.Edge{mkEdge("start", "x")},
	})
	if exec.Succeeded() || !strings.Contains(exec.Error, "unknown node type") {
		t.Errorf("unknown node type should abort, got %s %q", exec.Status, exec.Error)
	}

	exec = eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{mkNode("start", "trigger", nil), mkNode("x", "teleport", map[string]any{"optional": true})},
		Edges: []domain.Edge{mkEdge("start", "x")},
	})
	if !exec.Succeeded() {
		t.Errorf("optional unknown node should be recovered, got %q", exec.Error)
	}
}

// --- Cancellation ---

func TestEngine_CancelledAfterFirstNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	eng, counter := newTestEngine(&fakeVenue{}, &hookObserver{onNode: func() { once.Do(cancel) }})

	exec := eng.Execute(ctx, Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", nil),
			mkNode("wait", "delay", map[string]any{"delay": 10}),
			note("after", "after"),
		},
		Edges: []domain.Edge{mkEdge("start", "wait"), mkEdge("wait", "after")},
	})

	if exec.Status != domain.RunStatusCancelled || exec.Error != "cancelled" {
		t.Fatalf("expected cancelled run, got %s %q", exec.Status, exec.Error)
	}
	if exec.Succeeded() {
		t.Error("cancelled run is not a success")
	}
	if counter.total() != 1 {
		t.Errorf("only the first node should run, got %d evaluations", counter.total())
	}

	messages := make([]string, len(exec.Logs))
	for i, l := range exec.Logs {
		messages[i] = l.Message
	}
	want := []string{"Starting workflow execution", "Workflow started", "Execution cancelled"}
	if !slices.Equal(messages, want) {
		t.Errorf("expected logs %v, got %v", want, messages)
	}
}

func TestEngine_CancelledDuringLastNodeSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := 0
	eng, counter := newTestEngine(&fakeVenue{}, &hookObserver{onNode: func() {
		finished++
		if finished == 2 {
			cancel()
		}
	}})

	exec := eng.Execute(ctx, Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", nil),
			note("done", "done"),
		},
		Edges: []domain.Edge{mkEdge("start", "done")},
	})

	if !exec.Succeeded() {
		t.Fatalf("run with every node done must succeed, got %s %q", exec.Status, exec.Error)
	}
	if counter.total() != 2 {
		t.Errorf("expected 2 evaluations, got %d", counter.total())
	}
	if exec.Output != "done" {
		t.Errorf("expected last node output, got %v", exec.Output)
	}
	if hasEntry(exec.Logs, domain.LogLevelWarn, "") {
		t.Error("completed run must not log cancellation")
	}
}

// --- Outputs, variables and ids ---

func TestEngine_SinkOutput(t *testing.T) {
	eng, _ := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", nil),
			mkNode("result", "notification", map[string]any{"message": "chosen", "sink": true}),
			note("later", "later"),
		},
		Edges: []domain.Edge{mkEdge("start", "result"), mkEdge("result", "later")},
	})

	if exec.Output != "chosen" {
		t.Errorf("expected sink output, got %v", exec.Output)
	}
}

func TestEngine_VariableWritesVisibleDownstream(t *testing.T) {
	eng, _ := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{
			mkNode("start", "trigger", nil),
			mkNode("set", "setVariable", map[string]any{"variableName": "target", "value": 61000}),
			mkNode("say", "message", map[string]any{"message": "target={{ target }} pair={{ pair }}"}),
		},
		Edges:     []domain.Edge{mkEdge("start", "set"), mkEdge("set", "say")},
		Variables: map[string]any{"pair": "ETH/USDT"},
	})

	if exec.Output != "target=61000 pair=ETH/USDT" {
		t.Errorf("unexpected output: %v", exec.Output)
	}
}

func TestEngine_UnreachableNodeWarned(t *testing.T) {
	eng, counter := newTestEngine(&fakeVenue{}, nil)

	exec := eng.Execute(context.Background(), Invocation{
		Nodes: []domain.Node{mkNode("start", "trigger", nil), note("orphan", "never")},
	})

	if !exec.Succeeded() {
		t.Fatalf("unexpected failure: %s", exec.Error)
	}
	if !hasEntry(exec.Logs, domain.LogLevelWarn, "orphan") {
		t.Error("expected warn entry for unreachable node")
	}
	if counter.calls["orphan"] != 0 {
		t.Error("unreachable node must not run")
	}
}

func TestEngine_ExecutionID(t *testing.T) {
	eng, _ := newTestEngine(&fakeVenue{}, nil)

	run := eng.NewRun(Invocation{ExecutionID: "exec_fixed", Nodes: []domain.Node{mkNode("start", "trigger", nil)}})
	if run.ExecutionID() != "exec_fixed" {
		t.Errorf("expected preset id, got %s", run.ExecutionID())
	}
	if run.Phase() != PhaseInitializing || run.Report() != nil {
		t.Error("run should not start before Execute")
	}

	exec := run.Execute(context.Background())
	if exec.ID != "exec_fixed" || run.Phase() != PhaseCompleted {
		t.Errorf("unexpected state: %s %s", exec.ID, run.Phase())
	}
	if again := run.Execute(context.Background()); again != exec {
		t.Error("second Execute should return the same report")
	}

	if !regexp.MustCompile(`^exec_\d+_[0-9a-f]{7}$`).MatchString(NewExecutionID()) {
		t.Errorf("unexpected id format: %s", NewExecutionID())
	}
}

func TestExecutionContext(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	vars := map[string]any{"a": 1}
	ec := NewExecutionContext("exec-1", "flow-1", vars, []domain.ExchangeIntegration{
		{ID: "main", Name: "first"},
		{ID: "main", Name: "second"},
	}, func() time.Time { return now })

	ec.WriteVariable("b", 2)
	if _, ok := vars["b"]; ok {
		t.Error("caller variables must not be mutated")
	}
	if v, ok := ec.ReadVariable("b"); !ok || v != 2 {
		t.Errorf("unexpected variable: %v", v)
	}

	snapshot := ec.Variables()
	snapshot["c"] = 3
	if _, ok := ec.ReadVariable("c"); ok {
		t.Error("snapshot must be a copy")
	}

	if x, _ := ec.Exchange("main"); x.Name != "first" {
		t.Errorf("first integration should win, got %s", x.Name)
	}

	ec.Record("n1", "out")
	ec.RecordRecovered("n2")
	outputs := ec.NodeOutputs()
	if outputs["n1"] != "out" || len(outputs) != 2 {
		t.Errorf("unexpected outputs: %v", outputs)
	}

	ec.Log(domain.LogLevelInfo, "hello", "n1")
	logs := ec.Logs()
	if len(logs) != 1 || !logs[0].Timestamp.Equal(now) || logs[0].NodeID != "n1" {
		t.Errorf("unexpected logs: %+v", logs)
	}
}

func TestBuildReport_InvalidGraphHasEmptyLogsSlice(t *testing.T) {
	ec := NewExecutionContext("exec-1", "flow-1", nil, nil, nil)
	exec := buildReport(ec, nil, domain.RunStatusFailed, engine.ErrNoNodes.Error(), "ignored", time.Now())

	if exec.Logs == nil {
		t.Error("logs should be an empty slice, not nil")
	}
	if exec.Output != nil {
		t.Error("failed report should drop output")
	}
}
