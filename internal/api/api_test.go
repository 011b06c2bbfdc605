package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
	"github.com/Crypto-Goatz/jaxrun/internal/runner"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
)

// ==================== Fakes ====================

type fakeFlows struct {
	mu        sync.Mutex
	flows     map[uuid.UUID]*domain.Flow
	createErr error
}

func newFakeFlows(flows ...*domain.Flow) *fakeFlows {
	f := &fakeFlows{flows: map[uuid.UUID]*domain.Flow{}}
	for _, flow := range flows {
		f.flows[flow.ID] = flow
	}
	return f
}

func (f *fakeFlows) Create(_ context.Context, flow *domain.Flow) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flows[flow.ID] = flow
	return nil
}

func (f *fakeFlows) GetByID(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flow, ok := f.flows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return flow, nil
}

func (f *fakeFlows) List(context.Context) ([]domain.Flow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Flow
	for _, flow := range f.flows {
		out = append(out, *flow)
	}
	return out, nil
}

func (f *fakeFlows) Update(_ context.Context, flow *domain.Flow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.flows[flow.ID]; !ok {
		return repo.ErrNotFound
	}
	f.flows[flow.ID] = flow
	return nil
}

func (f *fakeFlows) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.flows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.flows, id)
	return nil
}

type fakeExecutions struct {
	mu    sync.Mutex
	saved map[string]*domain.Execution
}

func newFakeExecutions() *fakeExecutions {
	return &fakeExecutions{saved: map[string]*domain.Execution{}}
}

func (f *fakeExecutions) Save(_ context.Context, exec *domain.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[exec.ID] = exec
	return nil
}

func (f *fakeExecutions) GetByID(_ context.Context, id string) (*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.saved[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return exec, nil
}

func (f *fakeExecutions) List(_ context.Context, filter repo.ExecutionFilter) ([]domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Execution
	for _, exec := range f.saved {
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		out = append(out, *exec)
	}
	return out, nil
}

type fakeSchedules struct {
	schedules map[uuid.UUID]*domain.Schedule
}

func (f *fakeSchedules) Create(_ context.Context, s *domain.Schedule) error {
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeSchedules) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return s, nil
}

func (f *fakeSchedules) List(context.Context, repo.ScheduleFilter) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for _, s := range f.schedules {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSchedules) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.schedules[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.schedules, id)
	return nil
}

func (f *fakeSchedules) SetEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	s, ok := f.schedules[id]
	if !ok {
		return repo.ErrNotFound
	}
	s.Enabled = enabled
	return nil
}

type fakeWebhooks struct {
	subs []domain.WebhookSubscription
}

func (f *fakeWebhooks) Create(_ context.Context, s *domain.WebhookSubscription) error {
	f.subs = append(f.subs, *s)
	return nil
}

func (f *fakeWebhooks) List(_ context.Context, activeOnly bool) ([]domain.WebhookSubscription, error) {
	var out []domain.WebhookSubscription
	for _, s := range f.subs {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeWebhooks) Delete(_ context.Context, id uuid.UUID) error {
	for i, s := range f.subs {
		if s.ID == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

type fakePublisher struct {
	mu        sync.Mutex
	published []mq.FlowTriggeredPayload
}

func (f *fakePublisher) PublishFlowTriggered(_ context.Context, p mq.FlowTriggeredPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, p)
	return nil
}

// ==================== Helpers ====================

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func greetingNodes() ([]domain.Node, []domain.Edge) {
	return []domain.Node{
			{ID: "start", Type: "trigger"},
			{ID: "set", Type: "setVariable", Config: map[string]any{"variableName": "greeting", "value": "hello {{ who }}"}},
			{ID: "say", Type: "notification", Config: map[string]any{"message": "{{ greeting }}", "sink": true}},
		}, []domain.Edge{
			{ID: "e1", Source: "start", Target: "set"},
			{ID: "e2", Source: "set", Target: "say"},
		}
}

func greetingFlow() *domain.Flow {
	nodes, edges := greetingNodes()
	return &domain.Flow{
		ID:        uuid.New(),
		Name:      "greeting",
		Nodes:     nodes,
		Edges:     edges,
		Variables: map[string]any{"who": "flow"},
		IsActive:  true,
	}
}

func newTestMux(cfg Config) *http.ServeMux {
	cfg.Logger = discardLogger()
	cfg.Now = func() time.Time { return testNow }
	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

// ==================== Executions ====================

func TestExecute_ReturnsResult(t *testing.T) {
	execs := newFakeExecutions()
	mux := newTestMux(Config{Executions: execs})

	nodes, edges := greetingNodes()
	rec := do(t, mux, http.MethodPost, "/api/v1/executions", orchestrator.Invocation{
		FlowID:    "flow-1",
		Nodes:     nodes,
		Edges:     edges,
		Variables: map[string]any{"who": "api"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var result domain.ExecutionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Output != "hello api" {
		t.Errorf("unexpected output: %v", result.Output)
	}
	if !strings.HasPrefix(result.ExecutionID, "exec_") {
		t.Errorf("unexpected execution id %q", result.ExecutionID)
	}
	if len(result.Logs) == 0 || result.Logs[0].Message != "Starting workflow execution" {
		t.Errorf("unexpected logs: %+v", result.Logs)
	}
	if _, ok := execs.saved[result.ExecutionID]; !ok {
		t.Error("execution was not saved to history")
	}
}

func TestExecute_InvalidGraphReportedInResult(t *testing.T) {
	mux := newTestMux(Config{})

	rec := do(t, mux, http.MethodPost, "/api/v1/executions", orchestrator.Invocation{
		Nodes: []domain.Node{{ID: "a", Type: "notification"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var result domain.ExecutionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("expected failure with error, got %+v", result)
	}
}

func TestExecute_BadRequest(t *testing.T) {
	mux := newTestMux(Config{})

	rec := do(t, mux, http.MethodPost, "/api/v1/executions", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestValidate(t *testing.T) {
	mux := newTestMux(Config{})
	nodes, edges := greetingNodes()

	rec := do(t, mux, http.MethodPost, "/api/v1/executions/validate", ValidateRequest{Nodes: nodes, Edges: edges})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	nodes = append(nodes, domain.Node{ID: "bad", Type: "teleport"})
	edges = append(edges, domain.Edge{ID: "e3", Source: "say", Target: "bad"})
	rec = do(t, mux, http.MethodPost, "/api/v1/executions/validate", ValidateRequest{Nodes: nodes, Edges: edges})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != ErrCodeInvalidGraph || len(resp.Error.Details) != 1 {
		t.Errorf("unexpected error body: %+v", resp.Error)
	}
}

func TestGetAndListExecutions(t *testing.T) {
	execs := newFakeExecutions()
	execs.saved["exec_1_aaaaaaa"] = &domain.Execution{ID: "exec_1_aaaaaaa", Status: domain.RunStatusSucceeded}
	execs.saved["exec_2_bbbbbbb"] = &domain.Execution{ID: "exec_2_bbbbbbb", Status: domain.RunStatusFailed}
	mux := newTestMux(Config{Executions: execs})

	rec := do(t, mux, http.MethodGet, "/api/v1/executions/exec_1_aaaaaaa", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeData[domain.Execution](t, rec); got.ID != "exec_1_aaaaaaa" {
		t.Errorf("unexpected execution %q", got.ID)
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/executions/exec_missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/executions?status=FAILED", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeData[[]domain.Execution](t, rec); len(got) != 1 || got[0].ID != "exec_2_bbbbbbb" {
		t.Errorf("unexpected filtered list: %+v", got)
	}

	for _, q := range []string{"status=BOGUS", "limit=0", "offset=-1"} {
		rec = do(t, mux, http.MethodGet, "/api/v1/executions?"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestExecutions_NoStorage(t *testing.T) {
	mux := newTestMux(Config{})

	rec := do(t, mux, http.MethodGet, "/api/v1/executions", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// ==================== Flows ====================

func TestCreateFlow(t *testing.T) {
	flows := newFakeFlows()
	mux := newTestMux(Config{Flows: flows})
	nodes, edges := greetingNodes()

	rec := do(t, mux, http.MethodPost, "/api/v1/flows", FlowRequest{Name: "greeting", Nodes: nodes, Edges: edges})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decodeData[domain.Flow](t, rec)
	if !created.IsActive || !created.CreatedAt.Equal(testNow) {
		t.Errorf("unexpected flow: %+v", created)
	}
	if _, err := flows.GetByID(context.Background(), created.ID); err != nil {
		t.Errorf("flow not stored: %v", err)
	}
}

func TestCreateFlow_Rejected(t *testing.T) {
	nodes, edges := greetingNodes()

	tests := []struct {
		name   string
		flows  *fakeFlows
		body   any
		status int
	}{
		{"bad json", newFakeFlows(), "{", http.StatusBadRequest},
		{"missing name", newFakeFlows(), FlowRequest{Nodes: nodes, Edges: edges}, http.StatusBadRequest},
		{"cycle", newFakeFlows(), FlowRequest{
			Name:  "loop",
			Nodes: nodes,
			Edges: append(append([]domain.Edge{}, edges...), domain.Edge{ID: "back", Source: "say", Target: "set"}),
		}, http.StatusUnprocessableEntity},
		{"duplicate", &fakeFlows{flows: map[uuid.UUID]*domain.Flow{}, createErr: repo.ErrAlreadyExists},
			FlowRequest{Name: "greeting", Nodes: nodes, Edges: edges}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(Config{Flows: tt.flows})
			rec := do(t, mux, http.MethodPost, "/api/v1/flows", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
		})
	}
}

func TestGetUpdateDeleteFlow(t *testing.T) {
	flow := greetingFlow()
	flows := newFakeFlows(flow)
	mux := newTestMux(Config{Flows: flows})
	path := "/api/v1/flows/" + flow.ID.String()

	if rec := do(t, mux, http.MethodGet, "/api/v1/flows/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/v1/flows/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	inactive := false
	rec := do(t, mux, http.MethodPut, path, FlowRequest{Nodes: flow.Nodes, Edges: flow.Edges, IsActive: &inactive})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	updated := decodeData[domain.Flow](t, rec)
	if updated.Name != "greeting" || updated.IsActive {
		t.Errorf("unexpected update result: name=%q active=%v", updated.Name, updated.IsActive)
	}

	if rec := do(t, mux, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestTriggerFlow_Queued(t *testing.T) {
	flow := greetingFlow()
	pub := &fakePublisher{}
	mux := newTestMux(Config{Flows: newFakeFlows(flow), Publisher: pub})

	rec := do(t, mux, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/trigger",
		TriggerFlowRequest{Variables: map[string]any{"who": "button"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	resp := decodeData[TriggerResponse](t, rec)
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published trigger, got %d", len(pub.published))
	}
	p := pub.published[0]
	if p.ExecutionID != resp.ExecutionID || p.FlowID != flow.ID || p.Source != mq.SourceManual {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Variables["who"] != "button" {
		t.Errorf("variables not forwarded: %v", p.Variables)
	}
}

func TestTriggerFlow_Inline(t *testing.T) {
	flow := greetingFlow()
	flows := newFakeFlows(flow)
	execs := newFakeExecutions()
	r := runner.New(runner.Config{Flows: flows, Executions: execs, Logger: discardLogger()})
	mux := newTestMux(Config{Flows: flows, Executions: execs, Runner: r})

	rec := do(t, mux, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/trigger", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	result := decodeData[domain.ExecutionResult](t, rec)
	if !result.Success || result.Output != "hello flow" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(execs.saved) != 1 {
		t.Errorf("expected execution in history, got %d", len(execs.saved))
	}
}

func TestTriggerFlow_NoExecutor(t *testing.T) {
	flow := greetingFlow()
	mux := newTestMux(Config{Flows: newFakeFlows(flow)})

	rec := do(t, mux, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/trigger", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// ==================== Schedules ====================

func TestCreateSchedule(t *testing.T) {
	flow := greetingFlow()
	schedules := &fakeSchedules{schedules: map[uuid.UUID]*domain.Schedule{}}
	mux := newTestMux(Config{Flows: newFakeFlows(flow), Schedules: schedules})
	path := "/api/v1/flows/" + flow.ID.String() + "/schedules"

	rec := do(t, mux, http.MethodPost, path, CreateScheduleRequest{Name: "every minute", IntervalSec: 60})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decodeData[domain.Schedule](t, rec)
	if created.FlowID != flow.ID || !created.Enabled || created.Timezone != "UTC" {
		t.Errorf("unexpected schedule: %+v", created)
	}
	if created.NextDueAt == nil || !created.NextDueAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("unexpected next due: %v", created.NextDueAt)
	}

	rec = do(t, mux, http.MethodPut, "/api/v1/schedules/"+created.ID.String()+"/enabled", SetEnabledRequest{Enabled: false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decodeData[domain.Schedule](t, rec).Enabled {
		t.Error("schedule must be disabled")
	}

	if rec := do(t, mux, http.MethodDelete, "/api/v1/schedules/"+created.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestCreateSchedule_Invalid(t *testing.T) {
	flow := greetingFlow()
	mux := newTestMux(Config{
		Flows:     newFakeFlows(flow),
		Schedules: &fakeSchedules{schedules: map[uuid.UUID]*domain.Schedule{}},
	})
	path := "/api/v1/flows/" + flow.ID.String() + "/schedules"

	bodies := []CreateScheduleRequest{
		{},
		{CronExpr: "every day at noon"},
		{IntervalSec: 60, Timezone: "Mars/Olympus"},
	}
	for _, body := range bodies {
		if rec := do(t, mux, http.MethodPost, path, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%+v: expected 400, got %d", body, rec.Code)
		}
	}

	rec := do(t, mux, http.MethodPost, "/api/v1/flows/"+uuid.NewString()+"/schedules", CreateScheduleRequest{IntervalSec: 60})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown flow, got %d", rec.Code)
	}
}

// ==================== Webhooks ====================

func TestWebhookSubscriptions(t *testing.T) {
	hooks := &fakeWebhooks{}
	mux := newTestMux(Config{Webhooks: hooks})

	rec := do(t, mux, http.MethodPost, "/api/v1/webhooks", CreateWebhookRequest{Name: "crm", URL: "ftp://example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-http url, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/webhooks", CreateWebhookRequest{
		Name:   "crm",
		URL:    "https://example.com/hook",
		Secret: "s3cret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "s3cret") {
		t.Error("secret must not be returned")
	}
	if len(hooks.subs) != 1 || hooks.subs[0].Secret != "s3cret" || !hooks.subs[0].IsActive {
		t.Errorf("unexpected stored subscriptions: %+v", hooks.subs)
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/webhooks", nil)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "s3cret") {
		t.Errorf("unexpected list response %d: %s", rec.Code, rec.Body)
	}

	if rec := do(t, mux, http.MethodDelete, "/api/v1/webhooks/"+hooks.subs[0].ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestReceiveWebhook_FansOutAndTriggers(t *testing.T) {
	var mu sync.Mutex
	var received []string
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received = append(received, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	hooks := &fakeWebhooks{subs: []domain.WebhookSubscription{
		{ID: uuid.New(), URL: receiver.URL + "/all", IsActive: true},
		{ID: uuid.New(), URL: receiver.URL + "/prices", Events: []string{"price.alert"}, IsActive: true},
		{ID: uuid.New(), URL: receiver.URL + "/orders", Events: []string{"order.filled"}, IsActive: true},
		{ID: uuid.New(), URL: receiver.URL + "/off", IsActive: false},
	}}
	flow := greetingFlow()
	pub := &fakePublisher{}
	mux := newTestMux(Config{Flows: newFakeFlows(flow), Webhooks: hooks, Publisher: pub})

	rec := do(t, mux, http.MethodPost, "/api/v1/hooks/price.alert?flow_id="+flow.ID.String(),
		map[string]any{"symbol": "BTCUSDT", "price": 61000})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	resp := decodeData[HookResponse](t, rec)
	if resp.Delivered != 2 || resp.Failed != 0 {
		t.Errorf("expected 2 deliveries, got %+v", resp)
	}
	mu.Lock()
	if len(received) != 2 {
		t.Errorf("unexpected receiver hits: %v", received)
	}
	mu.Unlock()

	if len(pub.published) != 1 {
		t.Fatalf("expected flow trigger, got %d", len(pub.published))
	}
	p := pub.published[0]
	if p.Source != mq.SourceWebhook || p.ExecutionID != resp.ExecutionID {
		t.Errorf("unexpected payload: %+v", p)
	}
	body, ok := p.Variables["webhook"].(map[string]any)
	if !ok || body["symbol"] != "BTCUSDT" {
		t.Errorf("webhook body not forwarded: %v", p.Variables)
	}
}

func TestReceiveWebhook_InactiveFlow(t *testing.T) {
	flow := greetingFlow()
	flow.IsActive = false
	pub := &fakePublisher{}
	mux := newTestMux(Config{Flows: newFakeFlows(flow), Publisher: pub})

	rec := do(t, mux, http.MethodPost, "/api/v1/hooks/tick?flow_id="+flow.ID.String(), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if len(pub.published) != 0 {
		t.Error("inactive flow must not be triggered")
	}
}

func TestReceiveWebhook_NonJSONBody(t *testing.T) {
	mux := newTestMux(Config{})

	rec := do(t, mux, http.MethodPost, "/api/v1/hooks/tick", "plain text")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ==================== Middleware ====================

func TestMiddleware_CountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	mux := newTestMux(Config{Metrics: telemetry.NewMetrics(reg)})

	do(t, mux, http.MethodPost, "/api/v1/executions", "{")
	do(t, mux, http.MethodGet, "/api/v1/executions", nil)

	n, err := testutil.GatherAndCount(reg, "jaxrun_http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("expected series for codes 400 and 503, got %d", n)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHandleRepoError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{repo.ErrNotFound, http.StatusNotFound},
		{errors.Join(errors.New("insert"), repo.ErrAlreadyExists), http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if !HandleRepoError(rec, discardLogger(), tt.err, "missing") {
			t.Fatalf("%v: expected handled", tt.err)
		}
		if rec.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rec.Code)
		}
	}

	if HandleRepoError(httptest.NewRecorder(), discardLogger(), nil, "") {
		t.Error("nil error must not be handled")
	}
}
