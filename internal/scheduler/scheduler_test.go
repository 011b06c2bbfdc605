package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
)

type recordedRun struct {
	id          uuid.UUID
	prevDue     time.Time
	executionID string
	nextDue     time.Time
}

type fakeSchedules struct {
	due      []domain.Schedule
	listErr  error
	recorded []recordedRun
	stale    bool
}

func (f *fakeSchedules) ListDue(_ context.Context, _ time.Time, _ int) ([]domain.Schedule, error) {
	return f.due, f.listErr
}

func (f *fakeSchedules) RecordRun(_ context.Context, id uuid.UUID, prevDue time.Time, executionID string, _, nextDue time.Time) error {
	if f.stale {
		return repo.ErrNotFound
	}
	f.recorded = append(f.recorded, recordedRun{id, prevDue, executionID, nextDue})
	return nil
}

type fakeFlows map[uuid.UUID]*domain.Flow

func (f fakeFlows) GetByID(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	if flow, ok := f[id]; ok {
		return flow, nil
	}
	return nil, repo.ErrNotFound
}

type fakePublisher struct {
	mu        sync.Mutex
	published []mq.FlowTriggeredPayload
	err       error
}

func (f *fakePublisher) PublishFlowTriggered(_ context.Context, p mq.FlowTriggeredPayload) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, p)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

var tickNow = time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)

func dueSchedule(flowID uuid.UUID) domain.Schedule {
	due := tickNow.Add(-30 * time.Second)
	return domain.Schedule{
		ID:          uuid.New(),
		FlowID:      flowID,
		IntervalSec: 60,
		Timezone:    "UTC",
		Enabled:     true,
		NextDueAt:   &due,
		Variables:   map[string]any{"symbol": "ETH/USDT"},
	}
}

func newTestScheduler(s *fakeSchedules, flows fakeFlows, pub *fakePublisher) *Scheduler {
	return New(Config{
		Schedules: s,
		Flows:     flows,
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return tickNow },
	})
}

func TestTick_TriggersDueFlow(t *testing.T) {
	flow := &domain.Flow{ID: uuid.New(), IsActive: true}
	sched := dueSchedule(flow.ID)
	store := &fakeSchedules{due: []domain.Schedule{sched}}
	pub := &fakePublisher{}

	if err := newTestScheduler(store, fakeFlows{flow.ID: flow}, pub).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(pub.published))
	}
	p := pub.published[0]
	wantID := ScheduledExecutionID(sched.ID, *sched.NextDueAt)
	if p.ExecutionID != wantID || p.FlowID != flow.ID || p.Source != mq.SourceSchedule {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Variables["symbol"] != "ETH/USDT" {
		t.Errorf("schedule variables lost: %v", p.Variables)
	}

	if len(store.recorded) != 1 {
		t.Fatalf("expected run to be recorded")
	}
	rec := store.recorded[0]
	if rec.executionID != wantID || !rec.prevDue.Equal(*sched.NextDueAt) {
		t.Errorf("unexpected record: %+v", rec)
	}
	if want := tickNow.Add(time.Minute); !rec.nextDue.Equal(want) {
		t.Errorf("next due: got %s, want %s", rec.nextDue, want)
	}
}

func TestTick_InactiveOrMissingFlowAdvancesWithoutTrigger(t *testing.T) {
	inactive := &domain.Flow{ID: uuid.New(), IsActive: false}
	store := &fakeSchedules{due: []domain.Schedule{
		dueSchedule(inactive.ID),
		dueSchedule(uuid.New()),
	}}
	pub := &fakePublisher{}

	if err := newTestScheduler(store, fakeFlows{inactive.ID: inactive}, pub).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("expected no triggers, got %d", len(pub.published))
	}
	if len(store.recorded) != 2 {
		t.Fatalf("both slots must be advanced, got %d", len(store.recorded))
	}
	for _, rec := range store.recorded {
		if rec.executionID != "" {
			t.Errorf("skipped slot must not record an execution id, got %q", rec.executionID)
		}
	}
}

func TestTick_PublishFailureKeepsSlot(t *testing.T) {
	flow := &domain.Flow{ID: uuid.New(), IsActive: true}
	store := &fakeSchedules{due: []domain.Schedule{dueSchedule(flow.ID)}}
	pub := &fakePublisher{err: errors.New("broker down")}

	if err := newTestScheduler(store, fakeFlows{flow.ID: flow}, pub).Tick(context.Background()); err != nil {
		t.Fatalf("per-schedule errors must not fail the tick: %v", err)
	}
	if len(store.recorded) != 0 {
		t.Error("slot must not be advanced when publishing failed")
	}
}

func TestTick_InvalidScheduleSkipped(t *testing.T) {
	flow := &domain.Flow{ID: uuid.New(), IsActive: true}
	bad := dueSchedule(flow.ID)
	bad.IntervalSec = 0
	store := &fakeSchedules{due: []domain.Schedule{bad}}
	pub := &fakePublisher{}

	if err := newTestScheduler(store, fakeFlows{flow.ID: flow}, pub).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 || len(store.recorded) != 0 {
		t.Error("invalid schedule must be neither triggered nor advanced")
	}
}

func TestTick_ListError(t *testing.T) {
	store := &fakeSchedules{listErr: errors.New("db down")}
	if err := newTestScheduler(store, fakeFlows{}, &fakePublisher{}).Tick(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestScheduledExecutionID(t *testing.T) {
	id := uuid.New()
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := ScheduledExecutionID(id, due)
	if a != ScheduledExecutionID(id, due.In(time.FixedZone("X", 3600))) {
		t.Error("same slot must yield the same id")
	}
	if a == ScheduledExecutionID(id, due.Add(time.Minute)) {
		t.Error("different slots must yield different ids")
	}
	if !regexp.MustCompile(`^exec_\d+_[0-9a-f]{7}$`).MatchString(a) {
		t.Errorf("unexpected format: %s", a)
	}
}

type fakeLeader struct {
	mu       sync.Mutex
	attempts int
	grantAt  int
	released bool
}

func (l *fakeLeader) TryAcquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	return l.attempts >= l.grantAt, nil
}

func (l *fakeLeader) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

func TestRun_TicksOnlyAsLeader(t *testing.T) {
	flow := &domain.Flow{ID: uuid.New(), IsActive: true}
	store := &fakeSchedules{due: []domain.Schedule{dueSchedule(flow.ID)}}
	pub := &fakePublisher{}
	leader := &fakeLeader{grantAt: 3}
	s := newTestScheduler(store, fakeFlows{flow.ID: flow}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond, leader)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for pub.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never ticked as leader")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	leader.mu.Lock()
	defer leader.mu.Unlock()
	if leader.attempts < 3 {
		t.Errorf("expected at least 3 lock attempts, got %d", leader.attempts)
	}
	if !leader.released {
		t.Error("lock must be released on exit")
	}
}
