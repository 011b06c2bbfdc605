package mq

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

func TestMessage_RoundTrip(t *testing.T) {
	flowID := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	msg, err := NewMessage(MessageTypeFlowTriggered, FlowTriggeredPayload{
		ExecutionID: "exec_1_abcdef0",
		FlowID:      flowID,
		Variables:   map[string]any{"symbol": "BTC/USDT"},
		Source:      SourceSchedule,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" || msg.Type != MessageTypeFlowTriggered || !msg.Timestamp.Equal(now) {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	got, err := ParsePayload[FlowTriggeredPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FlowID != flowID || got.ExecutionID != "exec_1_abcdef0" || got.Source != SourceSchedule {
		t.Errorf("unexpected payload: %+v", got)
	}
	if got.Variables["symbol"] != "BTC/USDT" {
		t.Errorf("variables lost: %v", got.Variables)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	msg := &Message{Type: MessageTypeFlowTriggered, Payload: []byte(`"not an object"`)}
	if _, err := ParsePayload[FlowTriggeredPayload](msg); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompletedFrom(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := &domain.Execution{
		ID:         "exec_1_abcdef0",
		FlowID:     "f1",
		Status:     domain.RunStatusFailed,
		Error:      "boom",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}

	got := CompletedFrom(exec)
	if got.Status != domain.RunStatusFailed || got.Error != "boom" || got.DurationMs != 1500 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestReject(t *testing.T) {
	cause := errors.New("flow deleted")
	err := Reject(cause)
	if !errors.Is(err, ErrReject) || !errors.Is(err, cause) {
		t.Errorf("Reject must wrap both sentinel and cause: %v", err)
	}
}

func TestTopology_BindingsReferenceDeclared(t *testing.T) {
	exchanges := map[Exchange]bool{}
	for _, ex := range topology.exchanges {
		exchanges[ex.name] = true
	}
	queues := map[Queue]bool{}
	for _, q := range topology.queues {
		queues[q.name] = true
	}
	for _, b := range topology.bindings {
		if !exchanges[b.exchange] {
			t.Errorf("binding %s uses undeclared exchange %s", b.queue, b.exchange)
		}
		if !queues[b.queue] {
			t.Errorf("binding uses undeclared queue %s", b.queue)
		}
	}
}
