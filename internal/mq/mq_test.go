package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
)

// --- Routing Tests ---

func TestRoutingKey_ForProcess(t *testing.T) {
	if got := RoutingKeyRunFinished.ForProcess("P001"); got != "run.finished.P001" {
		t.Errorf("unexpected key: %s", got)
	}
	if got := RoutingKeyStepAttempt.ForProcess(""); got != RoutingKeyStepAttempt {
		t.Errorf("empty code should keep key, got %s", got)
	}
}

// --- Payload Tests ---

func TestNewRunPayload(t *testing.T) {
	run := domain.NewRun("P001", "PRD", 2, 4)
	run.MarkRunning()
	run.Finish(domain.RunStatusWarning, &domain.FailureRecord{Kind: domain.FailureBusiness, Message: "no input"})

	p := NewRunPayload(run)
	if p.Status != domain.RunStatusWarning || p.StartStep != 2 || p.StatesCompleted != 2 {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.FailureKind != "BUSINESS" || p.FailureMessage != "no input" {
		t.Errorf("failure not mapped: %+v", p)
	}
}

func TestParsePayload_RoundTrip(t *testing.T) {
	start := time.Now()
	a := domain.StepAttempt{
		StepIndex: 3, StepName: "delegated_flow", Attempt: 2,
		Outcome: domain.AttemptRetried, Kind: domain.FailureSystem, Error: "timeout",
		StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	}
	msg := newMessage(MessageTypeStepAttempt, NewAttemptPayload("P001", a))

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	p, err := ParsePayload[AttemptPayload](&decoded)
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	if p.StepName != "delegated_flow" || p.Outcome != domain.AttemptRetried || p.DurationMs != 1500 {
		t.Errorf("unexpected payload: %+v", p)
	}
	if decoded.Type != MessageTypeStepAttempt || decoded.ID == "" {
		t.Errorf("unexpected envelope: %+v", decoded)
	}
}
