package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAppendFillsIdentity(t *testing.T) {
	el := NewEventLog(nil, nil)

	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeEquipmentPlaced, EquipmentType: "bipap"})

	got := el.Replay()
	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Errorf("Expected an assigned event ID")
	}
	if got[0].Timestamp.IsZero() {
		t.Errorf("Expected an assigned timestamp")
	}
}

func TestAppendKeepsProvidedIdentity(t *testing.T) {
	el := NewEventLog(nil, nil)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	el.Append(SessionEvent{ID: "evt-1", Timestamp: ts, SessionID: "s1", Type: EventTypeShockDelivered})

	got := el.Replay()[0]
	if got.ID != "evt-1" || !got.Timestamp.Equal(ts) {
		t.Errorf("Expected provided identity preserved, got %+v", got)
	}
}

func TestReplayPreservesOrder(t *testing.T) {
	el := NewEventLog(nil, nil)
	types := []EventType{
		EventTypeEquipmentPlaced,
		EventTypeSettingsChanged,
		EventTypeShockDelivered,
		EventTypeEquipmentRemoved,
	}
	for _, ty := range types {
		el.Append(SessionEvent{SessionID: "s1", Type: ty})
	}

	got := el.Replay()
	if len(got) != len(types) {
		t.Fatalf("Expected %d events, got %d", len(types), len(got))
	}
	for i, ty := range types {
		if got[i].Type != ty {
			t.Errorf("Position %d: expected %q, got %q", i, ty, got[i].Type)
		}
	}
}

func TestInterventionsExcludeMachineEvents(t *testing.T) {
	el := NewEventLog(nil, nil)
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeEquipmentPlaced})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeMalfunction})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeVitalsCommitted})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeShockDelivered})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypePatientDied})

	iv := el.Interventions()
	if len(iv) != 2 {
		t.Fatalf("Expected 2 interventions, got %d", len(iv))
	}
	// A malfunction is the machine's fault, a vitals audit is bookkeeping,
	// and a death is an outcome; none of them is a player choice.
	if iv[0].Type != EventTypeEquipmentPlaced || iv[1].Type != EventTypeShockDelivered {
		t.Errorf("Unexpected intervention set: %+v", iv)
	}
}

func TestGetByType(t *testing.T) {
	el := NewEventLog(nil, nil)
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeSettingsChanged, EquipmentID: "a"})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeEquipmentPlaced, EquipmentID: "b"})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeSettingsChanged, EquipmentID: "c"})

	got := el.GetByType(EventTypeSettingsChanged)
	if len(got) != 2 || got[0].EquipmentID != "a" || got[1].EquipmentID != "c" {
		t.Errorf("Unexpected filter result: %+v", got)
	}
	if el.Len() != 3 {
		t.Errorf("Expected Len 3, got %d", el.Len())
	}
}

// chanPersister signals each write so the test can wait for the async
// write-through without sleeping.
type chanPersister struct {
	mu     sync.Mutex
	events []SessionEvent
	signal chan struct{}
}

func (p *chanPersister) Persist(event SessionEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	p.signal <- struct{}{}
	return nil
}

func TestPersisterWriteThrough(t *testing.T) {
	p := &chanPersister{signal: make(chan struct{}, 8)}
	el := NewEventLog(p, nil)

	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeEquipmentPlaced})
	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeShockDelivered})

	for i := 0; i < 2; i++ {
		select {
		case <-p.signal:
		case <-time.After(2 * time.Second):
			t.Fatal("persister never saw the event")
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) != 2 {
		t.Fatalf("Expected 2 persisted events, got %d", len(p.events))
	}
	for _, e := range p.events {
		if e.ID == "" {
			t.Errorf("Persisted event missing assigned ID: %+v", e)
		}
	}
}

// failingPersister rejects every write and signals each attempt.
type failingPersister struct {
	signal chan struct{}
}

func (p *failingPersister) Persist(SessionEvent) error {
	defer func() { p.signal <- struct{}{} }()
	return errors.New("store is down")
}

func TestPersisterFailureIsLogged(t *testing.T) {
	core, logged := observer.New(zap.WarnLevel)
	p := &failingPersister{signal: make(chan struct{}, 1)}
	el := NewEventLog(p, zap.New(core))

	el.Append(SessionEvent{SessionID: "s1", Type: EventTypeShockDelivered})

	select {
	case <-p.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("persister never saw the event")
	}

	deadline := time.Now().Add(2 * time.Second)
	for logged.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	entries := logged.FilterMessage("event write-through failed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 warning, got %d", logged.Len())
	}
	ctx := entries[0].ContextMap()
	if ctx["session_id"] != "s1" || ctx["event_type"] != string(EventTypeShockDelivered) {
		t.Errorf("Unexpected warning context: %+v", ctx)
	}

	// The in-memory log stays authoritative even when the store rejects.
	if el.Len() != 1 {
		t.Errorf("Expected the event retained in memory, got Len %d", el.Len())
	}
}
